package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"analytics-agent/internal/domain"
)

var utc8 = time.FixedZone("UTC+8", 8*60*60)

func fixedExtractor(t time.Time) *Extractor {
	return NewExtractor(WithClock(func() time.Time { return t }), WithLocation(utc8))
}

func TestExtract_TimeWindows(t *testing.T) {
	e := fixedExtractor(time.Date(2024, 3, 10, 6, 0, 0, 0, utc8))

	tests := []struct {
		question string
		want     float64
	}{
		{"revenue for the last 20 days", 20},
		{"sales over the past 3 months", 90},
		{"orders in the previous 2 weeks", 14},
		{"last 1 quarter please", 90},
		{"past 2 years of data", 730},
		{"lifetime revenue", domain.LifetimePeriodDays},
		{"best customers of all time", domain.LifetimePeriodDays},
		{"have we ever sold a reading", domain.LifetimePeriodDays},
		{"revenue today", 0.25},
		{"this year so far", 70},
		{"revenue last year", 365},
		{"trending topics this month", 30},
		{"what happened last week", 7},
		{"last quarter results", 90},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			p := e.Extract(tt.question, nil)
			require.NotNil(t, p.PeriodDays)
			require.InDelta(t, tt.want, *p.PeriodDays, 1e-9)
		})
	}
}

func TestExtract_DynamicWindowBeatsStaticPhrase(t *testing.T) {
	p := NewExtractor().Extract("last 5 days compared to last month", nil)
	require.Equal(t, 5.0, *p.PeriodDays)
}

func TestExtract_NoWindow(t *testing.T) {
	p := NewExtractor().Extract("which topics are popular", nil)
	require.Nil(t, p.PeriodDays)
	require.Empty(t, p.SpecificDate)
}

func TestExtract_TodayFloor(t *testing.T) {
	e := fixedExtractor(time.Date(2024, 3, 10, 0, 5, 0, 0, utc8))
	p := e.Extract("sales today", nil)
	require.Equal(t, 0.1, *p.PeriodDays)
}

func TestExtract_TodayUsesLocalMidnight(t *testing.T) {
	// 22:00 UTC on the 9th is 06:00 on the 10th in UTC+8.
	e := fixedExtractor(time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC))
	p := e.Extract("sales today", nil)
	require.InDelta(t, 0.25, *p.PeriodDays, 1e-9)
}

func TestExtract_Yesterday(t *testing.T) {
	p := NewExtractor().Extract("What did we make yesterday?", nil)
	require.Equal(t, 1.0, *p.PeriodDays)
	require.Equal(t, "yesterday", p.SpecificDate)
}

func TestExtract_Limit(t *testing.T) {
	e := NewExtractor()
	require.Equal(t, 5, *e.Extract("top 5 products", nil).Limit)
	require.Equal(t, 3, *e.Extract("Give me 3 keywords", nil).Limit)
	require.Nil(t, e.Extract("show me the top products", nil).Limit)
}

func TestExtract_Thresholds(t *testing.T) {
	e := NewExtractor()

	p := e.Extract("carts abandoned for more than 2 hours", nil)
	require.Equal(t, 2.0, *p.HoursThreshold)
	require.Nil(t, p.ThresholdHours)

	p = e.Extract("fast payers under 30 minutes", nil)
	require.Equal(t, 0.5, *p.ThresholdHours)
	require.Nil(t, p.HoursThreshold)

	p = e.Extract("orders placed within 3 hours", nil)
	require.Nil(t, p.ThresholdHours)
	require.Nil(t, p.HoursThreshold)
}

func TestExtract_Emotions(t *testing.T) {
	e := NewExtractor()

	p := e.Extract("topics from anxious customers", nil)
	require.Equal(t, domain.EmotionFilter{"anxious"}, p.EmotionFilter)

	p = e.Extract("worried or frustrated buyers", nil)
	require.Equal(t, domain.EmotionFilter{"anxious", "angry"}, p.EmotionFilter)

	p = e.Extract("unhappy customers", nil)
	require.Equal(t, domain.EmotionFilter{"sad"}, p.EmotionFilter, "whole-word match only")
}

func TestExtract_Country(t *testing.T) {
	e := NewExtractor()

	require.Equal(t, "CA", e.Extract("sales in Canada and the US", nil).CountryFilter)
	require.Equal(t, "US", e.Extract("Only US and Canada", nil).CountryFilter)
	require.Equal(t, "GB", e.Extract("revenue from the UK", nil).CountryFilter)
	require.Equal(t, "GB", e.Extract("customers in england", nil).CountryFilter)
	require.Empty(t, e.Extract("tell us about revenue", nil).CountryFilter)
	require.Empty(t, e.Extract("discuss the topics", nil).CountryFilter)
}

func TestExtract_Comparison(t *testing.T) {
	e := NewExtractor()
	require.True(t, e.Extract("revenue vs last month", nil).ComparisonMode)
	require.True(t, e.Extract("Compare to last month", nil).ComparisonMode)
	require.False(t, e.Extract("revenue this month", nil).ComparisonMode)
}

func TestExtract_InheritsContextParams(t *testing.T) {
	cctx := &domain.ConversationContext{
		LastIntent: domain.IntentTrendingTopics,
		LastParams: domain.Params{PeriodDays: domain.Float(30), Limit: domain.Int(10)},
	}

	p := NewExtractor().Extract("What about anxious customers?", cctx)
	require.Equal(t, 30.0, *p.PeriodDays)
	require.Equal(t, 10, *p.Limit)
	require.Equal(t, domain.EmotionFilter{"anxious"}, p.EmotionFilter)

	p = NewExtractor().Extract("Compare to last week", cctx)
	require.Equal(t, 7.0, *p.PeriodDays, "fresh values win")
	require.True(t, p.ComparisonMode)

	// context must not be mutated by extraction
	require.Equal(t, 30.0, *cctx.LastParams.PeriodDays)
	require.Empty(t, cctx.LastParams.EmotionFilter)
}

func TestExtract_Idempotent(t *testing.T) {
	e := fixedExtractor(time.Date(2024, 6, 1, 12, 0, 0, 0, utc8))
	cctx := &domain.ConversationContext{
		LastIntent: domain.IntentRevenueTrends,
		LastParams: domain.Params{PeriodDays: domain.Float(30), CountryFilter: "US"},
	}
	q := "top 5 anxious or happy customers in Canada today vs yesterday"

	require.Equal(t, e.Extract(q, cctx), e.Extract(q, cctx))
}
