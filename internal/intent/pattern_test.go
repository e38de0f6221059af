package intent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"analytics-agent/internal/domain"
)

func TestPatternMatcher_EveryPhraseMatchesExactly(t *testing.T) {
	m := NewPatternMatcher()

	for i, row := range phraseTable {
		allowed := map[domain.Intent]bool{domain.IntentTopicsByEmotion: true}
		for _, earlier := range phraseTable[:i+1] {
			allowed[earlier.intent] = true
		}
		for _, phrase := range row.phrases {
			for _, q := range []string{phrase, strings.ToUpper(phrase), "Please show " + phrase + " now"} {
				got, conf := m.Match(q)
				require.Equal(t, PatternConfidence, conf, q)
				// Earlier rows may shadow a phrase that contains theirs.
				require.True(t, allowed[got], "%q resolved to %s", q, got)
			}
		}
	}
}

func TestPatternMatcher_Examples(t *testing.T) {
	m := NewPatternMatcher()

	tests := []struct {
		question string
		want     domain.Intent
	}{
		{"Show me trending topics this month", domain.IntentTrendingTopics},
		{"WHAT IS OUR TOTAL REVENUE", domain.IntentRevenueTrends},
		{"which is the best product", domain.IntentProductPerformance},
		{"Who are our most valuable buyers?", domain.IntentCustomerValue},
		{"How many unpaid orders are there?", domain.IntentUnpaidOrdersCount},
		{"country summary please", domain.IntentCountrySummary},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got, conf := m.Match(tt.question)
			require.Equal(t, tt.want, got)
			require.Equal(t, PatternConfidence, conf)
		})
	}
}

func TestPatternMatcher_EmotionTopicOverridesTable(t *testing.T) {
	got, conf := NewPatternMatcher().Match("What topics do anxious customers mention? Also total revenue")
	require.Equal(t, domain.IntentTopicsByEmotion, got)
	require.Equal(t, PatternConfidence, conf)
}

func TestPatternMatcher_Fuzzy(t *testing.T) {
	got, conf := NewPatternMatcher().Match("what is the speed of payment")
	require.Equal(t, domain.IntentFastSlowPayers, got)
	require.Equal(t, FuzzyConfidence, conf)
}

func TestPatternMatcher_NoMatch(t *testing.T) {
	got, conf := NewPatternMatcher().Match("xyzzy plugh")
	require.Equal(t, domain.IntentUnknown, got)
	require.Zero(t, conf)
}
