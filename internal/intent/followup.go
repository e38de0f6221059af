package intent

import (
	"regexp"
	"strings"

	"analytics-agent/internal/domain"
)

// FollowUpKind names the continuation pattern a question follows.
type FollowUpKind string

const (
	FollowUpRefineFilter  FollowUpKind = "refine_filter"
	FollowUpShowMore      FollowUpKind = "show_more"
	FollowUpBreakdown     FollowUpKind = "breakdown"
	FollowUpCompare       FollowUpKind = "compare"
	FollowUpTrendOverTime FollowUpKind = "trend_over_time"
	FollowUpFilterModify  FollowUpKind = "filter_modify"
)

// FollowUp is a resolved continuation of the previous turn.
type FollowUp struct {
	Kind       FollowUpKind
	Intent     domain.Intent
	Confidence float64
}

type followUpCategory struct {
	kind FollowUpKind
	re   *regexp.Regexp
}

// Checked in order; the first category that matches wins.
var followUpCategories = []followUpCategory{
	{FollowUpRefineFilter, wordsRe([]string{"what about", "how about", "what if", "and for"}, true)},
	{FollowUpShowMore, wordsRe([]string{
		"tell me more", "more details", "more detail", "show more",
		"go deeper", "elaborate", "expand on", "more info",
	}, true)},
	{FollowUpBreakdown, wordsRe([]string{
		"break it down", "break down", "breakdown", "split by",
		"drill down", "segment by", "group by",
	}, true)},
	{FollowUpCompare, wordsRe([]string{"compare", "compared to", "versus", "vs"}, true)},
	{FollowUpTrendOverTime, wordsRe([]string{
		"over time", "the trend", "trends over", "month over month", "week over week",
		"day by day", "by day", "by week", "by month",
	}, true)},
	{FollowUpFilterModify, wordsRe([]string{
		"only", "exclude", "excluding", "just", "without",
		"instead", "except", "remove", "filter",
	}, true)},
}

type breakdownTarget struct {
	re     *regexp.Regexp
	intent domain.Intent
}

var breakdownTargets = []breakdownTarget{
	{regexp.MustCompile(`(?i)\b(?:country|countries|region|regions|location|locations)\b`), domain.IntentRevenueByCountry},
	{regexp.MustCompile(`(?i)\bage\b`), domain.IntentPurchasesByAge},
	{regexp.MustCompile(`(?i)\b(?:emotion|emotions|feeling|feelings|mood|moods)\b`), domain.IntentEmotions},
	{regexp.MustCompile(`(?i)\btopics?\b`), domain.IntentTrendingTopics},
}

// FollowUpResolver rewrites the previous turn's intent when a question reads
// as a continuation of it.
type FollowUpResolver struct {
	extractor *Extractor
}

func NewFollowUpResolver(extractor *Extractor) *FollowUpResolver {
	if extractor == nil {
		extractor = NewExtractor()
	}
	return &FollowUpResolver{extractor: extractor}
}

// Resolve reports ok=false when there is no previous intent or the question
// matches none of the follow-up categories.
func (r *FollowUpResolver) Resolve(question string, cctx *domain.ConversationContext) (FollowUp, bool) {
	if cctx == nil || !cctx.LastIntent.IsAnalytic() {
		return FollowUp{}, false
	}
	last := cctx.LastIntent

	kind, ok := classifyFollowUp(question)
	if !ok {
		return FollowUp{}, false
	}

	out := FollowUp{Kind: kind, Intent: last}
	switch kind {
	case FollowUpRefineFilter:
		out.Confidence = 0.85
		if r.extractor.hasSubFilter(question) {
			out.Confidence = 0.90
		}
	case FollowUpShowMore:
		out.Confidence = 0.95
	case FollowUpBreakdown:
		out.Confidence = 0.80
		for _, t := range breakdownTargets {
			if t.re.MatchString(question) {
				out.Intent, out.Confidence = t.intent, 0.90
				break
			}
		}
	case FollowUpCompare, FollowUpFilterModify:
		out.Confidence = 0.85
	case FollowUpTrendOverTime:
		out.Confidence = 0.80
		if s := string(last); strings.Contains(s, "revenue") || strings.Contains(s, "country") {
			out.Intent, out.Confidence = domain.IntentRevenueTrends, 0.85
		}
	}
	return out, true
}

func classifyFollowUp(question string) (FollowUpKind, bool) {
	for _, c := range followUpCategories {
		if c.re.MatchString(question) {
			return c.kind, true
		}
	}
	return "", false
}
