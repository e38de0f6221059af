package domain

// Intent is the analytics operation a question resolves to.
type Intent string

const (
	IntentCustomerSegments   Intent = "customer_segments"
	IntentCustomerValue      Intent = "customer_value"
	IntentRepeatCustomers    Intent = "repeat_customers"
	IntentPurchasesByAge     Intent = "purchases_by_age"
	IntentPaymentTime        Intent = "payment_time"
	IntentFastSlowPayers     Intent = "fast_slow_payers"
	IntentAbandonedCarts     Intent = "abandoned_carts"
	IntentUnpaidOrdersCount  Intent = "unpaid_orders_count"
	IntentTrendingTopics     Intent = "trending_topics"
	IntentTopicRevenue       Intent = "topic_revenue"
	IntentTopicsByEmotion    Intent = "topics_by_emotion"
	IntentQuestionPatterns   Intent = "question_patterns"
	IntentEmotions           Intent = "emotions"
	IntentEmotionConversion  Intent = "emotion_conversion"
	IntentHighRisk           Intent = "high_risk"
	IntentPaymentRate        Intent = "payment_rate"
	IntentRevenueTrends      Intent = "revenue_trends"
	IntentProductPerformance Intent = "product_performance"
	IntentCustomerNeeds      Intent = "customer_needs"
	IntentUnmetNeeds         Intent = "unmet_needs"
	IntentSentimentOverview  Intent = "sentiment_overview"
	IntentSentimentProduct   Intent = "sentiment_product"
	IntentKeywords           Intent = "keywords"
	IntentRevenueByCountry   Intent = "revenue_by_country"
	IntentTopCountriesSales  Intent = "top_countries_sales"
	IntentCountryPerformance Intent = "country_performance"
	IntentCountryGrowth      Intent = "country_growth"
	IntentCountryLTV         Intent = "country_ltv"
	IntentCountrySummary     Intent = "country_summary"

	// IntentUnknown marks a question no matcher could place.
	IntentUnknown Intent = "unknown"
	// IntentContextFollowup labels a candidate produced by the follow-up
	// resolver. It never reaches the analytics registry.
	IntentContextFollowup Intent = "context_followup"
)

var analyticIntents = []Intent{
	IntentCustomerSegments,
	IntentCustomerValue,
	IntentRepeatCustomers,
	IntentPurchasesByAge,
	IntentPaymentTime,
	IntentFastSlowPayers,
	IntentAbandonedCarts,
	IntentUnpaidOrdersCount,
	IntentTrendingTopics,
	IntentTopicRevenue,
	IntentTopicsByEmotion,
	IntentQuestionPatterns,
	IntentEmotions,
	IntentEmotionConversion,
	IntentHighRisk,
	IntentPaymentRate,
	IntentRevenueTrends,
	IntentProductPerformance,
	IntentCustomerNeeds,
	IntentUnmetNeeds,
	IntentSentimentOverview,
	IntentSentimentProduct,
	IntentKeywords,
	IntentRevenueByCountry,
	IntentTopCountriesSales,
	IntentCountryPerformance,
	IntentCountryGrowth,
	IntentCountryLTV,
	IntentCountrySummary,
}

var analyticSet = func() map[Intent]struct{} {
	m := make(map[Intent]struct{}, len(analyticIntents))
	for _, in := range analyticIntents {
		m[in] = struct{}{}
	}
	return m
}()

// AnalyticIntents returns every intent backed by an analytics operation.
func AnalyticIntents() []Intent {
	out := make([]Intent, len(analyticIntents))
	copy(out, analyticIntents)
	return out
}

// IsAnalytic reports whether the intent maps to an analytics operation.
func (i Intent) IsAnalytic() bool {
	_, ok := analyticSet[i]
	return ok
}

// IsCountry reports whether the intent is one of the per-country operations.
func (i Intent) IsCountry() bool {
	switch i {
	case IntentRevenueByCountry, IntentTopCountriesSales, IntentCountryPerformance,
		IntentCountryGrowth, IntentCountryLTV, IntentCountrySummary:
		return true
	}
	return false
}

// ParseIntent accepts analytic and meta intents.
func ParseIntent(s string) (Intent, bool) {
	in := Intent(s)
	if in.IsAnalytic() || in == IntentUnknown || in == IntentContextFollowup {
		return in, true
	}
	return "", false
}

// Method is how a detection result was produced.
type Method string

const (
	MethodPattern  Method = "pattern"
	MethodSemantic Method = "semantic"
	MethodNone     Method = "none"
)

// DetectionResult is the per-turn classification outcome.
type DetectionResult struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Method     Method  `json:"method"`
	// FollowUp is the follow-up category when the result came from the
	// conversation context rather than fresh classification.
	FollowUp string `json:"follow_up,omitempty"`
}

// ScoredIntent pairs an intent with a similarity or confidence score.
type ScoredIntent struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}
