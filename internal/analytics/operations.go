package analytics

import (
	"fmt"
	"strings"

	"analytics-agent/internal/domain"
)

func periodParam(def int) Param {
	return Param{
		Name:        domain.ParamPeriodDays,
		Type:        "integer",
		Description: fmt.Sprintf("Number of days to analyze (default: %d)", def),
	}
}

func limitParam(what string, def int) Param {
	return Param{
		Name:        domain.ParamLimit,
		Type:        "integer",
		Description: fmt.Sprintf("Max %s to return (default: %d)", what, def),
	}
}

var countryParam = Param{
	Name:        domain.ParamCountryFilter,
	Type:        "string",
	Description: "ISO 3166-1 alpha-2 country code to restrict the analysis to, e.g. US, GB, CA",
}

var emotionParam = Param{
	Name:        domain.ParamEmotionFilter,
	Type:        "string",
	Description: "Emotion to filter by: anxious, happy, sad, stressed, worried, confused, hopeful",
}

// fixed returns a context function for operations whose description does
// not depend on parameters.
func fixed(text string) func(domain.Params) string {
	return func(p domain.Params) string {
		if p.CountryFilter != "" {
			return text + " for customers in " + p.CountryFilter
		}
		return text
	}
}

// operations is the full table, in the order tools are advertised.
func operations() []*Operation {
	return []*Operation{
		{
			Intent:      domain.IntentCustomerSegments,
			Tool:        "get_customer_segments",
			Description: "Segment customers by their behavior, value, and purchase patterns. Shows different customer groups.",
			Params:      []Param{periodParam(30), countryParam},
			context:     fixed("customer segmentation by value and behavior"),
			run:         customerSegments,
		},
		{
			Intent:      domain.IntentCustomerValue,
			Tool:        "get_customer_lifetime_value",
			Description: "Get top customers ranked by total lifetime value and revenue generated.",
			Params: []Param{
				{Name: domain.ParamTopN, Type: "integer", Description: "Number of top customers to return (default: 20)"},
				countryParam,
			},
			context: fixed("customer lifetime value rankings"),
			run:     customerLifetimeValue,
		},
		{
			Intent:      domain.IntentRepeatCustomers,
			Tool:        "get_repeat_customers",
			Description: "Analyze loyal vs one-time customers. Shows retention and repeat purchase rates.",
			Params:      []Param{periodParam(30)},
			context:     fixed("repeat vs one-time customer analysis"),
			run:         repeatCustomers,
		},
		{
			Intent:      domain.IntentPurchasesByAge,
			Tool:        "get_purchases_by_age",
			Description: "Show purchases and revenue broken down by customer age groups.",
			Params:      []Param{periodParam(30)},
			context:     fixed("purchases and revenue breakdown by customer age groups"),
			run:         purchasesByAge,
		},
		{
			Intent:      domain.IntentPaymentTime,
			Tool:        "get_payment_time_analysis",
			Description: "Average time between order creation and payment completion.",
			Params:      []Param{periodParam(30)},
			context:     fixed("payment time analysis - time between order and payment"),
			run:         paymentTime,
		},
		{
			Intent:      domain.IntentFastSlowPayers,
			Tool:        "get_fast_vs_slow_payers",
			Description: "Segment customers by payment speed. Shows fast payers vs slow payers.",
			Params: []Param{
				periodParam(30),
				{Name: domain.ParamThresholdHours, Type: "number", Description: "Hours threshold to classify as fast/slow (default: 24)"},
			},
			context: fixed("fast vs slow payers segmentation"),
			run:     fastSlowPayers,
		},
		{
			Intent:      domain.IntentAbandonedCarts,
			Tool:        "get_abandoned_carts",
			Description: "Find unpaid orders that were abandoned. Shows potential lost revenue.",
			Params: []Param{
				{Name: domain.ParamHoursThreshold, Type: "number", Description: "Hours since order to consider abandoned (default: 48)"},
			},
			context: fixed("abandoned cart analysis - unpaid orders"),
			run:     abandonedCarts,
		},
		{
			Intent:      domain.IntentUnpaidOrdersCount,
			Tool:        "get_unpaid_orders_count",
			Description: "Total number and value of unpaid orders in the period.",
			Params:      []Param{periodParam(30)},
			context:     fixed("total unpaid orders count and value"),
			run:         unpaidOrdersCount,
		},
		{
			Intent:      domain.IntentTrendingTopics,
			Tool:        "get_trending_topics",
			Description: "Get the most popular topics and questions customers are asking about.",
			Params:      []Param{periodParam(7), limitParam("topics", 10), emotionParam, countryParam},
			context: func(p domain.Params) string {
				text := "trending topics analysis"
				if len(p.EmotionFilter) > 0 {
					text += " among " + strings.Join(p.EmotionFilter, "/") + " customers"
				}
				return fixed(text)(p)
			},
			run: trendingTopics,
		},
		{
			Intent:      domain.IntentTopicRevenue,
			Tool:        "get_topic_revenue",
			Description: "Show which topics generate the most revenue. Revenue by topic analysis.",
			Params:      []Param{periodParam(30)},
			context:     fixed("topic revenue correlation"),
			run:         topicRevenue,
		},
		{
			Intent:      domain.IntentTopicsByEmotion,
			Tool:        "get_topics_by_emotion",
			Description: "Get topics filtered by customer emotional state (anxious, happy, sad, etc).",
			Params:      []Param{emotionParam, periodParam(30)},
			context: func(p domain.Params) string {
				if len(p.EmotionFilter) == 0 {
					return "topics and their revenue performance"
				}
				return fmt.Sprintf("topics from %s customers and their revenue performance", strings.Join(p.EmotionFilter, "/"))
			},
			run: topicsByEmotion,
		},
		{
			Intent:      domain.IntentQuestionPatterns,
			Tool:        "get_question_patterns",
			Description: "Common question themes: total questions asked and the most frequent topics.",
			Params:      []Param{periodParam(30)},
			context:     fixed("common question themes"),
			run:         questionPatterns,
		},
		{
			Intent:      domain.IntentEmotions,
			Tool:        "get_emotion_distribution",
			Description: "Distribution of customer emotions. Shows what customers are feeling.",
			Params:      []Param{periodParam(30), countryParam},
			context:     fixed("emotional tone distribution"),
			run:         emotionDistribution,
		},
		{
			Intent:      domain.IntentEmotionConversion,
			Tool:        "get_emotion_conversion",
			Description: "Correlation between customer emotion and payment completion rates.",
			Params:      []Param{periodParam(30)},
			context:     fixed("emotion to conversion correlation"),
			run:         emotionConversion,
		},
		{
			Intent:      domain.IntentHighRisk,
			Tool:        "get_high_risk_customers",
			Description: "Identify customers showing distress or negative emotions who may need support.",
			context:     fixed("high-risk customers needing support"),
			run:         highRiskCustomers,
		},
		{
			Intent:      domain.IntentPaymentRate,
			Tool:        "get_payment_success_rate",
			Description: "Payment completion and conversion rates. Shows paid vs unpaid orders.",
			Params:      []Param{periodParam(30), countryParam},
			context:     fixed("payment success rate analysis"),
			run:         paymentSuccessRate,
		},
		{
			Intent:      domain.IntentRevenueTrends,
			Tool:        "get_revenue_trends",
			Description: "Revenue trends over time. Can be grouped by day, week, or month.",
			Params: []Param{
				periodParam(30),
				{Name: domain.ParamGroupBy, Type: "string", Description: "Time grouping (default: day)", Enum: []string{"day", "week", "month"}},
				countryParam,
				{Name: domain.ParamComparisonMode, Type: "boolean", Description: "Also report totals for the previous window of the same length"},
			},
			context: func(p domain.Params) string {
				groupBy := p.GroupBy
				if groupBy == "" {
					groupBy = "day"
				}
				text := "revenue trends by " + groupBy
				if p.ComparisonMode {
					text += " compared with the previous period"
				}
				return fixed(text)(p)
			},
			run: revenueTrends,
		},
		{
			Intent:      domain.IntentProductPerformance,
			Tool:        "get_product_performance",
			Description: "Best performing products by revenue and sales volume.",
			Params:      []Param{periodParam(30), limitParam("products", 10)},
			context:     fixed("product performance metrics"),
			run:         productPerformance,
		},
		{
			Intent:      domain.IntentCustomerNeeds,
			Tool:        "get_customer_needs_distribution",
			Description: "What customers are looking for and seeking. Customer intent analysis.",
			Params:      []Param{periodParam(30)},
			context:     fixed("customer needs distribution"),
			run:         customerNeeds,
		},
		{
			Intent:      domain.IntentUnmetNeeds,
			Tool:        "get_unmet_needs_analysis",
			Description: "Service gaps and unmet customer needs. Where we're falling short.",
			Params:      []Param{periodParam(30)},
			context:     fixed("unmet needs and service gaps"),
			run:         unmetNeeds,
		},
		{
			Intent:      domain.IntentSentimentOverview,
			Tool:        "get_sentiment_distribution",
			Description: "Overall customer sentiment breakdown. Positive, negative, neutral.",
			Params:      []Param{periodParam(30)},
			context:     fixed("sentiment distribution overview"),
			run:         sentimentDistribution,
		},
		{
			Intent:      domain.IntentSentimentProduct,
			Tool:        "get_sentiment_by_product",
			Description: "Sentiment breakdown for each product.",
			Params:      []Param{periodParam(30)},
			context:     fixed("sentiment analysis per product"),
			run:         sentimentByProduct,
		},
		{
			Intent:      domain.IntentKeywords,
			Tool:        "get_keyword_frequency",
			Description: "Most frequently mentioned keywords in customer communications.",
			Params:      []Param{periodParam(30), limitParam("keywords", 20)},
			context:     fixed("keyword frequency analysis"),
			run:         keywordFrequency,
		},
		{
			Intent:      domain.IntentRevenueByCountry,
			Tool:        "get_revenue_by_country",
			Description: "Revenue breakdown by customer country/location.",
			Params:      []Param{periodParam(30), limitParam("countries", 20), countryParam},
			context:     fixed("revenue breakdown by country"),
			run:         revenueByCountry,
		},
		{
			Intent:      domain.IntentTopCountriesSales,
			Tool:        "get_top_countries_sales",
			Description: "Countries ranked by number of sales/orders.",
			Params:      []Param{periodParam(30), limitParam("countries", 10), countryParam},
			context:     fixed("countries ranked by number of sales"),
			run:         topCountriesBySales,
		},
		{
			Intent:      domain.IntentCountryPerformance,
			Tool:        "get_country_performance",
			Description: "Compare performance metrics across countries. Includes conversion rates.",
			Params:      []Param{periodParam(30), countryParam},
			context:     fixed("country performance comparison - conversion and order value"),
			run:         countryPerformance,
		},
		{
			Intent:      domain.IntentCountryGrowth,
			Tool:        "get_country_growth",
			Description: "Country growth trends comparing current vs previous period.",
			Params: []Param{
				{Name: domain.ParamPeriodDays, Type: "integer", Description: "Current period days (default: 30)"},
				{Name: domain.ParamComparisonDays, Type: "integer", Description: "Previous period days to compare (default: 30)"},
			},
			context: fixed("country growth trends - current vs previous period"),
			run:     countryGrowth,
		},
		{
			Intent:      domain.IntentCountryLTV,
			Tool:        "get_country_ltv",
			Description: "Average customer lifetime value by country. Shows which countries have the most valuable customers.",
			Params:      []Param{periodParam(365), limitParam("countries", 20)},
			context:     fixed("customer lifetime value by country"),
			run:         countryLTV,
		},
		{
			Intent:      domain.IntentCountrySummary,
			Tool:        "get_country_summary",
			Description: "Overall summary of geographic distribution with the top 5 countries by revenue.",
			Params:      []Param{periodParam(30)},
			context:     fixed("geographic distribution summary"),
			run:         countrySummary,
		},
	}
}
