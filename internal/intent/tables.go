package intent

import "analytics-agent/internal/domain"

type intentPhrases struct {
	intent  domain.Intent
	phrases []string
}

// phraseTable is scanned in declaration order; the first phrase found wins,
// so order encodes tie-break priority. Generic revenue words in
// revenue_trends shadow later entries such as product_performance.
var phraseTable = []intentPhrases{
	{domain.IntentCustomerSegments, []string{"segment", "customer group", "type of customer", "categorize customer"}},
	{domain.IntentCustomerValue, []string{"clv", "lifetime value", "top customer", "best customer", "high value", "most valuable"}},
	{domain.IntentRepeatCustomers, []string{"loyal", "repeat", "returning customer", "retention", "come back"}},
	{domain.IntentPurchasesByAge, []string{"age group", "by age", "age bracket", "age range", "demographic"}},

	{domain.IntentPaymentTime, []string{
		"payment time", "time to pay", "how long to pay", "payment duration",
		"order to payment", "time between order", "average payment time", "how fast pay",
	}},
	{domain.IntentFastSlowPayers, []string{
		"fast payer", "slow payer", "payment speed", "quick payment",
		"who pays fast", "who pays slow", "payment velocity",
	}},
	{domain.IntentAbandonedCarts, []string{
		"abandoned", "cart abandon", "didn't pay",
		"incomplete order", "not paid", "pending payment", "waiting payment",
	}},
	{domain.IntentUnpaidOrdersCount, []string{"how many unpaid", "unpaid orders", "count unpaid", "total unpaid"}},

	{domain.IntentTrendingTopics, []string{"trending", "popular topic", "what people ask", "common question", "hot topic"}},
	{domain.IntentTopicRevenue, []string{"topic revenue", "profitable topic", "which topic make", "topic performance", "topic income"}},
	{domain.IntentTopicsByEmotion, []string{
		"topic from", "topics from", "which topic", "what topic",
		"from anxious", "from happy", "from sad", "from stressed",
		"from worried", "from confused", "from hopeful",
		"anxious customer topic", "happy customer topic",
	}},
	{domain.IntentQuestionPatterns, []string{"question pattern", "common question", "what they ask", "question theme"}},

	{domain.IntentEmotions, []string{"emotion", "feeling", "emotional", "mood"}},
	{domain.IntentEmotionConversion, []string{"emotion conversion", "which emotion convert", "emotional impact", "emotion payment"}},
	{domain.IntentHighRisk, []string{"risk", "distress", "negative", "support", "worried customer", "need help"}},

	{domain.IntentPaymentRate, []string{"payment rate", "success rate", "conversion rate", "completion rate", "how many paid"}},
	{domain.IntentRevenueTrends, []string{
		"revenue trend", "sales over time", "daily revenue", "monthly revenue", "revenue growth",
		"all revenue", "total revenue", "total sales", "how much money", "total income",
		"revenue this", "revenue last", "sales this", "sales last", "money made",
	}},
	{domain.IntentProductPerformance, []string{"product performance", "best product", "top selling", "product revenue", "best seller"}},

	{domain.IntentCustomerNeeds, []string{"need", "looking for", "customer want", "seeking", "what do they need"}},
	{domain.IntentUnmetNeeds, []string{"gap", "unmet need", "unfulfilled", "missing service", "not satisfied"}},

	{domain.IntentSentimentOverview, []string{
		"overall sentiment", "customer sentiment", "sentiment distribution",
		"are customers happy", "customer feedback", "satisfaction score",
		"happy or sad", "positive or negative",
	}},
	{domain.IntentSentimentProduct, []string{"sentiment by product", "product sentiment", "which product happy"}},
	{domain.IntentKeywords, []string{"keyword", "common word", "popular term", "frequently mentioned", "top word"}},

	{domain.IntentRevenueByCountry, []string{
		"revenue by country", "sales by country", "country revenue", "revenue per country",
		"income by country", "revenue by region",
	}},
	{domain.IntentTopCountriesSales, []string{"top countries", "top country", "countries by sales", "country ranking", "most orders by country"}},
	{domain.IntentCountryPerformance, []string{"country performance", "compare countries", "country conversion", "performance by country"}},
	{domain.IntentCountryGrowth, []string{"country growth", "growing countries", "countries growing", "declining countries", "country trend"}},
	{domain.IntentCountryLTV, []string{"country ltv", "ltv by country", "country lifetime value", "valuable countries"}},
	{domain.IntentCountrySummary, []string{
		"country summary", "geographic summary", "country overview", "all countries",
		"country distribution", "geographic distribution",
	}},
}

// priorityEmotionWords trigger topics_by_emotion when paired with "topic".
var priorityEmotionWords = []string{"anxious", "happy", "sad", "stressed", "worried", "confused", "hopeful", "angry", "calm"}

type emotionGroup struct {
	canonical string
	synonyms  []string
}

var emotionGroups = []emotionGroup{
	{"anxious", []string{"anxious", "anxiety", "worried", "nervous"}},
	{"happy", []string{"happy", "joyful", "satisfied", "pleased"}},
	{"sad", []string{"sad", "unhappy", "disappointed", "depressed"}},
	{"stressed", []string{"stressed", "overwhelmed", "pressured"}},
	{"confused", []string{"confused", "uncertain", "unclear"}},
	{"hopeful", []string{"hopeful", "optimistic", "positive"}},
	{"angry", []string{"angry", "frustrated", "annoyed"}},
	{"calm", []string{"calm", "relaxed", "peaceful"}},
}

type country struct {
	code  string
	names []string
	// codes are matched case-sensitively so "us" in prose does not match.
	codes []string
}

var countryTable = []country{
	{"US", []string{"united states", "america"}, []string{"US", "USA"}},
	{"CA", []string{"canada"}, []string{"CA"}},
	{"GB", []string{"united kingdom", "britain", "england"}, []string{"UK", "GB"}},
	{"AU", []string{"australia"}, []string{"AU"}},
	{"NZ", []string{"new zealand"}, []string{"NZ"}},
	{"SG", []string{"singapore"}, []string{"SG"}},
	{"ID", []string{"indonesia"}, nil},
	{"MY", []string{"malaysia"}, nil},
	{"PH", []string{"philippines"}, nil},
	{"IN", []string{"india"}, nil},
	{"DE", []string{"germany"}, nil},
	{"FR", []string{"france"}, nil},
}

// descriptions are the canonical paraphrasings embedded for semantic
// matching, one per analytic intent.
var descriptions = map[domain.Intent]string{
	domain.IntentCustomerSegments: `Group or categorize customers by their behavior, value, or characteristics.
Segment customers into different types or groups.
Show me different customer categories or classifications.
How can we divide our customers into segments?`,
	domain.IntentCustomerValue: `Show the most valuable customers by lifetime value or total spending.
Who are our top customers, best customers, or highest value clients?
Which customers spend the most or generate the most revenue?
Customer lifetime value rankings or CLV analysis.`,
	domain.IntentRepeatCustomers: `Identify loyal customers who make repeat purchases or return to buy again.
Show customer retention rates or returning customer analysis.
How many customers come back versus one-time buyers?
Analyze customer loyalty and repeat purchase behavior.`,
	domain.IntentPurchasesByAge: `Show purchases or revenue broken down by customer age.
Which age groups buy most or spend most?
Customer demographics by age bracket or generation.
Sales analysis by age range or age demographics.`,
	domain.IntentPaymentTime: `How long does it take customers to complete payment after ordering?
Average time from order creation to payment completion.
Payment duration or time between order and payment.
How fast do customers pay after placing orders?`,
	domain.IntentFastSlowPayers: `Which customers pay quickly versus slowly?
Segment customers by payment speed or payment velocity.
Show fast payers and slow payers comparison.
Analyze customer payment behavior and speed patterns.`,
	domain.IntentAbandonedCarts: `Which orders were abandoned or not completed?
Show customers who didn't finish payment or left items unpaid.
Incomplete orders or pending payment analysis.
Cart abandonment rate and abandoned order details.`,
	domain.IntentUnpaidOrdersCount: `How many orders are unpaid or pending payment?
Total count of incomplete or unpaid transactions.
Number of orders waiting for payment.
Volume of unpaid orders and their total value.`,
	domain.IntentTrendingTopics: `What are customers asking about most frequently?
Show popular topics, hot topics, or trending questions.
What themes or subjects are most common in customer inquiries?
Top discussion topics or most mentioned themes.`,
	domain.IntentTopicRevenue: `Which topics or themes generate the most revenue or income?
Show profitable topics or high-earning question categories.
Revenue analysis by topic or theme performance.
What subjects or topics drive the most sales?`,
	domain.IntentTopicsByEmotion: `What topics are anxious, happy, stressed, or worried customers asking about?
Show topics filtered by customer emotional state or mood.
What do customers with specific emotions talk about?
Topic analysis for customers feeling a particular way.`,
	domain.IntentQuestionPatterns: `What kinds of questions do customers ask and how often?
Show recurring question themes or question patterns.
How many questions were asked and which themes repeat?
Analyze the structure and frequency of customer questions.`,
	domain.IntentEmotions: `What emotions or feelings are customers expressing?
Show customer mood distribution or emotional tone breakdown.
Are customers happy, sad, anxious, or stressed?
Emotional sentiment analysis across customer interactions.`,
	domain.IntentEmotionConversion: `Which emotions lead to completed purchases or conversions?
Do happy or anxious customers convert better?
Correlation between customer emotion and payment completion.
How does emotional state impact conversion rates?`,
	domain.IntentHighRisk: `Which customers need support or are showing distress?
Identify customers with negative emotions who may need help.
Show at-risk customers or those expressing concern.
Flag customers who might be struggling or need attention.`,
	domain.IntentPaymentRate: `What percentage of orders result in completed payments?
Show conversion rate, success rate, or completion rate.
How many customers actually pay versus abandon?
Payment success metrics or conversion statistics.`,
	domain.IntentRevenueTrends: `Show revenue, sales, or income over time.
What are our earnings trends daily, weekly, or monthly?
Revenue growth patterns or sales performance over periods.
Financial results, sales metrics, or income statistics.
How is our performance or how are we doing financially?`,
	domain.IntentProductPerformance: `Which products sell best or generate most revenue?
Show top-selling products or best performers.
Product revenue rankings or sales by product.
What are our most successful or profitable products?`,
	domain.IntentCustomerNeeds: `What are customers looking for or seeking?
Show customer needs, wants, or requirements.
What do customers need help with or want to achieve?
Customer intent analysis or goal identification.`,
	domain.IntentUnmetNeeds: `What customer needs aren't being fulfilled?
Show service gaps or unfulfilled requirements.
Where are we failing to meet customer expectations?
Missing services or unaddressed customer needs.`,
	domain.IntentSentimentOverview: `Overall customer satisfaction or happiness levels.
Are customers generally positive or negative?
Customer sentiment distribution or feedback analysis.
How do customers feel about us overall?`,
	domain.IntentSentimentProduct: `How do customers feel about each product?
Show sentiment broken down by product.
Which products make customers happy or unhappy?
Product-level satisfaction or sentiment comparison.`,
	domain.IntentKeywords: `What words or terms do customers use most frequently?
Show popular keywords, common phrases, or frequent mentions.
Top words or most-used terminology in customer communications.
Word frequency analysis or keyword trends.`,
	domain.IntentRevenueByCountry: `Show revenue, sales, or income by country or location.
Which countries or regions generate most revenue?
Geographic revenue breakdown or sales by location.
Earnings per country or international sales analysis.`,
	domain.IntentTopCountriesSales: `Which countries have the most customers or orders?
Show top countries by number of sales or transactions.
Country rankings by order volume or customer count.
Best-performing countries or regions by sales volume.`,
	domain.IntentCountryPerformance: `Compare performance metrics across different countries.
Show country-level conversion rates or success metrics.
How do different countries or regions perform?
Geographic performance comparison or country benchmarking.`,
	domain.IntentCountryGrowth: `Which countries are growing or declining?
Show country growth trends or changes over time.
Geographic expansion or contraction analysis.
How are different countries trending?`,
	domain.IntentCountryLTV: `Customer lifetime value by country or geographic location.
Which countries have the most valuable customers?
Average customer worth by country or region.
Geographic CLV analysis or country value rankings.`,
	domain.IntentCountrySummary: `Overall geographic distribution or location overview.
Show all countries we operate in or serve.
Complete country breakdown or geographic summary.
Dashboard view of all location metrics.`,
}

// Descriptions returns a copy of the canonical description per intent.
func Descriptions() map[domain.Intent]string {
	out := make(map[domain.Intent]string, len(descriptions))
	for k, v := range descriptions {
		out[k] = v
	}
	return out
}
