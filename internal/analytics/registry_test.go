package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zaptest"

	"analytics-agent/internal/domain"
)

type fakeQuerier struct {
	pipelines []mongo.Pipeline
	filters   []bson.M
	rows      [][]bson.M
	counts    []int64
	err       error
}

func (f *fakeQuerier) Aggregate(_ context.Context, p mongo.Pipeline) ([]bson.M, error) {
	f.pipelines = append(f.pipelines, p)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.rows) == 0 {
		return nil, nil
	}
	out := f.rows[0]
	f.rows = f.rows[1:]
	return out, nil
}

func (f *fakeQuerier) Count(_ context.Context, filter bson.M) (int64, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.counts) == 0 {
		return 0, nil
	}
	n := f.counts[0]
	f.counts = f.counts[1:]
	return n, nil
}

type recordingObserver struct {
	tools []string
	errs  []error
}

func (o *recordingObserver) ToolInvoked(tool string, err error) {
	o.tools = append(o.tools, tool)
	o.errs = append(o.errs, err)
}

// 2024-03-10 06:00 in UTC+8.
var fixedNow = time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, q Querier, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	r, err := NewRegistry(q, opts...)
	require.NoError(t, err)
	return r
}

func firstMatch(t *testing.T, p mongo.Pipeline) bson.M {
	t.Helper()
	require.NotEmpty(t, p)
	require.Equal(t, "$match", p[0][0].Key)
	m, ok := p[0][0].Value.(bson.M)
	require.True(t, ok)
	return m
}

func lastStage(p mongo.Pipeline) bson.E {
	return p[len(p)-1][0]
}

func TestNewRegistry_CoversEveryIntent(t *testing.T) {
	r := newTestRegistry(t, &fakeQuerier{})
	require.Len(t, r.Tools(), len(domain.AnalyticIntents()))
	for _, in := range domain.AnalyticIntents() {
		op, ok := r.Operation(in)
		require.True(t, ok, in)
		require.NotEmpty(t, op.Tool)
		require.NotEmpty(t, op.Description)
		require.NotEmpty(t, op.context(domain.Params{}), in)
	}
}

func TestNewRegistry_RequiresQuerier(t *testing.T) {
	_, err := NewRegistry(nil)
	require.Error(t, err)
}

func TestExecute_WindowStartsAtLocalMidnight(t *testing.T) {
	q := &fakeQuerier{}
	r := newTestRegistry(t, q)

	_, err := r.Execute(context.Background(), domain.IntentCustomerSegments, domain.Params{PeriodDays: domain.Float(7)}, "")
	require.NoError(t, err)

	match := firstMatch(t, q.pipelines[0])
	since := match["reference_date"].(bson.M)["$gte"].(time.Time)
	require.Equal(t, time.Date(2024, 3, 2, 16, 0, 0, 0, time.UTC), since)
	require.Equal(t, time.UTC, since.Location())
}

func TestExecute_DropsParamsTheOperationDoesNotRead(t *testing.T) {
	q := &fakeQuerier{}
	r := newTestRegistry(t, q)

	p := domain.Params{PeriodDays: domain.Float(90), Limit: domain.Int(5), CountryFilter: "US", GroupBy: "week"}
	res, err := r.Execute(context.Background(), domain.IntentCustomerValue, p, "top 5 customers in the US")
	require.NoError(t, err)

	require.Equal(t, "get_customer_lifetime_value", res.Tool)
	require.Nil(t, res.Params.PeriodDays)
	require.Empty(t, res.Params.GroupBy)
	require.Equal(t, 5, *res.Params.Limit)
	require.Equal(t, "US", res.Params.CountryFilter)
	require.Equal(t, "customer lifetime value rankings for customers in US", res.Context)

	require.Equal(t, "US", firstMatch(t, q.pipelines[0])[fieldCountry])
	require.Equal(t, bson.E{Key: "$limit", Value: 5}, lastStage(q.pipelines[0]))
}

func TestExecute_RevenueTrendsGroupByFromQuestion(t *testing.T) {
	tests := []struct {
		question string
		groupBy  string
		format   string
	}{
		{"Show weekly revenue", "week", "%Y-W%U"},
		{"Revenue per month please", "month", "%Y-%m"},
		{"Revenue trends", "day", "%Y-%m-%d"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			q := &fakeQuerier{}
			r := newTestRegistry(t, q)

			res, err := r.Execute(context.Background(), domain.IntentRevenueTrends, domain.Params{}, tt.question)
			require.NoError(t, err)
			require.Equal(t, tt.groupBy, res.Params.GroupBy)
			require.Equal(t, "revenue trends by "+tt.groupBy, res.Context)

			group := q.pipelines[0][1][0].Value.(bson.M)
			dateExpr := group["_id"].(bson.M)["$dateToString"].(bson.M)
			require.Equal(t, tt.format, dateExpr["format"])
			require.Equal(t, "+08:00", dateExpr["timezone"])
		})
	}
}

func TestExecute_RevenueTrendsComparison(t *testing.T) {
	q := &fakeQuerier{rows: [][]bson.M{
		{
			{"_id": "2024-03-08", "revenue": 60.0, "orders": int32(2)},
			{"_id": "2024-03-09", "revenue": 90.0, "orders": int32(3)},
		},
		{{"_id": nil, "revenue": 100.0, "orders": int32(4)}},
	}}
	r := newTestRegistry(t, q)

	p := domain.Params{PeriodDays: domain.Float(7), ComparisonMode: true}
	res, err := r.Execute(context.Background(), domain.IntentRevenueTrends, p, "compare revenue")
	require.NoError(t, err)
	require.Len(t, q.pipelines, 2)

	prevWindow := firstMatch(t, q.pipelines[1])["reference_date"].(bson.M)
	require.Equal(t, time.Date(2024, 2, 24, 16, 0, 0, 0, time.UTC), prevWindow["$gte"])
	require.Equal(t, time.Date(2024, 3, 2, 16, 0, 0, 0, time.UTC), prevWindow["$lt"])

	data := res.Data.(bson.M)
	require.Equal(t, bson.M{"revenue": 150.0, "orders": 5.0}, data["current"])
	require.Equal(t, bson.M{"revenue": 100.0, "orders": 4.0}, data["previous"])
	require.Equal(t, 50.0, data["revenue_change_percent"])
	require.Equal(t, 25.0, data["order_change_percent"])
	require.Equal(t, "object", res.DataType)
}

func TestExecute_UnknownIntent(t *testing.T) {
	r := newTestRegistry(t, &fakeQuerier{})
	_, err := r.Execute(context.Background(), domain.IntentUnknown, domain.Params{}, "")
	require.ErrorIs(t, err, ErrUnknownIntent)
}

func TestExecute_QueryFailureNamesTheTool(t *testing.T) {
	obs := &recordingObserver{}
	q := &fakeQuerier{err: errors.New("connection reset")}
	r := newTestRegistry(t, q, WithObserver(obs))

	_, err := r.Execute(context.Background(), domain.IntentKeywords, domain.Params{}, "")
	require.ErrorContains(t, err, "get_keyword_frequency: connection reset")
	require.Equal(t, []string{"get_keyword_frequency"}, obs.tools)
	require.Error(t, obs.errs[0])
}

func TestCall_UnknownTool(t *testing.T) {
	r := newTestRegistry(t, &fakeQuerier{})
	_, err := r.Call(context.Background(), "drop_database", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestCall_LooseArguments(t *testing.T) {
	q := &fakeQuerier{rows: [][]bson.M{{{"_id": "c1", "total_revenue": 10.0}}}}
	r := newTestRegistry(t, q)

	out, err := r.Call(context.Background(), "get_customer_lifetime_value", map[string]any{
		"top_n":       3.0,
		"period_days": 10.0,
		"bogus":       true,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, bson.E{Key: "$limit", Value: 3}, lastStage(q.pipelines[0]))
}

func TestPaymentSuccessRate(t *testing.T) {
	q := &fakeQuerier{rows: [][]bson.M{{
		{"_id": int32(1), "count": int32(3), "total_value": 30.0},
		{"_id": int32(0), "count": int32(1), "total_value": 10.0},
		{"_id": nil, "count": int32(1), "total_value": 5.0},
	}}}
	r := newTestRegistry(t, q)

	res, err := r.Execute(context.Background(), domain.IntentPaymentRate, domain.Params{}, "")
	require.NoError(t, err)
	require.Equal(t, bson.M{
		"paid":         bson.M{"count": 3.0, "revenue": 30.0},
		"unpaid":       bson.M{"count": 2.0, "lost_revenue": 15.0},
		"success_rate": 60.0,
	}, res.Data)
}

func TestCountryGrowth(t *testing.T) {
	q := &fakeQuerier{rows: [][]bson.M{
		{
			{"_id": "US", "revenue": 200.0, "orders": int32(4)},
			{"_id": "CA", "revenue": 50.0, "orders": int32(1)},
		},
		{
			{"_id": "US", "revenue": 100.0, "orders": int32(2)},
			{"_id": "GB", "revenue": 30.0, "orders": int32(3)},
		},
	}}
	r := newTestRegistry(t, q)

	res, err := r.Execute(context.Background(), domain.IntentCountryGrowth, domain.Params{}, "")
	require.NoError(t, err)

	data := res.Data.(bson.M)
	rows := data["comparison"].([]bson.M)
	require.Len(t, rows, 3)
	require.Equal(t, "US", rows[0]["country"])
	require.Equal(t, 100.0, rows[0]["revenue_growth_percent"])
	require.Equal(t, "CA", rows[1]["country"])
	require.Equal(t, 100.0, rows[1]["revenue_growth_percent"])
	require.Equal(t, "GB", rows[2]["country"])
	require.Equal(t, -100.0, rows[2]["revenue_growth_percent"])
	require.Equal(t, 30.0, data["current_period_days"])

	// Both windows require a country.
	for _, p := range q.pipelines {
		require.Equal(t, countryPresent(), firstMatch(t, p)[fieldCountry])
	}
}

func TestRevenueByCountry_Percentages(t *testing.T) {
	q := &fakeQuerier{rows: [][]bson.M{{
		{"country": "US", "total_revenue": 75.0, "total_orders": int32(3)},
		{"country": "GB", "total_revenue": 25.0, "total_orders": int32(1)},
	}}}
	r := newTestRegistry(t, q)

	res, err := r.Execute(context.Background(), domain.IntentRevenueByCountry, domain.Params{}, "")
	require.NoError(t, err)
	data := res.Data.(bson.M)
	rows := data["countries"].([]bson.M)
	require.Equal(t, 75.0, rows[0]["revenue_percentage"])
	require.Equal(t, 25.0, rows[1]["order_percentage"])
	require.Equal(t, 100.0, data["total_revenue"])
	require.Equal(t, 2, data["countries_count"])
}

func TestFastSlowPayers_FillsMissingSegment(t *testing.T) {
	q := &fakeQuerier{
		counts: []int64{10, 8},
		rows: [][]bson.M{{
			{"_id": "fast_payers", "count": int32(6), "avg_payment_time_hours": 1.5, "total_revenue": 120.0},
		}},
	}
	r := newTestRegistry(t, q)

	res, err := r.Execute(context.Background(), domain.IntentFastSlowPayers, domain.Params{ThresholdHours: domain.Float(0.5)}, "")
	require.NoError(t, err)
	data := res.Data.(bson.M)
	require.Equal(t, int64(10), data["total_paid_orders_in_period"])
	require.Equal(t, int64(8), data["orders_with_valid_payment_date"])
	require.Equal(t, 6.0, data["orders_analyzed"])
	require.Equal(t, "30m", data["threshold_readable"])
	require.Equal(t, "1h 30m", data["fast_payers"].(bson.M)["avg_payment_time_readable"])
	require.Equal(t, emptySegment(), data["slow_payers"])
}

func TestTopicsByEmotion_Filter(t *testing.T) {
	tests := []struct {
		name   string
		filter domain.EmotionFilter
		want   any
	}{
		{"single", domain.EmotionFilter{"anxious"}, "anxious"},
		{"many", domain.EmotionFilter{"sad", "stressed"}, bson.M{"$in": bson.A{"sad", "stressed"}}},
		{"none", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{}
			r := newTestRegistry(t, q)
			res, err := r.Execute(context.Background(), domain.IntentTopicsByEmotion, domain.Params{EmotionFilter: tt.filter}, "")
			require.NoError(t, err)
			require.Equal(t, tt.want, firstMatch(t, q.pipelines[0])["emotional_tone"])
			if tt.filter != nil {
				require.Contains(t, res.Context, "from ")
			}
		})
	}
}

func TestQuestionPatterns(t *testing.T) {
	topics := bson.A{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		topics = append(topics, bson.M{"_id": name, "count": int32(2)})
	}
	q := &fakeQuerier{rows: [][]bson.M{{{
		"questions": bson.A{bson.M{"_id": nil, "total": int32(42)}},
		"topics":    topics,
	}}}}
	r := newTestRegistry(t, q)

	res, err := r.Execute(context.Background(), domain.IntentQuestionPatterns, domain.Params{}, "")
	require.NoError(t, err)
	data := res.Data.(bson.M)
	require.Equal(t, 42.0, data["total_questions"])
	require.Equal(t, 12, data["unique_topics"])
	require.Len(t, data["top_topics"], 10)
}

func TestPurchasesByAge_Labels(t *testing.T) {
	q := &fakeQuerier{rows: [][]bson.M{{
		{"_id": int32(25), "orders": int32(2), "total_revenue": 30.0, "avg_order_value": 15.0},
		{"_id": "unknown", "orders": int32(1), "total_revenue": 10.0, "avg_order_value": 10.0},
	}}}
	r := newTestRegistry(t, q)

	res, err := r.Execute(context.Background(), domain.IntentPurchasesByAge, domain.Params{}, "")
	require.NoError(t, err)
	groups := res.Data.(bson.M)["age_groups"].([]bson.M)
	require.Equal(t, "25-34", groups[0]["age_group"])
	require.Equal(t, 75.0, groups[0]["revenue_percentage"])
	require.Equal(t, "unknown", groups[1]["age_group"])
}

func TestDefinitions(t *testing.T) {
	r := newTestRegistry(t, &fakeQuerier{})
	defs := r.Definitions()
	require.Len(t, defs, len(domain.AnalyticIntents()))

	byName := map[string]domain.ToolDefinition{}
	for _, d := range defs {
		byName[d.Name] = d
	}
	require.Empty(t, byName["get_high_risk_customers"].Parameters["properties"])

	trends := byName["get_revenue_trends"].Parameters["properties"].(map[string]any)
	require.Equal(t, []string{"day", "week", "month"}, trends["group_by"].(map[string]any)["enum"])

	accepted, ok := r.Accepts("get_customer_lifetime_value")
	require.True(t, ok)
	require.Equal(t, []string{domain.ParamTopN, domain.ParamCountryFilter}, accepted)
	_, ok = r.Accepts("nope")
	require.False(t, ok)
}

func TestSummarize(t *testing.T) {
	typ, sum := Summarize([]bson.M{{}, {}})
	require.Equal(t, "list", typ)
	require.Equal(t, "2 rows", sum)

	typ, sum = Summarize(bson.M{"b": 1, "a": 2})
	require.Equal(t, "object", typ)
	require.Equal(t, "fields: a, b", sum)
}

func TestGroupByFor(t *testing.T) {
	require.Equal(t, "week", GroupByFor("Revenue by WEEK and month"))
	require.Equal(t, "month", GroupByFor("monthly"))
	require.Equal(t, "day", GroupByFor("daily"))
}
