package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"analytics-agent/internal/domain"
)

func customerSegments(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(withCountry(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}, p.CountryFilter)),
		stage("$group", bson.M{
			"_id":              "$customer_id",
			"total_orders":     bson.M{"$sum": 1},
			"total_spent":      bson.M{"$sum": "$total_price"},
			"avg_order_value":  bson.M{"$avg": "$total_price"},
			"completed_orders": paidCount(),
		}),
		stage("$addFields", bson.M{"conversion_rate": ratePercent("completed_orders", "total_orders")}),
		sortStage(desc("total_spent")),
	}
	return s.aggregate(ctx, "get_customer_segments", pipeline)
}

func customerLifetimeValue(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(withCountry(bson.M{"customer_id": bson.M{"$ne": nil}}, p.CountryFilter)),
		stage("$group", bson.M{
			"_id":             "$customer_id",
			"total_orders":    bson.M{"$sum": 1},
			"total_revenue":   bson.M{"$sum": "$total_price"},
			"avg_order_value": bson.M{"$avg": "$total_price"},
			"first_order":     bson.M{"$min": "$created_at"},
			"last_order":      bson.M{"$max": "$created_at"},
		}),
		sortStage(desc("total_revenue")),
		limitStage(p.LimitOr(20)),
	}
	return s.aggregate(ctx, "get_customer_lifetime_value", pipeline)
}

func repeatCustomers(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{
			"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))},
			"customer_id":    bson.M{"$ne": nil},
		}),
		stage("$group", bson.M{"_id": "$customer_id", "order_count": bson.M{"$sum": 1}}),
		stage("$group", bson.M{
			"_id":            bson.M{"$cond": bson.A{bson.M{"$gt": bson.A{"$order_count", 1}}, "repeat", "one_time"}},
			"customer_count": bson.M{"$sum": 1},
		}),
	}
	rows, err := s.aggregate(ctx, "get_repeat_customers", pipeline)
	if err != nil {
		return nil, err
	}

	var repeat, oneTime float64
	for _, r := range rows {
		switch r["_id"] {
		case "repeat":
			repeat = num(r["customer_count"])
		case "one_time":
			oneTime = num(r["customer_count"])
		}
	}
	return bson.M{
		"repeat":      repeat,
		"one_time":    oneTime,
		"repeat_rate": pct(repeat, repeat+oneTime),
	}, nil
}

// Age buckets are lower bounds; the last bound caps implausible ages.
var ageBoundaries = bson.A{0, 18, 25, 35, 45, 55, 65, 130}

var ageLabels = map[int]string{
	0:  "under 18",
	18: "18-24",
	25: "25-34",
	35: "35-44",
	45: "45-54",
	55: "55-64",
	65: "65+",
}

func purchasesByAge(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{
			"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))},
			"payment_status": paidStatus,
			fieldAge:         bson.M{"$type": "number"},
		}),
		stage("$bucket", bson.M{
			"groupBy":    "$" + fieldAge,
			"boundaries": ageBoundaries,
			"default":    "unknown",
			"output": bson.M{
				"orders":           bson.M{"$sum": 1},
				"total_revenue":    bson.M{"$sum": "$total_price"},
				"avg_order_value":  bson.M{"$avg": "$total_price"},
				"unique_customers": bson.M{"$addToSet": "$customer_id"},
			},
		}),
		stage("$addFields", bson.M{"customer_count": bson.M{"$size": "$unique_customers"}}),
		stage("$project", bson.M{"unique_customers": 0}),
	}
	rows, err := s.aggregate(ctx, "get_purchases_by_age", pipeline)
	if err != nil {
		return nil, err
	}

	var totalRevenue float64
	for _, r := range rows {
		totalRevenue += num(r["total_revenue"])
	}
	for _, r := range rows {
		label := "unknown"
		if _, isDefault := r["_id"].(string); !isDefault {
			if l, ok := ageLabels[int(num(r["_id"]))]; ok {
				label = l
			}
		}
		r["age_group"] = label
		r["avg_order_value"] = round2(num(r["avg_order_value"]))
		r["revenue_percentage"] = pct(num(r["total_revenue"]), totalRevenue)
		delete(r, "_id")
	}
	return bson.M{
		"age_groups":    rows,
		"total_revenue": round2(totalRevenue),
		"period_days":   p.PeriodOr(30),
	}, nil
}

// paidWithDuration selects paid orders with a usable payment date and adds
// the order-to-payment duration in hours.
func paidWithDuration(since time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		matchStage(bson.M{
			"created_at":     bson.M{"$gte": since},
			"payment_status": paidStatus,
			"payment_date":   bson.M{"$exists": true, "$ne": nil, "$type": "date"},
		}),
		stage("$addFields", bson.M{"payment_duration_ms": bson.M{"$subtract": bson.A{"$payment_date", "$created_at"}}}),
		matchStage(bson.M{"payment_duration_ms": bson.M{"$gte": 0}}),
		stage("$addFields", bson.M{"payment_duration_hours": bson.M{"$divide": bson.A{"$payment_duration_ms", 3600000}}}),
	}
}

func paymentTime(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := append(paidWithDuration(s.since(p.PeriodOr(30))),
		stage("$group", bson.M{
			"_id":                    nil,
			"avg_payment_time_hours": bson.M{"$avg": "$payment_duration_hours"},
			"min_payment_time_hours": bson.M{"$min": "$payment_duration_hours"},
			"max_payment_time_hours": bson.M{"$max": "$payment_duration_hours"},
			"total_paid_orders":      bson.M{"$sum": 1},
			"durations_hours":        bson.M{"$push": "$payment_duration_hours"},
		}),
	)
	rows, err := s.aggregate(ctx, "get_payment_time_analysis", pipeline)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || num(rows[0]["total_paid_orders"]) == 0 {
		return bson.M{"message": "No paid orders with valid payment dates found in this period"}, nil
	}

	r := rows[0]
	avg := num(r["avg_payment_time_hours"])
	return bson.M{
		"avg_payment_time_hours":    round2(avg),
		"avg_payment_time_minutes":  round2(avg * 60),
		"avg_payment_time_readable": readableHours(avg),
		"median_payment_time_hours": round2(median(r["durations_hours"])),
		"min_payment_time_hours":    round2(num(r["min_payment_time_hours"])),
		"max_payment_time_hours":    round2(num(r["max_payment_time_hours"])),
		"total_paid_orders":         num(r["total_paid_orders"]),
	}, nil
}

func median(v any) float64 {
	arr, _ := v.(bson.A)
	vals := make([]float64, 0, len(arr))
	for _, x := range arr {
		if f := num(x); f >= 0 {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

func fastSlowPayers(ctx context.Context, s *source, p domain.Params) (any, error) {
	period := p.PeriodOr(30)
	threshold := p.ThresholdHoursOr(24)
	since := s.since(period)

	totalPaid, err := s.q.Count(ctx, bson.M{"created_at": bson.M{"$gte": since}, "payment_status": paidStatus})
	if err != nil {
		return nil, fmt.Errorf("get_fast_vs_slow_payers: %w", err)
	}
	withDate, err := s.q.Count(ctx, bson.M{
		"created_at":     bson.M{"$gte": since},
		"payment_status": paidStatus,
		"payment_date":   bson.M{"$exists": true, "$ne": nil, "$type": "date"},
	})
	if err != nil {
		return nil, fmt.Errorf("get_fast_vs_slow_payers: %w", err)
	}

	pipeline := append(paidWithDuration(since),
		stage("$group", bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$lte": bson.A{"$payment_duration_hours", threshold}}, "fast_payers", "slow_payers",
			}},
			"count":                  bson.M{"$sum": 1},
			"avg_payment_time_hours": bson.M{"$avg": "$payment_duration_hours"},
			"min_payment_time_hours": bson.M{"$min": "$payment_duration_hours"},
			"max_payment_time_hours": bson.M{"$max": "$payment_duration_hours"},
			"total_revenue":          bson.M{"$sum": "$total_price"},
		}),
		sortStage(asc("_id")),
	)
	rows, err := s.aggregate(ctx, "get_fast_vs_slow_payers", pipeline)
	if err != nil {
		return nil, err
	}

	segments := map[string]bson.M{
		"fast_payers": emptySegment(),
		"slow_payers": emptySegment(),
	}
	var analyzed float64
	for _, r := range rows {
		name, _ := r["_id"].(string)
		if _, ok := segments[name]; !ok {
			continue
		}
		avg := num(r["avg_payment_time_hours"])
		segments[name] = bson.M{
			"count":                     num(r["count"]),
			"avg_payment_time_hours":    round2(avg),
			"min_payment_time_hours":    round2(num(r["min_payment_time_hours"])),
			"max_payment_time_hours":    round2(num(r["max_payment_time_hours"])),
			"avg_payment_time_readable": readableHours(avg),
			"total_revenue":             num(r["total_revenue"]),
		}
		analyzed += num(r["count"])
	}

	thresholdText := readableHours(threshold)
	if threshold < 1 {
		thresholdText = formatMinutes(threshold)
	}
	return bson.M{
		"period_days":                    period,
		"threshold_hours":                threshold,
		"threshold_readable":             thresholdText,
		"total_paid_orders_in_period":    totalPaid,
		"orders_with_valid_payment_date": withDate,
		"orders_analyzed":                analyzed,
		"fast_payers":                    segments["fast_payers"],
		"slow_payers":                    segments["slow_payers"],
	}, nil
}

func emptySegment() bson.M {
	return bson.M{
		"count":                     0,
		"avg_payment_time_hours":    0,
		"min_payment_time_hours":    0,
		"max_payment_time_hours":    0,
		"avg_payment_time_readable": "0h 0m",
		"total_revenue":             0,
	}
}

func abandonedCarts(ctx context.Context, s *source, p domain.Params) (any, error) {
	hours := p.HoursThresholdOr(48)
	cutoff := s.now().Add(-time.Duration(hours * float64(time.Hour))).UTC()
	pipeline := mongo.Pipeline{
		matchStage(bson.M{"payment_status": unpaidStatus, "created_at": bson.M{"$lte": cutoff}}),
		stage("$group", bson.M{
			"_id":                   "$customer_id",
			"abandoned_orders":      bson.M{"$sum": 1},
			"total_abandoned_value": bson.M{"$sum": "$total_price"},
			"topics":                bson.M{"$addToSet": "$topics"},
			"emotions":              bson.M{"$addToSet": "$emotional_tone"},
			"last_abandoned":        bson.M{"$max": "$created_at"},
		}),
		sortStage(desc("total_abandoned_value")),
		limitStage(50),
	}
	return s.aggregate(ctx, "get_abandoned_carts", pipeline)
}

func unpaidOrdersCount(ctx context.Context, s *source, p domain.Params) (any, error) {
	period := p.PeriodOr(30)
	pipeline := mongo.Pipeline{
		matchStage(bson.M{
			"reference_date": bson.M{"$gte": s.since(period)},
			"payment_status": unpaidStatus,
		}),
		stage("$group", bson.M{
			"_id":         nil,
			"count":       bson.M{"$sum": 1},
			"total_value": bson.M{"$sum": "$total_price"},
		}),
	}
	rows, err := s.aggregate(ctx, "get_unpaid_orders_count", pipeline)
	if err != nil {
		return nil, err
	}
	out := bson.M{"unpaid_orders": 0.0, "total_unpaid_value": 0.0, "period_days": period}
	if len(rows) > 0 {
		out["unpaid_orders"] = num(rows[0]["count"])
		out["total_unpaid_value"] = round2(num(rows[0]["total_value"]))
	}
	return out, nil
}
