package analytics

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"analytics-agent/internal/domain"
)

// Country operations report revenue from the affiliate amount, not the
// order price.
const countryRevenue = "$clickbank_amount"

// paidWithCountry matches paid orders in the reference_date range that carry
// a country. A set country filter replaces the presence check.
func paidWithCountry(since any, code string) bson.M {
	m := bson.M{
		"reference_date": since,
		"payment_status": paidStatus,
		fieldCountry:     countryPresent(),
	}
	return withCountry(m, code)
}

func revenueByCountry(ctx context.Context, s *source, p domain.Params) (any, error) {
	period := p.PeriodOr(30)
	pipeline := mongo.Pipeline{
		matchStage(paidWithCountry(bson.M{"$gte": s.since(period)}, p.CountryFilter)),
		stage("$group", bson.M{
			"_id":              "$" + fieldCountry,
			"total_revenue":    bson.M{"$sum": countryRevenue},
			"total_orders":     bson.M{"$sum": 1},
			"avg_order_value":  bson.M{"$avg": countryRevenue},
			"unique_customers": bson.M{"$addToSet": "$customer_id"},
		}),
		stage("$project", bson.M{
			"_id":             0,
			"country":         "$_id",
			"total_revenue":   1,
			"total_orders":    1,
			"avg_order_value": bson.M{"$round": bson.A{"$avg_order_value", 2}},
			"customer_count":  bson.M{"$size": "$unique_customers"},
		}),
		sortStage(desc("total_revenue")),
		limitStage(p.LimitOr(20)),
	}
	rows, err := s.aggregate(ctx, "get_revenue_by_country", pipeline)
	if err != nil {
		return nil, err
	}

	var revenue, orders float64
	for _, r := range rows {
		revenue += num(r["total_revenue"])
		orders += num(r["total_orders"])
	}
	for _, r := range rows {
		r["revenue_percentage"] = pct(num(r["total_revenue"]), revenue)
		r["order_percentage"] = pct(num(r["total_orders"]), orders)
	}
	return bson.M{
		"countries":       rows,
		"total_revenue":   round2(revenue),
		"total_orders":    orders,
		"countries_count": len(rows),
		"period_days":     period,
	}, nil
}

func topCountriesBySales(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(paidWithCountry(bson.M{"$gte": s.since(p.PeriodOr(30))}, p.CountryFilter)),
		stage("$group", bson.M{
			"_id":              "$" + fieldCountry,
			"total_sales":      bson.M{"$sum": 1},
			"total_revenue":    bson.M{"$sum": countryRevenue},
			"unique_customers": bson.M{"$addToSet": "$customer_id"},
		}),
		stage("$addFields", bson.M{"customer_count": bson.M{"$size": "$unique_customers"}}),
		stage("$project", bson.M{
			"_id":            0,
			"country":        "$_id",
			"total_sales":    1,
			"total_revenue":  bson.M{"$round": bson.A{"$total_revenue", 2}},
			"customer_count": 1,
			"avg_orders_per_customer": bson.M{"$round": bson.A{
				bson.M{"$divide": bson.A{"$total_sales", bson.M{"$max": bson.A{"$customer_count", 1}}}}, 2,
			}},
		}),
		sortStage(desc("total_sales")),
		limitStage(p.LimitOr(10)),
	}
	return s.aggregate(ctx, "get_top_countries_sales", pipeline)
}

func countryPerformance(ctx context.Context, s *source, p domain.Params) (any, error) {
	paid := bson.M{"$eq": bson.A{"$_id.payment_status", paidStatus}}
	pipeline := mongo.Pipeline{
		matchStage(withCountry(bson.M{
			"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))},
			fieldCountry:     countryPresent(),
		}, p.CountryFilter)),
		stage("$group", bson.M{
			"_id":     bson.M{"country": "$" + fieldCountry, "payment_status": "$payment_status"},
			"count":   bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": countryRevenue},
		}),
		stage("$group", bson.M{
			"_id":           "$_id.country",
			"total_orders":  bson.M{"$sum": "$count"},
			"paid_orders":   bson.M{"$sum": bson.M{"$cond": bson.A{paid, "$count", 0}}},
			"total_revenue": bson.M{"$sum": bson.M{"$cond": bson.A{paid, "$revenue", 0}}},
		}),
		stage("$project", bson.M{
			"_id":          0,
			"country":      "$_id",
			"total_orders": 1,
			"paid_orders":  1,
			"conversion_rate": bson.M{"$round": bson.A{
				bson.M{"$multiply": bson.A{bson.M{"$divide": bson.A{"$paid_orders", "$total_orders"}}, 100}}, 2,
			}},
			"total_revenue": bson.M{"$round": bson.A{"$total_revenue", 2}},
			"avg_order_value": bson.M{"$round": bson.A{
				bson.M{"$cond": bson.A{
					bson.M{"$gt": bson.A{"$paid_orders", 0}},
					bson.M{"$divide": bson.A{"$total_revenue", "$paid_orders"}},
					0,
				}}, 2,
			}},
		}),
		sortStage(desc("conversion_rate")),
	}
	return s.aggregate(ctx, "get_country_performance", pipeline)
}

func countryGrowth(ctx context.Context, s *source, p domain.Params) (any, error) {
	period := p.PeriodOr(30)
	comparison := p.ComparisonDaysOr(30)
	currentStart := s.since(period)
	previousStart := s.since(period + comparison)

	window := func(match bson.M) mongo.Pipeline {
		return mongo.Pipeline{
			matchStage(match),
			stage("$group", bson.M{
				"_id":     "$" + fieldCountry,
				"revenue": bson.M{"$sum": countryRevenue},
				"orders":  bson.M{"$sum": 1},
			}),
		}
	}
	current, err := s.aggregate(ctx, "get_country_growth", window(paidWithCountry(bson.M{"$gte": currentStart}, "")))
	if err != nil {
		return nil, err
	}
	previous, err := s.aggregate(ctx, "get_country_growth",
		window(paidWithCountry(bson.M{"$gte": previousStart, "$lt": currentStart}, "")))
	if err != nil {
		return nil, err
	}

	type totals struct{ curRev, curOrd, prevRev, prevOrd float64 }
	byCountry := map[string]*totals{}
	get := func(r bson.M) *totals {
		code, _ := r["_id"].(string)
		t, ok := byCountry[code]
		if !ok {
			t = &totals{}
			byCountry[code] = t
		}
		return t
	}
	for _, r := range current {
		t := get(r)
		t.curRev, t.curOrd = num(r["revenue"]), num(r["orders"])
	}
	for _, r := range previous {
		t := get(r)
		t.prevRev, t.prevOrd = num(r["revenue"]), num(r["orders"])
	}

	out := make([]bson.M, 0, len(byCountry))
	for code, t := range byCountry {
		out = append(out, bson.M{
			"country":                code,
			"current_revenue":        round2(t.curRev),
			"previous_revenue":       round2(t.prevRev),
			"revenue_growth_percent": growth(t.curRev, t.prevRev),
			"current_orders":         t.curOrd,
			"previous_orders":        t.prevOrd,
			"order_growth_percent":   growth(t.curOrd, t.prevOrd),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := num(out[i]["current_revenue"]), num(out[j]["current_revenue"])
		if ri != rj {
			return ri > rj
		}
		return out[i]["country"].(string) < out[j]["country"].(string)
	})
	return bson.M{
		"comparison":           out,
		"current_period_days":  period,
		"previous_period_days": comparison,
	}, nil
}

func countryLTV(ctx context.Context, s *source, p domain.Params) (any, error) {
	match := paidWithCountry(bson.M{"$gte": s.since(p.PeriodOr(365))}, "")
	match["customer_id"] = bson.M{"$ne": nil}
	pipeline := mongo.Pipeline{
		matchStage(match),
		stage("$group", bson.M{
			"_id":                       bson.M{"country": "$" + fieldCountry, "customer_id": "$customer_id"},
			"customer_lifetime_revenue": bson.M{"$sum": countryRevenue},
			"customer_orders":           bson.M{"$sum": 1},
		}),
		stage("$group", bson.M{
			"_id":                     "$_id.country",
			"total_customers":         bson.M{"$sum": 1},
			"avg_customer_ltv":        bson.M{"$avg": "$customer_lifetime_revenue"},
			"avg_orders_per_customer": bson.M{"$avg": "$customer_orders"},
			"total_revenue":           bson.M{"$sum": "$customer_lifetime_revenue"},
		}),
		stage("$project", bson.M{
			"_id":                     0,
			"country":                 "$_id",
			"total_customers":         1,
			"avg_customer_ltv":        bson.M{"$round": bson.A{"$avg_customer_ltv", 2}},
			"avg_orders_per_customer": bson.M{"$round": bson.A{"$avg_orders_per_customer", 2}},
			"total_revenue":           bson.M{"$round": bson.A{"$total_revenue", 2}},
		}),
		sortStage(desc("avg_customer_ltv")),
		limitStage(p.LimitOr(20)),
	}
	return s.aggregate(ctx, "get_country_ltv", pipeline)
}

func countrySummary(ctx context.Context, s *source, p domain.Params) (any, error) {
	period := p.PeriodOr(30)
	since := bson.M{"$gte": s.since(period)}

	totals, err := s.aggregate(ctx, "get_country_summary", mongo.Pipeline{
		matchStage(bson.M{"reference_date": since, "payment_status": paidStatus}),
		stage("$group", bson.M{
			"_id":           nil,
			"total_revenue": bson.M{"$sum": countryRevenue},
			"total_orders":  bson.M{"$sum": 1},
		}),
	})
	if err != nil {
		return nil, err
	}
	var revenue, orders float64
	if len(totals) > 0 {
		revenue = num(totals[0]["total_revenue"])
		orders = num(totals[0]["total_orders"])
	}

	countries, err := s.aggregate(ctx, "get_country_summary", mongo.Pipeline{
		matchStage(paidWithCountry(since, "")),
		stage("$group", bson.M{
			"_id":     "$" + fieldCountry,
			"revenue": bson.M{"$sum": countryRevenue},
			"orders":  bson.M{"$sum": 1},
		}),
		sortStage(desc("revenue")),
	})
	if err != nil {
		return nil, err
	}

	top := make([]bson.M, 0, 5)
	var topShare float64
	for i, c := range countries {
		if i == 5 {
			break
		}
		share := pct(num(c["revenue"]), revenue)
		topShare += share
		top = append(top, bson.M{
			"country":            c["_id"],
			"revenue":            round2(num(c["revenue"])),
			"orders":             num(c["orders"]),
			"revenue_percentage": share,
		})
	}
	return bson.M{
		"total_revenue":            round2(revenue),
		"total_orders":             orders,
		"total_countries":          len(countries),
		"top_5_countries":          top,
		"top_5_revenue_percentage": round2(topShare),
		"period_days":              period,
	}, nil
}
