package analytics

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"analytics-agent/internal/domain"
)

var groupFormats = map[string]string{
	"day":   "%Y-%m-%d",
	"week":  "%Y-W%U",
	"month": "%Y-%m",
}

func paymentSuccessRate(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(withCountry(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}, p.CountryFilter)),
		stage("$group", bson.M{
			"_id":         "$payment_status",
			"count":       bson.M{"$sum": 1},
			"total_value": bson.M{"$sum": "$total_price"},
		}),
	}
	rows, err := s.aggregate(ctx, "get_payment_success_rate", pipeline)
	if err != nil {
		return nil, err
	}

	var paidN, paidRev, unpaidN, unpaidRev float64
	for _, r := range rows {
		// Anything not explicitly paid, including a missing status, counts as unpaid.
		if r["_id"] != nil && num(r["_id"]) == paidStatus {
			paidN += num(r["count"])
			paidRev += num(r["total_value"])
			continue
		}
		unpaidN += num(r["count"])
		unpaidRev += num(r["total_value"])
	}
	return bson.M{
		"paid":         bson.M{"count": paidN, "revenue": round2(paidRev)},
		"unpaid":       bson.M{"count": unpaidN, "lost_revenue": round2(unpaidRev)},
		"success_rate": pct(paidN, paidN+unpaidN),
	}, nil
}

func revenueTrends(ctx context.Context, s *source, p domain.Params) (any, error) {
	period := p.PeriodOr(30)
	groupBy := p.GroupBy
	format, ok := groupFormats[groupBy]
	if !ok {
		groupBy, format = "day", groupFormats["day"]
	}
	since := s.since(period)

	pipeline := mongo.Pipeline{
		matchStage(withCountry(bson.M{
			"reference_date": bson.M{"$gte": since},
			"payment_status": paidStatus,
		}, p.CountryFilter)),
		stage("$group", bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   format,
				"date":     "$reference_date",
				"timezone": s.offset(),
			}},
			"revenue":         bson.M{"$sum": "$total_price"},
			"orders":          bson.M{"$sum": 1},
			"avg_order_value": bson.M{"$avg": "$total_price"},
		}),
		sortStage(asc("_id")),
	}
	rows, err := s.aggregate(ctx, "get_revenue_trends", pipeline)
	if err != nil {
		return nil, err
	}
	if !p.ComparisonMode {
		return rows, nil
	}

	var curRevenue, curOrders float64
	for _, r := range rows {
		curRevenue += num(r["revenue"])
		curOrders += num(r["orders"])
	}
	prev, err := s.aggregate(ctx, "get_revenue_trends", mongo.Pipeline{
		matchStage(withCountry(bson.M{
			"reference_date": bson.M{"$gte": s.since(2 * period), "$lt": since},
			"payment_status": paidStatus,
		}, p.CountryFilter)),
		stage("$group", bson.M{
			"_id":     nil,
			"revenue": bson.M{"$sum": "$total_price"},
			"orders":  bson.M{"$sum": 1},
		}),
	})
	if err != nil {
		return nil, err
	}
	var prevRevenue, prevOrders float64
	if len(prev) > 0 {
		prevRevenue = num(prev[0]["revenue"])
		prevOrders = num(prev[0]["orders"])
	}
	return bson.M{
		"trends":                 rows,
		"group_by":               groupBy,
		"period_days":            period,
		"current":                bson.M{"revenue": round2(curRevenue), "orders": curOrders},
		"previous":               bson.M{"revenue": round2(prevRevenue), "orders": prevOrders},
		"revenue_change_percent": growth(curRevenue, prevRevenue),
		"order_change_percent":   growth(curOrders, prevOrders),
	}, nil
}

// growth is the percentage change from prev to cur. A series that appears
// from nothing counts as 100% growth.
func growth(cur, prev float64) float64 {
	switch {
	case prev > 0:
		return round2((cur - prev) / prev * 100)
	case cur > 0:
		return 100
	}
	return 0
}

func productPerformance(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{
			"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))},
			"payment_status": paidStatus,
		}),
		stage("$group", bson.M{
			"_id":           "$product_id",
			"total_revenue": bson.M{"$sum": "$total_price"},
			"order_count":   bson.M{"$sum": 1},
			"avg_price":     bson.M{"$avg": "$total_price"},
		}),
		sortStage(desc("total_revenue")),
		limitStage(p.LimitOr(10)),
	}
	return s.aggregate(ctx, "get_product_performance", pipeline)
}
