package analytics

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"analytics-agent/internal/domain"
)

func customerNeeds(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}),
		stage("$unwind", "$possible_needs"),
		stage("$group", bson.M{"_id": "$possible_needs", "count": bson.M{"$sum": 1}}),
		sortStage(desc("count")),
	}
	return s.aggregate(ctx, "get_customer_needs_distribution", pipeline)
}

// unmetNeeds sorts the least fulfilled needs first.
func unmetNeeds(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}),
		stage("$unwind", "$possible_needs"),
		stage("$group", bson.M{
			"_id":            "$possible_needs",
			"total_requests": bson.M{"$sum": 1},
			"completed":      paidCount(),
		}),
		stage("$addFields", bson.M{"fulfillment_rate": ratePercent("completed", "total_requests")}),
		sortStage(asc("fulfillment_rate")),
	}
	return s.aggregate(ctx, "get_unmet_needs_analysis", pipeline)
}
