package analytics

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"analytics-agent/internal/domain"
)

func sentimentDistribution(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}),
		stage("$group", bson.M{
			"_id":       "$sentiment.label",
			"count":     bson.M{"$sum": 1},
			"avg_score": bson.M{"$avg": "$sentiment.score"},
		}),
		sortStage(desc("count")),
	}
	return s.aggregate(ctx, "get_sentiment_distribution", pipeline)
}

func sentimentByProduct(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}),
		stage("$group", bson.M{
			"_id":   bson.M{"product_id": "$product_id", "sentiment": "$sentiment.label"},
			"count": bson.M{"$sum": 1},
		}),
		sortStage(asc("_id.product_id"), desc("count")),
	}
	return s.aggregate(ctx, "get_sentiment_by_product", pipeline)
}

func keywordFrequency(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}),
		stage("$unwind", "$keywords"),
		stage("$group", bson.M{"_id": "$keywords", "count": bson.M{"$sum": 1}}),
		sortStage(desc("count"), asc("_id")),
		limitStage(p.LimitOr(20)),
	}
	return s.aggregate(ctx, "get_keyword_frequency", pipeline)
}
