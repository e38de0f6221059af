package analytics

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"analytics-agent/internal/domain"
)

// distressEmotions flag a customer for outreach.
var distressEmotions = bson.A{"anxious", "stressed", "depressed", "hopeless", "distressed"}

func emotionDistribution(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(withCountry(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}, p.CountryFilter)),
		stage("$unwind", "$emotional_tone"),
		stage("$group", bson.M{"_id": "$emotional_tone", "count": bson.M{"$sum": 1}}),
		sortStage(desc("count")),
	}
	return s.aggregate(ctx, "get_emotion_distribution", pipeline)
}

func emotionConversion(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}),
		stage("$unwind", "$emotional_tone"),
		stage("$group", bson.M{
			"_id":              "$emotional_tone",
			"total_orders":     bson.M{"$sum": 1},
			"completed_orders": paidCount(),
		}),
		stage("$addFields", bson.M{"conversion_rate": ratePercent("completed_orders", "total_orders")}),
		sortStage(desc("conversion_rate")),
	}
	return s.aggregate(ctx, "get_emotion_conversion", pipeline)
}

func highRiskCustomers(ctx context.Context, s *source, _ domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{"customer_id": bson.M{"$ne": nil}}),
		stage("$unwind", "$emotional_tone"),
		matchStage(bson.M{"emotional_tone": bson.M{"$in": distressEmotions}}),
		stage("$group", bson.M{
			"_id":                    "$customer_id",
			"negative_emotion_count": bson.M{"$sum": 1},
			"emotions":               bson.M{"$addToSet": "$emotional_tone"},
			"last_order":             bson.M{"$max": "$created_at"},
		}),
		sortStage(desc("negative_emotion_count")),
		limitStage(50),
	}
	return s.aggregate(ctx, "get_high_risk_customers", pipeline)
}
