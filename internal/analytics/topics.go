package analytics

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"analytics-agent/internal/domain"
)

// withEmotion narrows m to documents carrying any of the filter's emotions.
func withEmotion(m bson.M, f domain.EmotionFilter) bson.M {
	switch len(f) {
	case 0:
	case 1:
		m["emotional_tone"] = f[0]
	default:
		m["emotional_tone"] = bson.M{"$in": bson.A(toAny(f))}
	}
	return m
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func trendingTopics(ctx context.Context, s *source, p domain.Params) (any, error) {
	match := bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(7))}}
	match = withCountry(withEmotion(match, p.EmotionFilter), p.CountryFilter)
	pipeline := mongo.Pipeline{
		matchStage(match),
		stage("$unwind", "$topics"),
		stage("$group", bson.M{"_id": "$topics", "count": bson.M{"$sum": 1}}),
		sortStage(desc("count"), asc("_id")),
		limitStage(p.LimitOr(10)),
	}
	return s.aggregate(ctx, "get_trending_topics", pipeline)
}

func topicRevenue(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{
			"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))},
			"payment_status": paidStatus,
		}),
		stage("$unwind", "$topics"),
		stage("$group", bson.M{
			"_id":             "$topics",
			"total_revenue":   bson.M{"$sum": "$total_price"},
			"order_count":     bson.M{"$sum": 1},
			"avg_order_value": bson.M{"$avg": "$total_price"},
		}),
		sortStage(desc("total_revenue")),
	}
	return s.aggregate(ctx, "get_topic_revenue", pipeline)
}

func topicsByEmotion(ctx context.Context, s *source, p domain.Params) (any, error) {
	match := bson.M{
		"created_at":     bson.M{"$gte": s.since(p.PeriodOr(30))},
		"payment_status": paidStatus,
	}
	pipeline := mongo.Pipeline{
		matchStage(withEmotion(match, p.EmotionFilter)),
		stage("$unwind", "$topics"),
		stage("$group", bson.M{
			"_id":             "$topics",
			"total_revenue":   bson.M{"$sum": "$total_price"},
			"order_count":     bson.M{"$sum": 1},
			"avg_order_value": bson.M{"$avg": "$total_price"},
			"emotions":        bson.M{"$addToSet": "$emotional_tone"},
		}),
		sortStage(desc("total_revenue")),
		limitStage(20),
	}
	return s.aggregate(ctx, "get_topics_by_emotion", pipeline)
}

func questionPatterns(ctx context.Context, s *source, p domain.Params) (any, error) {
	pipeline := mongo.Pipeline{
		matchStage(bson.M{"reference_date": bson.M{"$gte": s.since(p.PeriodOr(30))}}),
		stage("$facet", bson.M{
			"questions": bson.A{
				bson.M{"$project": bson.M{"n": bson.M{"$size": bson.M{"$ifNull": bson.A{"$questions", bson.A{}}}}}},
				bson.M{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$n"}}},
			},
			"topics": bson.A{
				bson.M{"$unwind": "$topics"},
				bson.M{"$group": bson.M{"_id": "$topics", "count": bson.M{"$sum": 1}}},
				bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
			},
		}),
	}
	rows, err := s.aggregate(ctx, "get_question_patterns", pipeline)
	if err != nil {
		return nil, err
	}

	out := bson.M{"total_questions": 0.0, "unique_topics": 0, "top_topics": bson.A{}}
	if len(rows) == 0 {
		return out, nil
	}
	if qs := arr(rows[0]["questions"]); len(qs) > 0 {
		out["total_questions"] = num(doc(qs[0])["total"])
	}
	topics := arr(rows[0]["topics"])
	out["unique_topics"] = len(topics)
	top := bson.A{}
	for i, t := range topics {
		if i == 10 {
			break
		}
		d := doc(t)
		top = append(top, bson.M{"topic": d["_id"], "count": num(d["count"])})
	}
	out["top_topics"] = top
	return out, nil
}
