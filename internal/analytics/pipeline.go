package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// source binds a querier to the clock and timezone used for windows.
type source struct {
	q   Querier
	now func() time.Time
	loc *time.Location
}

// since returns local midnight periodDays ago, in UTC. Fractional days move
// the anchor back by the fraction before truncating to midnight.
func (s *source) since(periodDays float64) time.Time {
	local := s.now().In(s.loc)
	whole := math.Floor(periodDays)
	frac := periodDays - whole
	t := local.AddDate(0, 0, -int(whole)).Add(-time.Duration(frac * float64(24*time.Hour)))
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc).UTC()
}

// offset renders the local UTC offset the way $dateToString expects it.
func (s *source) offset() string {
	return s.now().In(s.loc).Format("-07:00")
}

func (s *source) aggregate(ctx context.Context, tool string, pipeline mongo.Pipeline) ([]bson.M, error) {
	rows, err := s.q.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	if rows == nil {
		rows = []bson.M{}
	}
	return rows, nil
}

func stage(op string, v any) bson.D { return bson.D{{Key: op, Value: v}} }

func matchStage(m bson.M) bson.D { return stage("$match", m) }

func sortStage(fields ...bson.E) bson.D { return stage("$sort", bson.D(fields)) }

func limitStage(n int) bson.D { return stage("$limit", n) }

func desc(field string) bson.E { return bson.E{Key: field, Value: -1} }

func asc(field string) bson.E { return bson.E{Key: field, Value: 1} }

const (
	fieldCountry = "customer_info.country"
	fieldAge     = "customer_info.age"
	paidStatus   = 1
	unpaidStatus = 0
)

// countryPresent excludes documents without a usable country.
func countryPresent() bson.M {
	return bson.M{"$exists": true, "$nin": bson.A{nil, ""}}
}

// withCountry narrows m to one country when code is set.
func withCountry(m bson.M, code string) bson.M {
	if code != "" {
		m[fieldCountry] = code
	}
	return m
}

func paidCount() bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$payment_status", paidStatus}}, 1, 0}}}
}

func ratePercent(part, whole string) bson.M {
	return bson.M{"$multiply": bson.A{bson.M{"$divide": bson.A{"$" + part, "$" + whole}}, 100}}
}

// num reads a BSON numeric as float64; anything else is 0.
func num(v any) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// readableHours renders fractional hours as "Xh Ym".
func readableHours(h float64) string {
	whole := math.Floor(h)
	return fmt.Sprintf("%dh %dm", int(whole), int((h-whole)*60))
}

func formatMinutes(hours float64) string {
	return fmt.Sprintf("%dm", int(hours*60))
}

func pct(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(part / whole * 100)
}

// doc reads a nested document regardless of how the driver decoded it.
func doc(v any) bson.M {
	switch d := v.(type) {
	case bson.M:
		return d
	case map[string]any:
		return bson.M(d)
	case bson.D:
		out := make(bson.M, len(d))
		for _, e := range d {
			out[e.Key] = e.Value
		}
		return out
	}
	return bson.M{}
}

func arr(v any) bson.A {
	switch a := v.(type) {
	case bson.A:
		return a
	case []any:
		return bson.A(a)
	}
	return nil
}
