package intent

import (
	"context"
	"errors"
	"math"
	"regexp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"analytics-agent/internal/domain"
)

var tracer = otel.Tracer("analytics-agent/intent")

const (
	// acceptPatternAt short-circuits detection without a semantic call.
	acceptPatternAt = 0.85
	// trustSemanticAt lets a semantic result compete with the pattern result.
	trustSemanticAt = 0.70

	countryHeuristicConfidence = 0.90
	revenueTimeConfidence      = 0.85
)

var (
	countryCueRe = regexp.MustCompile(`(?i)\b(?:country|countries|region|regions|regional|geographic|geographical|location|locations|international|nation|nations)\b`)

	countrySubCues = []struct {
		re     *regexp.Regexp
		intent domain.Intent
	}{
		{regexp.MustCompile(`(?i)\b(?:ltv|clv|lifetime value|valuable|customer value)\b`), domain.IntentCountryLTV},
		{regexp.MustCompile(`(?i)\b(?:grow\w*|declin\w*|trend\w*|over time|change\w*)\b`), domain.IntentCountryGrowth},
		{regexp.MustCompile(`(?i)\b(?:performance|perform\w*|conversion|compare\w*|benchmark\w*)\b`), domain.IntentCountryPerformance},
		{regexp.MustCompile(`(?i)\b(?:summary|overview|distribution|all countries|dashboard|operate)\b`), domain.IntentCountrySummary},
		{regexp.MustCompile(`(?i)\b(?:top|most|rank\w*|orders|customers|volume)\b`), domain.IntentTopCountriesSales},
	}

	revenueWordRe = regexp.MustCompile(`(?i)\b(?:revenue|sales|income|earnings?|money|made|earn(?:ed)?)\b`)
	timeCueRe     = regexp.MustCompile(`(?i)\b(?:today|yesterday|daily|weekly|monthly|over time|trends?|this (?:week|month|quarter|year)|last (?:week|month|quarter|year)|(?:last|past|previous) \d+ \w+|per (?:day|week|month)|by (?:day|week|month))\b`)
	revenueVetoRe = regexp.MustCompile(`(?i)\b(?:topics?|products?|countr(?:y|ies)|ages?|emotions?|feelings?|customers?|payers?|carts?|keywords?|needs?|sentiment)\b`)
)

// SemanticScorer is the subset of SemanticMatcher the detector depends on.
type SemanticScorer interface {
	Match(ctx context.Context, question string) (domain.Intent, float64)
	TopMatches(ctx context.Context, question string, n int) []domain.ScoredIntent
}

// Detector combines the follow-up resolver, the pattern matcher and the
// semantic matcher into one decision per question.
type Detector struct {
	pattern  *PatternMatcher
	semantic SemanticScorer
	followUp *FollowUpResolver
	logger   *zap.Logger
}

func NewDetector(pattern *PatternMatcher, semantic SemanticScorer, followUp *FollowUpResolver, logger *zap.Logger) (*Detector, error) {
	if pattern == nil {
		return nil, errors.New("intent: pattern matcher must not be nil")
	}
	if semantic == nil {
		return nil, errors.New("intent: semantic scorer must not be nil")
	}
	if followUp == nil {
		return nil, errors.New("intent: follow-up resolver must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{pattern: pattern, semantic: semantic, followUp: followUp, logger: logger}, nil
}

// Detect resolves the question to an intent. It never fails: when nothing
// matches the result is (unknown, 0, none).
func (d *Detector) Detect(ctx context.Context, question string, cctx *domain.ConversationContext) domain.DetectionResult {
	ctx, span := tracer.Start(ctx, "intent.Detect",
		trace.WithAttributes(attribute.Bool("has_context", cctx != nil)),
	)
	defer span.End()

	res := d.detect(ctx, question, cctx)
	span.SetAttributes(
		attribute.String("intent", string(res.Intent)),
		attribute.Float64("confidence", res.Confidence),
		attribute.String("method", string(res.Method)),
	)
	d.logger.Debug("intent detected",
		zap.String("intent", string(res.Intent)),
		zap.Float64("confidence", res.Confidence),
		zap.String("method", string(res.Method)),
		zap.String("follow_up", res.FollowUp),
	)
	return res
}

func (d *Detector) detect(ctx context.Context, question string, cctx *domain.ConversationContext) domain.DetectionResult {
	if fu, ok := d.followUp.Resolve(question, cctx); ok {
		return domain.DetectionResult{Intent: fu.Intent, Confidence: fu.Confidence, Method: domain.MethodPattern, FollowUp: string(fu.Kind)}
	}

	pIntent, pConf := d.pattern.Match(question)
	if pIntent == domain.IntentTopicsByEmotion {
		return domain.DetectionResult{Intent: pIntent, Confidence: pConf, Method: domain.MethodPattern}
	}

	if pConf < acceptPatternAt && !pIntent.IsCountry() && countryCueRe.MatchString(question) {
		return domain.DetectionResult{Intent: countryIntent(question), Confidence: countryHeuristicConfidence, Method: domain.MethodPattern}
	}

	if pConf < acceptPatternAt && isRevenueOverTime(question) {
		return domain.DetectionResult{Intent: domain.IntentRevenueTrends, Confidence: revenueTimeConfidence, Method: domain.MethodPattern}
	}

	if pConf >= acceptPatternAt {
		return domain.DetectionResult{Intent: pIntent, Confidence: pConf, Method: domain.MethodPattern}
	}

	// Below the semantic threshold sIntent is unknown with the raw similarity;
	// callers treat a non-analytic intent as unresolved.
	sIntent, sConf := d.semantic.Match(ctx, question)
	if sConf >= trustSemanticAt && sConf > pConf {
		return domain.DetectionResult{Intent: sIntent, Confidence: sConf, Method: domain.MethodSemantic}
	}
	if pConf > 0 && pConf >= sConf {
		return domain.DetectionResult{Intent: pIntent, Confidence: pConf, Method: domain.MethodPattern}
	}
	if sConf > 0 {
		return domain.DetectionResult{Intent: sIntent, Confidence: sConf, Method: domain.MethodSemantic}
	}
	return domain.DetectionResult{Intent: domain.IntentUnknown, Confidence: 0, Method: domain.MethodNone}
}

func countryIntent(question string) domain.Intent {
	for _, c := range countrySubCues {
		if c.re.MatchString(question) {
			return c.intent
		}
	}
	return domain.IntentRevenueByCountry
}

func isRevenueOverTime(question string) bool {
	return revenueWordRe.MatchString(question) &&
		timeCueRe.MatchString(question) &&
		!revenueVetoRe.MatchString(question)
}

// Explanation is the diagnostic breakdown of one detection.
type Explanation struct {
	Question        string                 `json:"question"`
	FinalDecision   domain.DetectionResult `json:"final_decision"`
	PatternMatching domain.ScoredIntent    `json:"pattern_matching"`
	SemanticTop3    []domain.ScoredIntent  `json:"semantic_top_3"`
	FollowUp        *FollowUpCandidate     `json:"follow_up,omitempty"`
}

// FollowUpCandidate is reported under the context_followup label with the
// intent it resolved to.
type FollowUpCandidate struct {
	Label      domain.Intent `json:"label"`
	Kind       FollowUpKind  `json:"kind"`
	Intent     domain.Intent `json:"intent"`
	Confidence float64       `json:"confidence"`
}

// Explain runs every stage independently and reports each result alongside
// the final decision.
func (d *Detector) Explain(ctx context.Context, question string, cctx *domain.ConversationContext) Explanation {
	pIntent, pConf := d.pattern.Match(question)
	top := d.semantic.TopMatches(ctx, question, 3)
	for i := range top {
		top[i].Confidence = round3(top[i].Confidence)
	}
	if top == nil {
		top = []domain.ScoredIntent{}
	}

	out := Explanation{
		Question:        question,
		FinalDecision:   d.Detect(ctx, question, cctx),
		PatternMatching: domain.ScoredIntent{Intent: pIntent, Confidence: pConf},
		SemanticTop3:    top,
	}
	out.FinalDecision.Confidence = round3(out.FinalDecision.Confidence)
	if fu, ok := d.followUp.Resolve(question, cctx); ok {
		out.FollowUp = &FollowUpCandidate{
			Label:      domain.IntentContextFollowup,
			Kind:       fu.Kind,
			Intent:     fu.Intent,
			Confidence: fu.Confidence,
		}
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
