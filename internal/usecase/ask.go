package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"analytics-agent/internal/analytics"
	"analytics-agent/internal/domain"
	"analytics-agent/internal/intent"
	"analytics-agent/internal/metrics"
)

var tracer = otel.Tracer("analytics-agent/usecase")

const (
	MaxQuestionLen = 500

	// minConfidence is the detection confidence below which the agent
	// answers instead.
	minConfidence = 0.5
	historyWindow = 10

	StatusSuccess = "success"
	StatusError   = "error"

	errorAnswerPrefix = "Error processing query: "
)

type Detector interface {
	Detect(ctx context.Context, question string, cctx *domain.ConversationContext) domain.DetectionResult
	Explain(ctx context.Context, question string, cctx *domain.ConversationContext) intent.Explanation
}

type ParamExtractor interface {
	Extract(question string, cctx *domain.ConversationContext) domain.Params
}

type Planner interface {
	Handle(ctx context.Context, question string, defaults domain.Params) (domain.Outcome, bool)
}

type Agent interface {
	Handle(ctx context.Context, question string, history []domain.Message) domain.Outcome
}

type Operations interface {
	Execute(ctx context.Context, in domain.Intent, p domain.Params, question string) (analytics.Result, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, data any, description, question string, history []domain.Message) (string, error)
}

type ConversationStore interface {
	AddMessages(ctx context.Context, conversationID string, msgs []domain.Message) error
	GetHistory(ctx context.Context, conversationID string, lastN int) ([]domain.Message, error)
}

type Recorder interface {
	RequestHandled(mode string, took time.Duration)
	DetectionMade(method domain.Method)
	Snapshot() (metrics.Snapshot, error)
}

// Deps are the collaborators of AskService. Planner is optional.
type Deps struct {
	Detector    Detector
	Extractor   ParamExtractor
	Planner     Planner
	Agent       Agent
	Operations  Operations
	Synthesizer Summarizer
	Store       ConversationStore
	Recorder    Recorder
	Logger      *zap.Logger
}

type AskService struct {
	detector  Detector
	extractor ParamExtractor
	planner   Planner
	agent     Agent
	ops       Operations
	synth     Summarizer
	store     ConversationStore
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

type AskInput struct {
	Question       string
	ConversationID string
	History        []domain.Message
	UseAgentic     bool
}

type AskOutput struct {
	Answer         string
	ConversationID string
	Metadata       domain.Metadata
	Status         string
}

func NewAskService(d Deps) (*AskService, error) {
	switch {
	case d.Detector == nil:
		return nil, errors.New("usecase: detector must not be nil")
	case d.Extractor == nil:
		return nil, errors.New("usecase: extractor must not be nil")
	case d.Agent == nil:
		return nil, errors.New("usecase: agent must not be nil")
	case d.Operations == nil:
		return nil, errors.New("usecase: operations must not be nil")
	case d.Synthesizer == nil:
		return nil, errors.New("usecase: synthesizer must not be nil")
	case d.Store == nil:
		return nil, errors.New("usecase: conversation store must not be nil")
	case d.Recorder == nil:
		return nil, errors.New("usecase: recorder must not be nil")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AskService{
		detector:  d.Detector,
		extractor: d.Extractor,
		planner:   d.Planner,
		agent:     d.Agent,
		ops:       d.Operations,
		synth:     d.Synthesizer,
		store:     d.Store,
		recorder:  d.Recorder,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func validateQuestion(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", newError(ErrorInvalidInput, ReasonEmptyQuestion, nil)
	}
	if utf8.RuneCountInString(q) > MaxQuestionLen {
		return "", newError(ErrorInvalidInput, ReasonQuestionTooLong, nil)
	}
	return q, nil
}

// Ask answers one question. Only invalid input is returned as an error;
// pipeline failures come back as an answer with status "error".
func (s *AskService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	question, err := validateQuestion(in.Question)
	if err != nil {
		return AskOutput{}, err
	}
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	ctx, span := tracer.Start(ctx, "usecase.Ask", trace.WithAttributes(
		attribute.String("conversation_id", convID),
		attribute.Bool("use_agentic", in.UseAgentic),
	))
	defer span.End()
	start := s.now()

	history := s.history(ctx, convID, in.History)
	cctx := intent.ExtractContext(history)

	var (
		out  domain.Outcome
		mode string
	)
	switch {
	case in.UseAgentic:
		out, mode = s.agent.Handle(ctx, question, history), metrics.ModeAgentic
	default:
		if s.planner != nil {
			if o, ok := s.planner.Handle(ctx, question, s.extractor.Extract(question, cctx)); ok {
				out, mode = o, metrics.ModeMultiStep
			}
		}
		if mode == "" {
			out, mode = s.singleStep(ctx, question, cctx, history)
		}
	}

	status := StatusSuccess
	if out.Metadata.Error != "" {
		status = StatusError
		mode = metrics.ModeError
	}
	span.SetAttributes(attribute.String("mode", mode), attribute.String("status", status))

	s.persist(ctx, convID, question, out)
	took := s.now().Sub(start)
	s.recorder.RequestHandled(mode, took)
	s.logger.Info("question answered",
		zap.String("conversation_id", convID),
		zap.String("mode", mode),
		zap.String("status", status),
		zap.String("intent", string(out.Metadata.Intent)),
		zap.Duration("took", took),
	)

	return AskOutput{
		Answer:         out.Answer,
		ConversationID: convID,
		Metadata:       out.Metadata,
		Status:         status,
	}, nil
}

// history prefers request-supplied messages. Store failures degrade to an
// empty history.
func (s *AskService) history(ctx context.Context, convID string, supplied []domain.Message) []domain.Message {
	if len(supplied) > 0 {
		return supplied
	}
	h, err := s.store.GetHistory(ctx, convID, historyWindow)
	if err != nil {
		s.logger.Warn("conversation history unavailable", zap.String("conversation_id", convID), zap.Error(err))
		return nil
	}
	return h
}

func (s *AskService) singleStep(ctx context.Context, question string, cctx *domain.ConversationContext, history []domain.Message) (domain.Outcome, string) {
	det := s.detector.Detect(ctx, question, cctx)
	s.recorder.DetectionMade(det.Method)
	if det.Confidence < minConfidence || !det.Intent.IsAnalytic() {
		s.logger.Debug("detection unresolved, handing to agent",
			zap.String("intent", string(det.Intent)),
			zap.Float64("confidence", det.Confidence),
		)
		return s.agent.Handle(ctx, question, history), metrics.ModeAgentic
	}

	params := s.extractor.Extract(question, cctx)
	meta := domain.Metadata{
		Intent:          det.Intent,
		Params:          &params,
		Confidence:      det.Confidence,
		DetectionMethod: det.Method,
		FollowUp:        det.FollowUp,
	}

	res, err := s.ops.Execute(ctx, det.Intent, params, question)
	if err != nil {
		return failure(meta, err), metrics.ModeSingleStep
	}
	answer, err := s.synth.Summarize(ctx, res.Data, res.Context, question, history)
	if err != nil {
		return failure(meta, err), metrics.ModeSingleStep
	}
	meta.DataType = res.DataType
	meta.DataSummary = res.Summary
	return domain.Outcome{Answer: answer, Metadata: meta}, metrics.ModeSingleStep
}

func failure(meta domain.Metadata, err error) domain.Outcome {
	meta.Error = err.Error()
	return domain.Outcome{Answer: errorAnswerPrefix + err.Error(), Metadata: meta}
}

func (s *AskService) persist(ctx context.Context, convID, question string, out domain.Outcome) {
	msgs := []domain.Message{
		domain.NewMessage(domain.RoleUser, question, domain.Metadata{}),
		domain.NewMessage(domain.RoleAssistant, out.Answer, out.Metadata),
	}
	if err := s.store.AddMessages(ctx, convID, msgs); err != nil {
		s.logger.Warn("conversation not saved", zap.String("conversation_id", convID), zap.Error(err))
	}
}

type ExplainInput struct {
	Question       string
	ConversationID string
	History        []domain.Message
}

type ExplainOutput struct {
	intent.Explanation
	Params     domain.Params `json:"extracted_params"`
	HasContext bool          `json:"has_context"`
}

// Explain reports how a question would be classified without answering it.
func (s *AskService) Explain(ctx context.Context, in ExplainInput) (ExplainOutput, error) {
	question, err := validateQuestion(in.Question)
	if err != nil {
		return ExplainOutput{}, err
	}
	var history []domain.Message
	if convID := strings.TrimSpace(in.ConversationID); convID != "" || len(in.History) > 0 {
		history = s.history(ctx, convID, in.History)
	}
	cctx := intent.ExtractContext(history)
	return ExplainOutput{
		Explanation: s.detector.Explain(ctx, question, cctx),
		Params:      s.extractor.Extract(question, cctx),
		HasContext:  cctx != nil,
	}, nil
}

func (s *AskService) Stats(_ context.Context) (metrics.Snapshot, error) {
	snap, err := s.recorder.Snapshot()
	if err != nil {
		return metrics.Snapshot{}, newError(ErrorInternal, ReasonMetricsUnavailable, err)
	}
	return snap, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
