// Package planner answers questions that need more than one analytics
// operation: it asks the model for a plan, runs the steps in order and has
// the model combine the results.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"analytics-agent/internal/domain"
)

var tracer = otel.Tracer("analytics-agent/planner")

// SynthesisFailedAnswer is returned when every step ran but the results
// could not be combined into prose.
const SynthesisFailedAnswer = "Multiple analyses completed but couldn't synthesize results."

const (
	planTemperature      = 0.3
	synthesisTemperature = 0.7
	synthesisMaxTokens   = 600
)

var cueRe = regexp.MustCompile(`(?i)\b(?:and then|then show|also|after that|break down|breakdown|split by|segment by|compare|vs|versus|along with|together with|as well as)\b`)

// Completer is the chat model.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// Tools is the operation registry as seen by the planner.
type Tools interface {
	Definitions() []domain.ToolDefinition
	Accepts(tool string) ([]string, bool)
	Call(ctx context.Context, tool string, args map[string]any) (any, error)
}

type Planner struct {
	llm    Completer
	tools  Tools
	model  string
	schema *gojsonschema.Schema
	logger *zap.Logger
}

type Option func(*Planner)

func WithModel(model string) Option {
	return func(p *Planner) { p.model = model }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(llm Completer, tools Tools, opts ...Option) (*Planner, error) {
	if llm == nil {
		return nil, errors.New("planner: completer must not be nil")
	}
	if tools == nil {
		return nil, errors.New("planner: tools must not be nil")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(planSchema))
	if err != nil {
		return nil, fmt.Errorf("planner: compile plan schema: %w", err)
	}
	p := &Planner{llm: llm, tools: tools, schema: schema, logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Triggered reports whether the question contains a composition cue.
func Triggered(question string) bool {
	return cueRe.MatchString(question)
}

type stepResult struct {
	step domain.PlanStep
	data any
	err  error
}

// Handle returns false whenever the question should go down the
// single-step path instead: no cue, a plan that declines or fails to
// parse, or no step that produced data.
func (p *Planner) Handle(ctx context.Context, question string, defaults domain.Params) (domain.Outcome, bool) {
	if !Triggered(question) {
		return domain.Outcome{}, false
	}

	ctx, span := tracer.Start(ctx, "planner.Handle")
	defer span.End()

	plan, err := p.plan(ctx, question, defaults)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn("multi-step planning failed", zap.Error(err))
		return domain.Outcome{}, false
	}
	if !plan.RequiresMultiStep || len(plan.Steps) == 0 {
		span.SetAttributes(attribute.Bool("planner.multi_step", false))
		return domain.Outcome{}, false
	}

	results := p.execute(ctx, plan)
	var ok int
	for _, r := range results {
		if r.err == nil {
			ok++
		}
	}
	span.SetAttributes(
		attribute.Int("planner.steps", len(plan.Steps)),
		attribute.Int("planner.steps_ok", ok),
		attribute.String("planner.combine_strategy", string(plan.CombineStrategy)),
	)
	if ok == 0 {
		span.SetStatus(codes.Error, "no step succeeded")
		p.logger.Warn("multi-step execution produced nothing", zap.Int("steps", len(plan.Steps)))
		return domain.Outcome{}, false
	}

	answer, err := p.synthesize(ctx, plan.CombineStrategy, results)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn("multi-step synthesis failed", zap.Error(err))
		answer = SynthesisFailedAnswer
	}

	tools := make([]string, len(plan.Steps))
	for i, s := range plan.Steps {
		tools[i] = s.Tool
	}
	return domain.Outcome{
		Answer: answer,
		Metadata: domain.Metadata{
			MultiStep:       true,
			NumSteps:        len(plan.Steps),
			ToolsUsed:       tools,
			CombineStrategy: string(plan.CombineStrategy),
		},
	}, true
}

func (p *Planner) plan(ctx context.Context, question string, defaults domain.Params) (domain.ExecutionPlan, error) {
	prompt, err := p.planningPrompt(question, defaults)
	if err != nil {
		return domain.ExecutionPlan{}, err
	}
	out, err := p.llm.Complete(ctx, domain.CompletionRequest{
		Model:       p.model,
		Messages:    []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: prompt}},
		Temperature: planTemperature,
		JSONMode:    true,
	})
	if err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("planner: plan request: %w", err)
	}
	return p.parsePlan(out.Content)
}

// parsePlan validates the model output before decoding it. A strategy
// outside the known set falls back to sequence.
func (p *Planner) parsePlan(content string) (domain.ExecutionPlan, error) {
	res, err := p.schema.Validate(gojsonschema.NewStringLoader(content))
	if err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("planner: plan is not JSON: %w", err)
	}
	if !res.Valid() {
		errs := make([]string, len(res.Errors()))
		for i, e := range res.Errors() {
			errs[i] = e.String()
		}
		return domain.ExecutionPlan{}, fmt.Errorf("planner: invalid plan: %s", strings.Join(errs, "; "))
	}

	var plan domain.ExecutionPlan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("planner: decode plan: %w", err)
	}
	switch plan.CombineStrategy {
	case domain.CombineMerge, domain.CombineCompare, domain.CombineSequence:
	default:
		plan.CombineStrategy = domain.CombineSequence
	}
	for i := range plan.Steps {
		if plan.Steps[i].OutputKey == "" {
			plan.Steps[i].OutputKey = fmt.Sprintf("step_%d", plan.Steps[i].StepNumber)
		}
	}
	return plan, nil
}

// execute runs steps strictly in plan order. Unknown tools are skipped and a
// failing step does not stop the others.
func (p *Planner) execute(ctx context.Context, plan domain.ExecutionPlan) []stepResult {
	results := make([]stepResult, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if _, ok := p.tools.Accepts(step.Tool); !ok {
			p.logger.Warn("plan references unknown tool", zap.String("tool", step.Tool))
			continue
		}
		_, span := tracer.Start(ctx, "planner.step", trace.WithAttributes(attribute.String("tool", step.Tool)))
		data, err := p.tools.Call(ctx, step.Tool, step.Params)
		if err != nil {
			span.RecordError(err)
			p.logger.Warn("plan step failed", zap.String("tool", step.Tool), zap.Error(err))
		}
		span.End()
		results = append(results, stepResult{step: step, data: data, err: err})
	}
	return results
}

func (p *Planner) synthesize(ctx context.Context, strategy domain.CombineStrategy, results []stepResult) (string, error) {
	prompt, err := synthesisPrompt(strategy, results)
	if err != nil {
		return "", err
	}
	out, err := p.llm.Complete(ctx, domain.CompletionRequest{
		Model:       p.model,
		Messages:    []domain.ChatMessage{{Role: domain.ChatRoleUser, Content: prompt}},
		Temperature: synthesisTemperature,
		MaxTokens:   synthesisMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("planner: synthesis request: %w", err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", errors.New("planner: empty synthesis")
	}
	return out.Content, nil
}
