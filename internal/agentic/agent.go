// Package agentic answers open-ended questions by letting the chat model call
// analytics tools in a bounded loop.
package agentic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"analytics-agent/internal/analytics"
	"analytics-agent/internal/domain"
)

var tracer = otel.Tracer("analytics-agent/agentic")

const DefaultMaxIterations = 5

const (
	ErrorAnswerPrefix = "I encountered an error while processing: "
	ExhaustedAnswer   = "I couldn't complete the full analysis. Please try breaking down your question."
)

const (
	maxTokens       = 1000
	temperature     = 0.7
	historyMessages = 4
	historySnippet  = 150
)

// Completer is the chat model.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// Tools is the set of functions the model may call.
type Tools interface {
	Definitions() []domain.ToolDefinition
	Call(ctx context.Context, tool string, args map[string]any) (any, error)
}

type state int

const (
	awaitingModel state = iota
	executingTools
	done
	failed
)

func (s state) String() string {
	switch s {
	case awaitingModel:
		return "awaiting_model"
	case executingTools:
		return "executing_tools"
	case done:
		return "done"
	case failed:
		return "failed"
	}
	return "unknown"
}

type Agent struct {
	llm           Completer
	tools         Tools
	model         string
	maxIterations int
	logger        *zap.Logger
}

type Option func(*Agent)

func WithModel(model string) Option {
	return func(a *Agent) { a.model = model }
}

func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(llm Completer, tools Tools, opts ...Option) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("agentic: completer must not be nil")
	}
	if tools == nil {
		return nil, errors.New("agentic: tools must not be nil")
	}
	a := &Agent{llm: llm, tools: tools, maxIterations: DefaultMaxIterations, logger: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// run is the mutable state of one Handle call.
type run struct {
	state      state
	messages   []domain.ChatMessage
	pending    []domain.ToolCall
	toolsUsed  []string
	iterations int
	answer     string
	err        error
}

// Handle never returns an error: failures are reported in the answer and
// the metadata.
func (a *Agent) Handle(ctx context.Context, question string, history []domain.Message) domain.Outcome {
	ctx, span := tracer.Start(ctx, "agentic.Handle")
	defer span.End()

	r := &run{
		state: awaitingModel,
		messages: []domain.ChatMessage{
			{Role: domain.ChatRoleSystem, Content: systemPrompt(history)},
			{Role: domain.ChatRoleUser, Content: question},
		},
	}
	defs := a.tools.Definitions()

	for r.state != done && r.state != failed {
		a.logger.Debug("agent step", zap.Stringer("state", r.state), zap.Int("iteration", r.iterations))
		switch r.state {
		case awaitingModel:
			if r.iterations >= a.maxIterations {
				span.SetAttributes(attribute.Bool("agentic.max_iterations_reached", true))
				a.logger.Warn("agent iteration budget exhausted", zap.Int("iterations", r.iterations))
				span.SetAttributes(attribute.StringSlice("agentic.tools_called", r.toolsUsed))
				return domain.Outcome{
					Answer: ExhaustedAnswer,
					Metadata: domain.Metadata{
						Agentic:              true,
						ToolsCalled:          r.toolsUsed,
						NumTools:             len(r.toolsUsed),
						Iterations:           r.iterations,
						MaxIterationsReached: true,
					},
				}
			}
			a.awaitModel(ctx, r, defs)
		case executingTools:
			a.executeTools(ctx, r)
		}
	}

	span.SetAttributes(
		attribute.Int("agentic.iterations", r.iterations),
		attribute.StringSlice("agentic.tools_called", r.toolsUsed),
	)
	if r.state == failed {
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.err.Error())
		a.logger.Error("agent run failed", zap.Error(r.err))
		return domain.Outcome{
			Answer:   ErrorAnswerPrefix + r.err.Error(),
			Metadata: domain.Metadata{Agentic: true, Error: r.err.Error()},
		}
	}
	return domain.Outcome{
		Answer: r.answer,
		Metadata: domain.Metadata{
			Agentic:     true,
			ToolsCalled: r.toolsUsed,
			NumTools:    len(r.toolsUsed),
			Iterations:  r.iterations,
		},
	}
}

func (a *Agent) awaitModel(ctx context.Context, r *run, defs []domain.ToolDefinition) {
	r.iterations++
	out, err := a.llm.Complete(ctx, domain.CompletionRequest{
		Model:       a.model,
		Messages:    r.messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Tools:       defs,
	})
	if err != nil {
		r.state, r.err = failed, err
		return
	}
	if len(out.ToolCalls) == 0 {
		r.state, r.answer = done, out.Content
		return
	}
	r.messages = append(r.messages, domain.ChatMessage{
		Role:      domain.ChatRoleAssistant,
		Content:   out.Content,
		ToolCalls: out.ToolCalls,
	})
	r.pending = out.ToolCalls
	r.state = executingTools
}

func (a *Agent) executeTools(ctx context.Context, r *run) {
	for _, tc := range r.pending {
		r.toolsUsed = append(r.toolsUsed, tc.Name)
		r.messages = append(r.messages, domain.ChatMessage{
			Role:       domain.ChatRoleTool,
			ToolCallID: tc.ID,
			Content:    a.invoke(ctx, tc),
		})
	}
	r.pending = nil
	r.state = awaitingModel
}

// invoke always yields a JSON document for the model, even on failure.
func (a *Agent) invoke(ctx context.Context, tc domain.ToolCall) string {
	args := map[string]any{}
	if strings.TrimSpace(tc.Arguments) != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			a.logger.Debug("tool arguments are not a JSON object", zap.String("tool", tc.Name), zap.Error(err))
			args = map[string]any{}
		}
	}

	data, err := a.tools.Call(ctx, tc.Name, args)
	if err != nil {
		a.logger.Warn("tool call failed", zap.String("tool", tc.Name), zap.Error(err))
		return errorJSON(toolError(tc.Name, err))
	}
	b, err := json.Marshal(data)
	if err != nil {
		return errorJSON(fmt.Sprintf("encode result: %v", err))
	}
	return string(b)
}

func toolError(name string, err error) string {
	if errors.Is(err, analytics.ErrUnknownTool) {
		return "Unknown function: " + name
	}
	return err.Error()
}

func errorJSON(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

func systemPrompt(history []domain.Message) string {
	var recent string
	if len(history) > 0 {
		start := len(history) - historyMessages
		if start < 0 {
			start = 0
		}
		var b strings.Builder
		b.WriteString("Recent conversation context:\n")
		for _, m := range history[start:] {
			role := "Assistant"
			if m.Role == domain.RoleUser {
				role = "User"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, truncate(m.Content, historySnippet))
		}
		recent = b.String()
	}

	return `You are a marketing analytics assistant with access to powerful data analysis tools.

Your role:
- Answer marketing and analytics questions using the available tools
- Call tools to gather data before responding
- You can call multiple tools if needed to answer comprehensively
- Synthesize data from multiple sources into clear insights
- Provide actionable recommendations

Guidelines:
- Always use tools to get actual data - don't make up numbers
- If the question requires multiple analyses, call multiple tools
- For complex questions, break them down and use appropriate tools
- Be concise but thorough (2-4 paragraphs)
- Focus on actionable insights

` + recent + `
Current date context: Assume queries about "this month" or "today" refer to recent data within the last 30 days unless specified otherwise.`
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
