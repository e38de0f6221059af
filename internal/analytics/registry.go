// Package analytics maps every analytic intent to a fixed MongoDB
// aggregation and exposes the same operations as named tools for the
// planner and the agent.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"analytics-agent/internal/domain"
)

var (
	ErrUnknownTool   = errors.New("analytics: unknown tool")
	ErrUnknownIntent = errors.New("analytics: no operation for intent")
)

type runFunc func(ctx context.Context, s *source, p domain.Params) (any, error)

// Param describes one tool argument in JSON-schema terms.
type Param struct {
	Name        string
	Type        string
	Description string
	Enum        []string
}

// Operation is one analytics query, addressable by intent and by tool name.
type Operation struct {
	Intent      domain.Intent
	Tool        string
	Description string
	Params      []Param

	context func(domain.Params) string
	run     runFunc
}

// Accepted lists the parameter names the operation reads.
func (o *Operation) Accepted() []string {
	out := make([]string, len(o.Params))
	for i, p := range o.Params {
		out[i] = p.Name
	}
	return out
}

// Result is the outcome of executing an operation for a resolved intent.
type Result struct {
	Intent   domain.Intent
	Tool     string
	Params   domain.Params
	Data     any
	Context  string
	DataType string
	Summary  string
}

// InvocationObserver is told about every operation run.
type InvocationObserver interface {
	ToolInvoked(tool string, err error)
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.src.now = now }
}

// WithLocation sets the business timezone used for day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) {
		if loc != nil {
			r.src.loc = loc
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithObserver(o InvocationObserver) Option {
	return func(r *Registry) { r.observer = o }
}

// Registry owns the operation table. It is safe for concurrent use.
type Registry struct {
	src      *source
	ops      []*Operation
	byIntent map[domain.Intent]*Operation
	byTool   map[string]*Operation
	logger   *zap.Logger
	observer InvocationObserver
}

// DefaultLocation is the business timezone, UTC+8.
var DefaultLocation = time.FixedZone("UTC+8", 8*60*60)

func NewRegistry(q Querier, opts ...Option) (*Registry, error) {
	if q == nil {
		return nil, errors.New("analytics: querier must not be nil")
	}
	r := &Registry{
		src:      &source{q: q, now: time.Now, loc: DefaultLocation},
		byIntent: make(map[domain.Intent]*Operation),
		byTool:   make(map[string]*Operation),
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	for _, op := range operations() {
		if _, dup := r.byTool[op.Tool]; dup {
			return nil, fmt.Errorf("analytics: duplicate tool %s", op.Tool)
		}
		r.ops = append(r.ops, op)
		r.byIntent[op.Intent] = op
		r.byTool[op.Tool] = op
	}
	for _, in := range domain.AnalyticIntents() {
		if _, ok := r.byIntent[in]; !ok {
			return nil, fmt.Errorf("analytics: intent %s has no operation", in)
		}
	}
	return r, nil
}

// Operation returns the operation behind an intent.
func (r *Registry) Operation(in domain.Intent) (*Operation, bool) {
	op, ok := r.byIntent[in]
	return op, ok
}

// Accepts returns the parameter names a tool reads.
func (r *Registry) Accepts(tool string) ([]string, bool) {
	op, ok := r.byTool[tool]
	if !ok {
		return nil, false
	}
	return op.Accepted(), true
}

// Execute runs the operation for a detected intent. Parameters the
// operation does not read are dropped first.
func (r *Registry) Execute(ctx context.Context, in domain.Intent, p domain.Params, question string) (Result, error) {
	op, ok := r.byIntent[in]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownIntent, in)
	}
	p = p.Restrict(op.Accepted())
	if in == domain.IntentRevenueTrends && p.GroupBy == "" {
		p.GroupBy = GroupByFor(question)
	}

	data, err := r.run(ctx, op, p)
	if err != nil {
		return Result{}, err
	}
	dataType, summary := Summarize(data)
	return Result{
		Intent:   in,
		Tool:     op.Tool,
		Params:   p,
		Data:     data,
		Context:  op.context(p),
		DataType: dataType,
		Summary:  summary,
	}, nil
}

// Call runs a tool by name with loosely typed model arguments. Invalid or
// unexpected arguments are ignored rather than rejected.
func (r *Registry) Call(ctx context.Context, tool string, args map[string]any) (any, error) {
	op, ok := r.byTool[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
	p, ignored := domain.ParamsFromMap(args)
	if len(ignored) > 0 {
		r.logger.Debug("ignoring tool arguments", zap.String("tool", tool), zap.Strings("keys", ignored))
	}
	return r.run(ctx, op, p.Restrict(op.Accepted()))
}

func (r *Registry) run(ctx context.Context, op *Operation, p domain.Params) (any, error) {
	start := time.Now()
	data, err := op.run(ctx, r.src, p)
	if r.observer != nil {
		r.observer.ToolInvoked(op.Tool, err)
	}
	if err != nil {
		r.logger.Warn("analytics operation failed", zap.String("tool", op.Tool), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("analytics operation done",
		zap.String("tool", op.Tool),
		zap.Strings("params", p.Keys()),
		zap.Duration("took", time.Since(start)),
	)
	return data, nil
}

// Definitions advertises every operation as a callable tool.
func (r *Registry) Definitions() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, 0, len(r.ops))
	for _, op := range r.ops {
		props := make(map[string]any, len(op.Params))
		for _, p := range op.Params {
			prop := map[string]any{"type": p.Type, "description": p.Description}
			if len(p.Enum) > 0 {
				prop["enum"] = p.Enum
			}
			props[p.Name] = prop
		}
		out = append(out, domain.ToolDefinition{
			Name:        op.Tool,
			Description: op.Description,
			Parameters:  map[string]any{"type": "object", "properties": props},
		})
	}
	return out
}

// Tools lists tool names in registry order.
func (r *Registry) Tools() []string {
	out := make([]string, len(r.ops))
	for i, op := range r.ops {
		out[i] = op.Tool
	}
	return out
}

// GroupByFor picks the revenue trend bucket from the wording of a question.
func GroupByFor(question string) string {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "week"):
		return "week"
	case strings.Contains(q, "month"):
		return "month"
	}
	return "day"
}

// Summarize describes the shape of an operation result for conversation
// metadata.
func Summarize(data any) (dataType, summary string) {
	switch d := data.(type) {
	case []bson.M:
		return "list", fmt.Sprintf("%d rows", len(d))
	case bson.M:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "object", "fields: " + strings.Join(keys, ", ")
	case nil:
		return "empty", "no data"
	}
	return fmt.Sprintf("%T", data), ""
}
