package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"analytics-agent/internal/domain"
)

type scriptedLLM struct {
	replies []domain.Completion
	errs    []error
	reqs    []domain.CompletionRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	i := len(s.reqs)
	s.reqs = append(s.reqs, req)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], err
	}
	return domain.Completion{}, err
}

type call struct {
	tool string
	args map[string]any
}

type fakeTools struct {
	accepted map[string][]string
	data     map[string]any
	fail     map[string]error
	calls    []call
}

func (f *fakeTools) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{Name: "get_emotion_distribution", Description: "Emotion counts"},
		{Name: "get_trending_topics", Description: "Trending topics"},
	}
}

func (f *fakeTools) Accepts(tool string) ([]string, bool) {
	a, ok := f.accepted[tool]
	return a, ok
}

func (f *fakeTools) Call(_ context.Context, tool string, args map[string]any) (any, error) {
	f.calls = append(f.calls, call{tool: tool, args: args})
	if err := f.fail[tool]; err != nil {
		return nil, err
	}
	return f.data[tool], nil
}

func newTools() *fakeTools {
	return &fakeTools{
		accepted: map[string][]string{
			"get_emotion_distribution": {"period_days", "country_filter"},
			"get_trending_topics":      {"period_days", "limit", "emotion_filter"},
		},
		data: map[string]any{
			"get_emotion_distribution": []map[string]any{{"emotion": "anxious", "count": 12}},
			"get_trending_topics":      []map[string]any{{"topic": "sleep", "count": 40}},
		},
		fail: map[string]error{},
	}
}

func newPlanner(t *testing.T, llm Completer, tools Tools) *Planner {
	t.Helper()
	p, err := New(llm, tools, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return p
}

const twoStepPlan = `{
	"requires_multi_step": true,
	"steps": [
		{"step_number": 1, "tool": "get_emotion_distribution", "params": {"period_days": 7}, "description": "emotions this week"},
		{"step_number": 2, "tool": "get_trending_topics", "params": {"limit": 5}, "description": "top topics"}
	],
	"combine_strategy": "compare_side_by_side"
}`

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, newTools())
	require.ErrorContains(t, err, "completer must not be nil")
	_, err = New(&scriptedLLM{}, nil)
	require.ErrorContains(t, err, "tools must not be nil")
}

func TestTriggered(t *testing.T) {
	cases := map[string]bool{
		"compare emotions and topics":          true,
		"Show revenue, then show top products": true,
		"emotions vs topics":                   true,
		"break down revenue by country":        true,
		"give me sales along with refunds":     true,
		"what are the trending topics":         false,
		"show the vsl conversion numbers":      false,
		"revenue trends this month":            false,
	}
	for q, want := range cases {
		require.Equal(t, want, Triggered(q), q)
	}
}

func TestHandle_NoCueSkipsModel(t *testing.T) {
	llm := &scriptedLLM{}
	p := newPlanner(t, llm, newTools())

	_, ok := p.Handle(context.Background(), "what are the trending topics", domain.Params{})
	require.False(t, ok)
	require.Empty(t, llm.reqs)
}

func TestHandle_RunsStepsAndSynthesizes(t *testing.T) {
	llm := &scriptedLLM{replies: []domain.Completion{
		{Content: twoStepPlan},
		{Content: "Anxiety dominates while sleep leads the topics."},
	}}
	tools := newTools()
	p := newPlanner(t, llm, tools)

	out, ok := p.Handle(context.Background(), "compare emotions and topics this week", domain.Params{})
	require.True(t, ok)
	require.Equal(t, "Anxiety dominates while sleep leads the topics.", out.Answer)
	require.Equal(t, domain.Metadata{
		MultiStep:       true,
		NumSteps:        2,
		ToolsUsed:       []string{"get_emotion_distribution", "get_trending_topics"},
		CombineStrategy: "compare_side_by_side",
	}, out.Metadata)

	require.Len(t, tools.calls, 2)
	require.Equal(t, "get_emotion_distribution", tools.calls[0].tool)
	require.Equal(t, 7.0, tools.calls[0].args["period_days"])
	require.Equal(t, "get_trending_topics", tools.calls[1].tool)

	require.Len(t, llm.reqs, 2)
	planReq := llm.reqs[0]
	require.True(t, planReq.JSONMode)
	require.InDelta(t, 0.3, planReq.Temperature, 1e-6)
	prompt := planReq.Messages[0].Content
	require.Contains(t, prompt, "- get_emotion_distribution(period_days, country_filter): Emotion counts")
	require.Contains(t, prompt, `User question: "compare emotions and topics this week"`)
	require.Contains(t, prompt, `Default parameters available: {"period_days":30}`)
	require.Contains(t, prompt, "4. Keep it simple - max 3 steps")

	synthReq := llm.reqs[1]
	require.False(t, synthReq.JSONMode)
	require.Equal(t, 600, synthReq.MaxTokens)
	require.InDelta(t, 0.7, synthReq.Temperature, 1e-6)
	require.Contains(t, synthReq.Messages[0].Content, "Combination Strategy: compare_side_by_side")
	require.Contains(t, synthReq.Messages[0].Content, `"step": "emotions this week"`)
}

func TestHandle_DefaultsInPrompt(t *testing.T) {
	llm := &scriptedLLM{replies: []domain.Completion{{Content: `{"requires_multi_step": false, "steps": []}`}}}
	p := newPlanner(t, llm, newTools())

	_, ok := p.Handle(context.Background(), "compare revenue", domain.Params{PeriodDays: domain.Float(7), CountryFilter: "US"})
	require.False(t, ok)
	require.Contains(t, llm.reqs[0].Messages[0].Content, `Default parameters available: {"period_days":7,"country_filter":"US"}`)
}

func TestHandle_Declines(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "single step", reply: `{"requires_multi_step": false, "steps": [{"tool": "get_trending_topics"}]}`},
		{name: "empty steps", reply: `{"requires_multi_step": true, "steps": []}`},
		{name: "not json", reply: `sure, here is a plan`},
		{name: "schema violation", reply: `{"requires_multi_step": "yes", "steps": {}}`},
		{name: "step without tool", reply: `{"requires_multi_step": true, "steps": [{"params": {}}]}`},
		{name: "model error", err: errors.New("upstream 500")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{
				replies: []domain.Completion{{Content: tt.reply}},
				errs:    []error{tt.err},
			}
			tools := newTools()
			p := newPlanner(t, llm, tools)

			_, ok := p.Handle(context.Background(), "compare emotions and topics", domain.Params{})
			require.False(t, ok)
			require.Empty(t, tools.calls)
			require.Len(t, llm.reqs, 1)
		})
	}
}

func TestHandle_SkipsUnknownAndFailedSteps(t *testing.T) {
	plan := `{
		"requires_multi_step": true,
		"steps": [
			{"step_number": 1, "tool": "get_weather", "params": {}},
			{"step_number": 2, "tool": "get_emotion_distribution", "params": {}, "description": "emotions"},
			{"step_number": 3, "tool": "get_trending_topics", "params": {}, "description": "topics"}
		],
		"combine_strategy": "merge_results"
	}`
	llm := &scriptedLLM{replies: []domain.Completion{{Content: plan}, {Content: "merged"}}}
	tools := newTools()
	tools.fail["get_emotion_distribution"] = errors.New("mongo down")
	p := newPlanner(t, llm, tools)

	out, ok := p.Handle(context.Background(), "emotions along with topics", domain.Params{})
	require.True(t, ok)
	require.Equal(t, "merged", out.Answer)
	require.Equal(t, 3, out.Metadata.NumSteps)
	require.Equal(t, []string{"get_weather", "get_emotion_distribution", "get_trending_topics"}, out.Metadata.ToolsUsed)

	require.Len(t, tools.calls, 2)
	synth := llm.reqs[1].Messages[0].Content
	require.Contains(t, synth, `"step": "topics"`)
	require.NotContains(t, synth, `"step": "emotions"`)
}

func TestHandle_NothingSucceededDeclines(t *testing.T) {
	llm := &scriptedLLM{replies: []domain.Completion{{Content: twoStepPlan}}}
	tools := newTools()
	tools.fail["get_emotion_distribution"] = errors.New("boom")
	tools.fail["get_trending_topics"] = errors.New("boom")
	p := newPlanner(t, llm, tools)

	_, ok := p.Handle(context.Background(), "compare emotions and topics", domain.Params{})
	require.False(t, ok)
	require.Len(t, llm.reqs, 1)
}

func TestHandle_SynthesisFailure(t *testing.T) {
	llm := &scriptedLLM{
		replies: []domain.Completion{{Content: twoStepPlan}, {}},
		errs:    []error{nil, errors.New("timeout")},
	}
	p := newPlanner(t, llm, newTools())

	out, ok := p.Handle(context.Background(), "compare emotions and topics", domain.Params{})
	require.True(t, ok)
	require.Equal(t, SynthesisFailedAnswer, out.Answer)
	require.True(t, out.Metadata.MultiStep)
}

func TestParsePlan_NormalizesStrategyAndKeys(t *testing.T) {
	p := newPlanner(t, &scriptedLLM{}, newTools())

	plan, err := p.parsePlan(`{
		"requires_multi_step": true,
		"steps": [{"step_number": 2, "tool": "get_trending_topics"}],
		"combine_strategy": "interleave"
	}`)
	require.NoError(t, err)
	require.Equal(t, domain.CombineSequence, plan.CombineStrategy)
	require.Equal(t, "step_2", plan.Steps[0].OutputKey)
}

func TestSynthesisPrompt_FallsBackToToolName(t *testing.T) {
	prompt, err := synthesisPrompt(domain.CombineSequence, []stepResult{
		{step: domain.PlanStep{Tool: "get_trending_topics"}, data: map[string]any{"n": 1}},
	})
	require.NoError(t, err)

	start := len("You are a marketing analyst. Multiple data queries were executed. Synthesize them into a coherent response.\n\nCombination Strategy: sequence\n\nData from each step:\n")
	var steps []synthesisStep
	dec := json.NewDecoder(strings.NewReader(prompt[start:]))
	require.NoError(t, dec.Decode(&steps))
	require.Equal(t, "get_trending_topics", steps[0].Step)
}
