package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"analytics-agent/internal/domain"
)

const planSchema = `{
	"type": "object",
	"required": ["requires_multi_step", "steps"],
	"properties": {
		"requires_multi_step": {"type": "boolean"},
		"combine_strategy": {"type": "string"},
		"steps": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["tool"],
				"properties": {
					"step_number": {"type": "integer"},
					"tool": {"type": "string", "minLength": 1},
					"params": {"type": "object"},
					"description": {"type": "string"},
					"output_key": {"type": "string"}
				}
			}
		}
	}
}`

func (p *Planner) toolList() string {
	var b strings.Builder
	for _, def := range p.tools.Definitions() {
		accepted, _ := p.tools.Accepts(def.Name)
		fmt.Fprintf(&b, "- %s(%s): %s\n", def.Name, strings.Join(accepted, ", "), def.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Planner) planningPrompt(question string, defaults domain.Params) (string, error) {
	if defaults.IsEmpty() {
		defaults = domain.Params{PeriodDays: domain.Float(30)}
	}
	defaultsJSON, err := json.Marshal(defaults)
	if err != nil {
		return "", fmt.Errorf("planner: encode defaults: %w", err)
	}

	return fmt.Sprintf(`You are a data analytics query planner. Break down this question into execution steps.

Available tools:
%s

User question: %q

Default parameters available: %s

Create an execution plan. Respond ONLY with valid JSON in this format:
{
    "requires_multi_step": true/false,
    "steps": [
        {
            "step_number": 1,
            "tool": "tool_name",
            "params": {},
            "description": "what this step does",
            "output_key": "unique_key_for_result"
        }
    ],
    "combine_strategy": "merge_results" | "compare_side_by_side" | "sequence"
}

Rules:
1. Use actual tool names from the list above
2. Only include params that the tool accepts
3. Set requires_multi_step to true only if multiple tools needed
4. Keep it simple - max 3 steps`, p.toolList(), question, defaultsJSON), nil
}

type synthesisStep struct {
	Step string `json:"step"`
	Data any    `json:"data"`
}

// synthesisPrompt hands only the successful steps to the model.
func synthesisPrompt(strategy domain.CombineStrategy, results []stepResult) (string, error) {
	steps := make([]synthesisStep, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			continue
		}
		desc := r.step.Description
		if desc == "" {
			desc = r.step.Tool
		}
		steps = append(steps, synthesisStep{Step: desc, Data: r.data})
	}
	data, err := json.MarshalIndent(steps, "", "  ")
	if err != nil {
		return "", fmt.Errorf("planner: encode step data: %w", err)
	}

	return fmt.Sprintf(`You are a marketing analyst. Multiple data queries were executed. Synthesize them into a coherent response.

Combination Strategy: %s

Data from each step:
%s

Instructions:
- If strategy is "compare_side_by_side": Compare and contrast the results
- If strategy is "merge_results": Present as a unified analysis
- If strategy is "sequence": Present in logical order, showing progression

Provide a clear, actionable summary (3-5 paragraphs max).`, strategy, data), nil
}
