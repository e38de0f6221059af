package domain

type CombineStrategy string

const (
	CombineMerge    CombineStrategy = "merge_results"
	CombineCompare  CombineStrategy = "compare_side_by_side"
	CombineSequence CombineStrategy = "sequence"
)

// PlanStep is one tool invocation of a multi-step plan.
type PlanStep struct {
	StepNumber  int            `json:"step_number"`
	Tool        string         `json:"tool"`
	Params      map[string]any `json:"params"`
	Description string         `json:"description"`
	OutputKey   string         `json:"output_key"`
}

// ExecutionPlan is produced per request and never persisted.
type ExecutionPlan struct {
	RequiresMultiStep bool            `json:"requires_multi_step"`
	Steps             []PlanStep      `json:"steps"`
	CombineStrategy   CombineStrategy `json:"combine_strategy"`
}
