package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Messages are appended and never
// mutated after creation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata"`
}

// Metadata describes how an assistant answer was produced. Single-step
// answers carry the detection fields; multi-step and agentic answers carry
// their own blocks.
type Metadata struct {
	Intent          Intent  `json:"intent,omitempty"`
	Params          *Params `json:"params,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	DetectionMethod Method  `json:"detection_method,omitempty"`
	FollowUp        string  `json:"follow_up,omitempty"`
	DataType        string  `json:"data_type,omitempty"`
	DataSummary     string  `json:"data_summary,omitempty"`
	Error           string  `json:"error,omitempty"`

	MultiStep       bool     `json:"multi_step,omitempty"`
	NumSteps        int      `json:"num_steps,omitempty"`
	ToolsUsed       []string `json:"tools_used,omitempty"`
	CombineStrategy string   `json:"combine_strategy,omitempty"`

	Agentic              bool     `json:"agentic,omitempty"`
	ToolsCalled          []string `json:"tools_called,omitempty"`
	NumTools             int      `json:"num_tools,omitempty"`
	Iterations           int      `json:"iterations,omitempty"`
	MaxIterationsReached bool     `json:"max_iterations_reached,omitempty"`
}

// HasDetection reports whether the metadata records a resolved intent.
func (m Metadata) HasDetection() bool {
	return m.Intent != "" && m.Intent != IntentUnknown
}

// NewMessage stamps a message with the current UTC time.
func NewMessage(role Role, content string, meta Metadata) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now().UTC(), Metadata: meta}
}

// ConversationContext is the per-turn view over stored history consumed by
// the follow-up resolver and the parameter extractor. It is never persisted.
type ConversationContext struct {
	LastIntent         Intent   `json:"last_intent"`
	LastParams         Params   `json:"last_params"`
	LastDataType       string   `json:"last_data_type,omitempty"`
	LastDataSummary    string   `json:"last_data_summary,omitempty"`
	RecentQuestions    []string `json:"recent_questions"`
	ConversationLength int      `json:"conversation_length"`
	IsRefinement       bool     `json:"is_refinement"`
	IsComparison       bool     `json:"is_comparison"`
}

// Outcome is an answer together with the metadata recorded for it.
type Outcome struct {
	Answer   string
	Metadata Metadata
}
