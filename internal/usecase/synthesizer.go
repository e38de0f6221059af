package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"analytics-agent/internal/domain"
)

const (
	synthesisTemperature = 0.7
	synthesisMaxTokens   = 500
	synthesisHistory     = 4
	synthesisSnippet     = 200
)

var (
	refiningRe  = regexp.MustCompile(`(?i)\b(?:what|how) about\b`)
	breakdownRe = regexp.MustCompile(`(?i)\bbreak ?down\b`)
	compareRe   = regexp.MustCompile(`(?i)\b(?:compare|vs)\b`)
)

// Completer is the chat model used for narrative synthesis.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// Synthesizer turns operation results into a short analyst narrative.
type Synthesizer struct {
	llm   Completer
	model string
}

func NewSynthesizer(llm Completer, model string) (*Synthesizer, error) {
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	return &Synthesizer{llm: llm, model: model}, nil
}

// Summarize returns the model's narrative for data. Model failures are
// returned unchanged so the caller can report them.
func (s *Synthesizer) Summarize(ctx context.Context, data any, description, question string, history []domain.Message) (string, error) {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("usecase: encode data: %w", err)
	}
	out, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Model: s.model,
		Messages: []domain.ChatMessage{
			{Role: domain.ChatRoleSystem, Content: analystPrompt},
			{Role: domain.ChatRoleUser, Content: synthesisPrompt(question, description, string(payload), history)},
		},
		Temperature: synthesisTemperature,
		MaxTokens:   synthesisMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("usecase: synthesis: %w", err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", errors.New("usecase: synthesis returned no text")
	}
	return out.Content, nil
}

const analystPrompt = `You are a marketing data analyst assistant.
Your job is to interpret analytics data and provide clear, actionable insights.

Guidelines:
- Be concise but informative (2-4 paragraphs max)
- Highlight key trends and patterns
- Provide actionable recommendations when relevant
- Use percentages and comparisons to make data meaningful
- Speak naturally, as if explaining to a colleague
- When this is a follow-up question, acknowledge the context naturally
- Don't repeat information already discussed in the conversation
- Focus on what's NEW or DIFFERENT in this response`

func synthesisPrompt(question, description, data string, history []domain.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The marketing team asked: %q\n\nContext: %s\n\n", question, description)
	if p := conversationPattern(history); p != "" {
		fmt.Fprintf(&b, "Conversation Pattern: %s\n\n", p)
	}
	fmt.Fprintf(&b, "Here is the data:\n%s\n\n", data)

	recent := recentExchanges(history)
	if recent != "" {
		fmt.Fprintf(&b, "Recent conversation:\n%s\n\n", recent)
	}
	b.WriteString("Please provide a clear summary with key insights and recommendations.")
	if recent != "" {
		b.WriteString("\nIf this builds on the previous conversation, reference it naturally without repeating yourself.")
	}
	return b.String()
}

func recentExchanges(history []domain.Message) string {
	if len(history) == 0 {
		return ""
	}
	start := len(history) - synthesisHistory
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, synthesisHistory)
	for _, m := range history[start:] {
		role := "Assistant"
		if m.Role == domain.RoleUser {
			role = "User"
		}
		lines = append(lines, role+": "+truncateRunes(m.Content, synthesisSnippet))
	}
	return strings.Join(lines, "\n")
}

// conversationPattern looks at the latest user question once the
// conversation has at least two of them.
func conversationPattern(history []domain.Message) string {
	var questions []string
	for _, m := range history {
		if m.Role == domain.RoleUser {
			questions = append(questions, m.Content)
		}
	}
	if len(questions) < 2 {
		return ""
	}
	last := questions[len(questions)-1]
	switch {
	case refiningRe.MatchString(last):
		return "The user is refining their previous query."
	case breakdownRe.MatchString(last):
		return "The user wants to see the data broken down further."
	case compareRe.MatchString(last):
		return "The user wants to compare metrics."
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
