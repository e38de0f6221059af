// Package api holds the JSON request and response shapes shared by the HTTP
// server and the Lambda handler, and the mapping from usecase errors to HTTP
// status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"analytics-agent/internal/domain"
	"analytics-agent/internal/metrics"
	"analytics-agent/internal/usecase"
)

// Service is the request surface both transports expose.
type Service interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
	Explain(ctx context.Context, in usecase.ExplainInput) (usecase.ExplainOutput, error)
	Stats(ctx context.Context) (metrics.Snapshot, error)
}

type ChatRequest struct {
	Question       string           `json:"question" validate:"required,max=500"`
	ConversationID string           `json:"conversation_id,omitempty" validate:"omitempty,max=128"`
	History        []domain.Message `json:"history,omitempty" validate:"max=40,dive"`
	UseAgentic     bool             `json:"use_agentic,omitempty"`
}

func (r ChatRequest) Input() usecase.AskInput {
	return usecase.AskInput{
		Question:       r.Question,
		ConversationID: r.ConversationID,
		History:        r.History,
		UseAgentic:     r.UseAgentic,
	}
}

type ChatResponse struct {
	Answer         string          `json:"answer"`
	ConversationID string          `json:"conversation_id"`
	Metadata       domain.Metadata `json:"metadata"`
	Status         string          `json:"status"`
}

func NewChatResponse(out usecase.AskOutput) ChatResponse {
	return ChatResponse{
		Answer:         out.Answer,
		ConversationID: out.ConversationID,
		Metadata:       out.Metadata,
		Status:         out.Status,
	}
}

type DebugRequest struct {
	Question       string `json:"question" validate:"required,max=500"`
	ConversationID string `json:"conversation_id,omitempty" validate:"omitempty,max=128"`
}

func (r DebugRequest) Input() usecase.ExplainInput {
	return usecase.ExplainInput{Question: r.Question, ConversationID: r.ConversationID}
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

var validate = validator.New()

// Decode unmarshals body into dst and validates it. Failures are returned as
// INVALID_INPUT usecase errors.
func Decode(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	return Validate(dst)
}

func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: reasonFor(err), Err: err}
	}
	return nil
}

func reasonFor(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid_request"
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "Question" && fe.Tag() == "required":
		return usecase.ReasonEmptyQuestion
	case fe.Field() == "Question" && fe.Tag() == "max":
		return usecase.ReasonQuestionTooLong
	}
	return fmt.Sprintf("invalid_%s", fe.Field())
}

// ErrorFor maps err to an HTTP status and response body. Errors that are not
// usecase errors are reported as INTERNAL_ERROR.
func ErrorFor(err error) (int, ErrorResponse) {
	code, reason, ok := usecase.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError, ErrorResponse{Error: string(usecase.ErrorInternal), Reason: "unexpected_error"}
	}
	body := ErrorResponse{Error: string(code), Reason: reason}
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, body
	default:
		return http.StatusInternalServerError, body
	}
}
