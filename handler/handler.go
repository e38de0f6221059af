package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"analytics-agent/internal/api"
)

const correlationHeader = "X-Correlation-Id"

type Handler struct {
	svc    api.Service
	logger *zap.Logger
}

func NewHandler(svc api.Service, logger *zap.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: service must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}, nil
}

// Handle serves API Gateway proxy events. Failures are always reported as
// HTTP responses; the returned error is reserved for the runtime.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := headerValue(event.Headers, correlationHeader)
	if corrID == "" {
		corrID = newCorrelationID()
	}
	logger := h.logger.With(zap.String("correlation_id", corrID), zap.String("path", event.Path))

	status, body := h.route(ctx, event)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status))
	} else {
		logger.Info("request served", zap.Int("status", status))
	}
	return jsonResponse(status, body, corrID), nil
}

func (h *Handler) route(ctx context.Context, event events.APIGatewayProxyRequest) (int, any) {
	path := strings.TrimSuffix(event.Path, "/")
	switch {
	case (path == "/ask" || path == "/api/chat") && event.HTTPMethod == http.MethodPost:
		var req api.ChatRequest
		if err := api.Decode([]byte(event.Body), &req); err != nil {
			return api.ErrorFor(err)
		}
		out, err := h.svc.Ask(ctx, req.Input())
		if err != nil {
			return h.fail(err)
		}
		return http.StatusOK, api.NewChatResponse(out)

	case strings.HasSuffix(path, "/debug/intent"):
		var req api.DebugRequest
		if event.HTTPMethod == http.MethodGet {
			req.Question = event.QueryStringParameters["question"]
			req.ConversationID = event.QueryStringParameters["conversation_id"]
			if err := api.Validate(&req); err != nil {
				return api.ErrorFor(err)
			}
		} else if err := api.Decode([]byte(event.Body), &req); err != nil {
			return api.ErrorFor(err)
		}
		out, err := h.svc.Explain(ctx, req.Input())
		if err != nil {
			return h.fail(err)
		}
		return http.StatusOK, out

	case (path == "/metrics" || path == "/api/metrics") && event.HTTPMethod == http.MethodGet:
		snap, err := h.svc.Stats(ctx)
		if err != nil {
			return h.fail(err)
		}
		return http.StatusOK, snap
	}
	return http.StatusNotFound, api.ErrorResponse{Error: "NOT_FOUND", Reason: event.HTTPMethod + " " + event.Path}
}

func (h *Handler) fail(err error) (int, any) {
	status, body := api.ErrorFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("usecase error", zap.Error(err))
	}
	return status, body
}

func jsonResponse(status int, body any, corrID string) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR","reason":"encode_response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(b),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var newCorrelationID = func() string {
	return uuid.NewString()
}
