package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"analytics-agent/internal/api"
	"analytics-agent/internal/domain"
	"analytics-agent/internal/metrics"
	"analytics-agent/internal/usecase"
)

type stubService struct {
	out       usecase.AskOutput
	err       error
	in        usecase.AskInput
	explainIn usecase.ExplainInput
	statsErr  error
}

func (s *stubService) Ask(_ context.Context, in usecase.AskInput) (usecase.AskOutput, error) {
	s.in = in
	return s.out, s.err
}

func (s *stubService) Explain(_ context.Context, in usecase.ExplainInput) (usecase.ExplainOutput, error) {
	s.explainIn = in
	return usecase.ExplainOutput{HasContext: in.ConversationID != ""}, s.err
}

func (s *stubService) Stats(context.Context) (metrics.Snapshot, error) {
	return metrics.Snapshot{TotalRequests: 7}, s.statsErr
}

func makeEvent(path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func newHandler(t *testing.T, svc *stubService) *Handler {
	t.Helper()
	h, err := NewHandler(svc, zaptest.NewLogger(t))
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	for _, path := range []string{"/ask", "/api/chat"} {
		t.Run(path, func(t *testing.T) {
			svc := &stubService{out: usecase.AskOutput{
				Answer:         "hello",
				ConversationID: "conv-1",
				Status:         usecase.StatusSuccess,
				Metadata:       domain.Metadata{Agentic: true, Iterations: 1},
			}}
			h := newHandler(t, svc)

			resp, err := h.Handle(context.Background(), makeEvent(path, `{"question":"What sells best?","conversation_id":"conv-1","use_agentic":true}`))
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, usecase.AskInput{Question: "What sells best?", ConversationID: "conv-1", UseAgentic: true}, svc.in)

			out := parseBody[api.ChatResponse](t, resp.Body)
			require.Equal(t, "hello", out.Answer)
			require.Equal(t, "conv-1", out.ConversationID)
			require.True(t, out.Metadata.Agentic)
			require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
		})
	}
}

func TestHandle_InvalidBody(t *testing.T) {
	h := newHandler(t, &stubService{})

	resp, err := h.Handle(context.Background(), makeEvent("/ask", `not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[api.ErrorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Equal(t, "invalid_json", out.Reason)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_question"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "metrics_unavailable"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHandler(t, &stubService{err: tc.err})

			resp, err := h.Handle(context.Background(), makeEvent("/ask", `{"question":"What sells best?"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[api.ErrorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_DebugIntent(t *testing.T) {
	svc := &stubService{}
	h := newHandler(t, svc)

	event := makeEvent("/debug/intent", "")
	event.HTTPMethod = http.MethodGet
	event.QueryStringParameters = map[string]string{"question": "top products", "conversation_id": "c-3"}
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.ExplainInput{Question: "top products", ConversationID: "c-3"}, svc.explainIn)
	require.Equal(t, true, parseBody[map[string]any](t, resp.Body)["has_context"])

	resp, err = h.Handle(context.Background(), makeEvent("/api/debug/intent", `{"question":""}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_Metrics(t *testing.T) {
	svc := &stubService{}
	h := newHandler(t, svc)

	event := makeEvent("/metrics", "")
	event.HTTPMethod = http.MethodGet
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(7), parseBody[metrics.Snapshot](t, resp.Body).TotalRequests)

	svc.statsErr = &usecase.Error{Code: usecase.ErrorInternal, Reason: "metrics_unavailable"}
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandle_UnknownRoute(t *testing.T) {
	h := newHandler(t, &stubService{})

	resp, err := h.Handle(context.Background(), makeEvent("/nope", `{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "NOT_FOUND", parseBody[api.ErrorResponse](t, resp.Body).Error)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newHandler(t, &stubService{out: usecase.AskOutput{Answer: "ok", ConversationID: "conv-1"}})

	event := makeEvent("/ask", `{"question":"What sells best?"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_GeneratesCorrelationID(t *testing.T) {
	prev := newCorrelationID
	newCorrelationID = func() string { return "generated-1" }
	t.Cleanup(func() { newCorrelationID = prev })

	h := newHandler(t, &stubService{})
	resp, err := h.Handle(context.Background(), makeEvent("/ask", `{"question":"q"}`))
	require.NoError(t, err)
	require.Equal(t, "generated-1", resp.Headers["X-Correlation-Id"])
}
