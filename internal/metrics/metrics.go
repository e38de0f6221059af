// Package metrics counts requests per answering mode, analytics tool
// invocations and intent detections.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"analytics-agent/internal/domain"
)

// Answering modes.
const (
	ModeSingleStep = "single_step"
	ModeMultiStep  = "multi_step"
	ModeAgentic    = "agentic"
	ModeError      = "error"
)

const (
	requestsName   = "analytics_agent_requests_total"
	toolCallsName  = "analytics_agent_tool_invocations_total"
	toolErrorsName = "analytics_agent_tool_errors_total"
	detectionsName = "analytics_agent_detections_total"
	durationName   = "analytics_agent_request_duration_seconds"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	requests   *prometheus.CounterVec
	toolCalls  *prometheus.CounterVec
	toolErrors *prometheus.CounterVec
	detections *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New registers the collectors on reg, which also serves Snapshot.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		return nil, errors.New("metrics: registry must not be nil")
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: requestsName,
			Help: "Answered questions by answering mode",
		}, []string{"mode"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: toolCallsName,
			Help: "Analytics tool invocations",
		}, []string{"tool"}),
		toolErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: toolErrorsName,
			Help: "Analytics tool invocations that failed",
		}, []string{"tool"}),
		detections: f.NewCounterVec(prometheus.CounterOpts{
			Name: detectionsName,
			Help: "Intent detections by method",
		}, []string{"method"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    durationName,
			Help:    "Time to answer a question",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"mode"}),
	}, nil
}

func (m *Metrics) RequestHandled(mode string, took time.Duration) {
	m.requests.WithLabelValues(mode).Inc()
	m.duration.WithLabelValues(mode).Observe(took.Seconds())
}

// ToolInvoked satisfies analytics.InvocationObserver.
func (m *Metrics) ToolInvoked(tool string, err error) {
	m.toolCalls.WithLabelValues(tool).Inc()
	if err != nil {
		m.toolErrors.WithLabelValues(tool).Inc()
	}
}

func (m *Metrics) DetectionMade(method domain.Method) {
	m.detections.WithLabelValues(string(method)).Inc()
}

// Snapshot is the JSON view served by the metrics endpoint.
type Snapshot struct {
	Requests        map[string]int64 `json:"requests_by_mode"`
	ToolInvocations map[string]int64 `json:"tool_invocations"`
	ToolErrors      map[string]int64 `json:"tool_errors"`
	Detections      map[string]int64 `json:"detections_by_method"`
	TotalRequests   int64            `json:"total_requests"`
}

func (m *Metrics) Snapshot() (Snapshot, error) {
	families, err := m.gatherer.Gather()
	if err != nil {
		return Snapshot{}, fmt.Errorf("metrics: gather: %w", err)
	}
	s := Snapshot{
		Requests:        map[string]int64{},
		ToolInvocations: map[string]int64{},
		ToolErrors:      map[string]int64{},
		Detections:      map[string]int64{},
	}
	for _, mf := range families {
		var into map[string]int64
		var label string
		switch mf.GetName() {
		case requestsName:
			into, label = s.Requests, "mode"
		case toolCallsName:
			into, label = s.ToolInvocations, "tool"
		case toolErrorsName:
			into, label = s.ToolErrors, "tool"
		case detectionsName:
			into, label = s.Detections, "method"
		default:
			continue
		}
		for _, metric := range mf.GetMetric() {
			into[labelValue(metric, label)] = int64(metric.GetCounter().GetValue())
		}
	}
	for _, n := range s.Requests {
		s.TotalRequests += n
	}
	return s, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
