package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tool calls
var (
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpchat_tool_calls_total",
			Help: "Tool calls dispatched to providers",
		},
		[]string{"provider", "tool", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpchat_tool_call_duration_seconds",
			Help:    "Tool call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "tool"},
	)
)

// agent invocations
var (
	AgentInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpchat_agent_invocations_total",
			Help: "Agent invocations",
		},
		[]string{"status"},
	)

	AgentInvocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mcpchat_agent_invocation_duration_seconds",
			Help:    "Agent invocation latency",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	AgentTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpchat_agent_tokens_total",
			Help: "Model tokens used by the agent",
		},
		[]string{"kind"},
	)
)

// http
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpchat_http_requests_total",
			Help: "HTTP requests served by the web shell",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpchat_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Status maps an error to the status label used by the counters.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
