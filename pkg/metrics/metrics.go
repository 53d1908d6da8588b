// Package metrics holds the Prometheus collectors shared by the engine and
// the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/germanamz/relnotes/pkg/modeladapter"
	"github.com/germanamz/relnotes/pkg/modeladapter/usage"
)

var (
	// RequestsTotal counts HTTP requests by method, route and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relnotes_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// IssueAnalysisSeconds tracks model latency per analysis kind.
	IssueAnalysisSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relnotes_issue_analysis_seconds",
		Help:    "Time spent analyzing one issue with the model.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"kind"})

	// AdjustmentsTotal counts parameter adjustments by model and action.
	AdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relnotes_adjustments_total",
		Help: "Request parameter adjustments applied for a model.",
	}, []string{"model", "kind"})

	// RetriesTotal counts adaptive retries after an unsupported parameter.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relnotes_retries_total",
		Help: "Requests resent after the provider rejected a parameter.",
	}, []string{"model"})

	// TokensTotal counts model tokens by direction (input, output, reasoning).
	TokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relnotes_tokens_total",
		Help: "Model tokens consumed.",
	}, []string{"direction"})
)

// RecordNotes counts adjustment notes. A retry note also counts as a retry.
func RecordNotes(model string, notes []modeladapter.Note) {
	for _, n := range notes {
		AdjustmentsTotal.WithLabelValues(model, string(n.Action)).Inc()

		if n.Action == modeladapter.ActionRetry {
			RetriesTotal.WithLabelValues(model).Inc()
		}
	}
}

// RecordTokens adds a completion's usage to TokensTotal.
func RecordTokens(tc usage.TokenCount) {
	TokensTotal.WithLabelValues("input").Add(float64(tc.InputTokens))
	TokensTotal.WithLabelValues("output").Add(float64(tc.OutputTokens))
	TokensTotal.WithLabelValues("reasoning").Add(float64(tc.ReasoningTokens))
}
