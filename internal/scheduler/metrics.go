package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the scheduler's Prometheus instruments.
type metrics struct {
	submissions  prometheus.Counter
	completions  *prometheus.CounterVec
	staleResults prometheus.Counter
	queueDepth   prometheus.Gauge
}

// newMetrics registers the scheduler metrics with reg. A nil registerer
// yields no-op instruments backed by a throwaway registry.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &metrics{
		submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "rangerd_submissions_total",
			Help: "Ranging requests accepted into the queue.",
		}),
		completions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rangerd_completions_total",
			Help: "Ranging requests completed, by outcome.",
		}, []string{"outcome"}),
		staleResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "rangerd_stale_results_total",
			Help: "Engine results discarded for not matching the dispatched command.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rangerd_queue_depth",
			Help: "Requests currently queued, including the dispatched head.",
		}),
	}
}

// Outcome label values.
const (
	outcomeResults    = "results"
	outcomeFailure    = "failure"
	outcomeSuppressed = "suppressed"
)
