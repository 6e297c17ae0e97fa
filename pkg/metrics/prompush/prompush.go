// pkg/metrics/prompush/prompush.go

// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. One-shot pipelines have nothing for Prometheus to scrape,
// so collectors accumulate in a private registry and Flush pushes the whole
// registry at the end of the run.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/fiscaldata/taxpayer-ingress/pkg/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" grouping key
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // ingress_step_total
	stepDuration *prometheus.SummaryVec // ingress_step_duration_seconds

	recordCounter   *prometheus.CounterVec // ingress_records_total
	fallbackCounter prometheus.Counter     // ingress_batch_fallbacks_total
}

// NewBackend constructs a Pushgateway backend. The job label rides on the
// Pushgateway grouping, so the collectors only carry step/status/kind.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "taxpayer-ingress"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_step_total",
			Help: "Pipeline stage executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "ingress_step_duration_seconds",
			Help:       "Duration of pipeline stages in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_records_total",
			Help: "Record-level counts per kind (accepted, dropped, inserted, discarded).",
		},
		[]string{"kind"},
	)
	fallbackCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingress_batch_fallbacks_total",
			Help: "Batches that degraded to row-by-row inserts.",
		},
	)

	if err := reg.Register(stepCounter); err != nil {
		return nil, fmt.Errorf("prompush: register step counter: %w", err)
	}
	if err := reg.Register(stepDuration); err != nil {
		return nil, fmt.Errorf("prompush: register step summary: %w", err)
	}
	if err := reg.Register(recordCounter); err != nil {
		return nil, fmt.Errorf("prompush: register record counter: %w", err)
	}
	if err := reg.Register(fallbackCounter); err != nil {
		return nil, fmt.Errorf("prompush: register fallback counter: %w", err)
	}

	return &Backend{
		gatewayURL:      gatewayURL,
		jobName:         jobName,
		reg:             reg,
		stepCounter:     stepCounter,
		stepDuration:    stepDuration,
		recordCounter:   recordCounter,
		fallbackCounter: fallbackCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "ingress_step_total":
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case "ingress_records_total":
		if b.recordCounter == nil {
			return
		}
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "ingress_batch_fallbacks_total":
		if b.fallbackCounter == nil {
			return
		}
		b.fallbackCounter.Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveDuration(name string, value float64, labels metrics.Labels) {
	if name != "ingress_step_duration_seconds" || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
