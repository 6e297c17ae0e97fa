// pkg/metrics/metrics.go

// Package metrics is a small backend-agnostic layer for operational counters
// and timings. It keeps a global, pluggable backend that defaults to a no-op,
// so instrumentation is always safe to call; the push command installs a real
// backend only when a gateway is configured. Concrete metric systems live in
// subpackages and nothing else imports them.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface a metrics system must satisfy.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a value in a latency-style metric.
	ObserveDuration(name string, value float64, labels Labels)
	// Flush pushes collected metrics if the backend buffers them.
	Flush() error
}

// nopBackend keeps metrics optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)      {}
func (nopBackend) ObserveDuration(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                              { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the current one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures one pipeline stage: a success/failure counter plus the
// stage latency.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter("ingress_step_total", 1, lbls)
	backend.ObserveDuration("ingress_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a record-level counter for the given kind.
//
// Kinds mirror the run summary fields: "accepted", "dropped", "inserted",
// "discarded", "skipped".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("ingress_records_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatchFallbacks counts batches that degraded to row-by-row inserts.
func RecordBatchFallbacks(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("ingress_batch_fallbacks_total", float64(delta), Labels{
		"job": job,
	})
}
