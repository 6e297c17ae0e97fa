// pkg/metrics/metrics_test.go

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type durationCall struct {
	name   string
	value  float64
	labels Labels
}

type fakeBackend struct {
	counters   []counterCall
	durations  []durationCall
	flushCount int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveDuration(name string, value float64, labels Labels) {
	f.durations = append(f.durations, durationCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.flushCount++
	return nil
}

func withFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })

	fb := &fakeBackend{}
	backend = fb
	return fb
}

func TestRecordStepSuccessAndFailure(t *testing.T) {
	fb := withFakeBackend(t)

	RecordStep("run-a", "staging-load", nil, 2*time.Second)
	RecordStep("run-b", "migration", errors.New("boom"), 1500*time.Millisecond)

	require.Len(t, fb.counters, 2)
	require.Len(t, fb.durations, 2)

	assert.Equal(t, "ingress_step_total", fb.counters[0].name)
	assert.Equal(t, 1.0, fb.counters[0].delta)
	assert.Equal(t, "staging-load", fb.counters[0].labels["step"])
	assert.Equal(t, "success", fb.counters[0].labels["status"])
	assert.Equal(t, "failure", fb.counters[1].labels["status"])

	assert.Equal(t, "ingress_step_duration_seconds", fb.durations[0].name)
	assert.InDelta(t, 2.0, fb.durations[0].value, 0.001)
	assert.InDelta(t, 1.5, fb.durations[1].value, 0.001)
}

func TestRecordRowsSkipsNonPositiveDeltas(t *testing.T) {
	fb := withFakeBackend(t)

	RecordRows("run-a", "accepted", 40000)
	RecordRows("run-a", "dropped", 0)
	RecordRows("run-a", "discarded", -3)

	require.Len(t, fb.counters, 1)
	assert.Equal(t, "ingress_records_total", fb.counters[0].name)
	assert.Equal(t, 40000.0, fb.counters[0].delta)
	assert.Equal(t, "accepted", fb.counters[0].labels["kind"])
}

func TestRecordBatchFallbacks(t *testing.T) {
	fb := withFakeBackend(t)

	RecordBatchFallbacks("run-a", 2)
	RecordBatchFallbacks("run-a", 0)

	require.Len(t, fb.counters, 1)
	assert.Equal(t, "ingress_batch_fallbacks_total", fb.counters[0].name)
	assert.Equal(t, 2.0, fb.counters[0].delta)
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := withFakeBackend(t)

	require.NoError(t, Flush())
	assert.Equal(t, 1, fb.flushCount)

	// nil must not clear the installed backend
	SetBackend(nil)
	require.NoError(t, Flush())
	assert.Equal(t, 2, fb.flushCount)
}

func TestDefaultBackendIsSafe(t *testing.T) {
	orig := backend
	t.Cleanup(func() { backend = orig })
	backend = nopBackend{}

	RecordStep("run-a", "report", nil, time.Second)
	RecordRows("run-a", "inserted", 10)
	assert.NoError(t, Flush())
}
