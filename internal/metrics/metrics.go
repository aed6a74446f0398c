// Package metrics records operational metrics of inspection sessions behind
// a small backend-agnostic interface.
//
// The global backend defaults to a no-op so instrumentation is always safe
// to call. Concrete systems (Prometheus Pushgateway, DogStatsD) live in
// subpackages and are installed with SetBackend, the same way storage
// backends register themselves.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by this package.
const (
	StepTotal    = "kontrol_step_total"
	StepDuration = "kontrol_step_duration_seconds"
	RecordsTotal = "kontrol_records_total"
)

// Record kinds counted by RecordRecord.
const (
	KindAppended           = "appended"
	KindValidationFailed   = "validation_failed"
	KindPersistFailed      = "persist_failed"
	KindMalformedSourceRow = "malformed_source_rows"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a session step (load_catalogue,
// validate, append, ...) and observes its duration.
func RecordStep(step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRecord increments the record-level counter for kind. Non-positive
// deltas are ignored.
func RecordRecord(kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"kind": kind})
}
