package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

// swap installs fb for the duration of the test.
func swap(t *testing.T, fb Backend) {
	t.Helper()
	orig := current()
	mu.Lock()
	backend = fb
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		backend = orig
		mu.Unlock()
	})
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := &fakeBackend{}
	swap(t, fb)

	RecordStep("load_catalogue", nil, 2*time.Second)
	RecordStep("append", errors.New("file is locked"), 1500*time.Millisecond)

	if len(fb.callsCounters) != 2 {
		t.Fatalf("expected 2 counter calls, got %d", len(fb.callsCounters))
	}
	if len(fb.callsHistograms) != 2 {
		t.Fatalf("expected 2 histogram calls, got %d", len(fb.callsHistograms))
	}

	cc0 := fb.callsCounters[0]
	if cc0.name != StepTotal || cc0.delta != 1 {
		t.Fatalf("counter[0] = %#v; want name=%s, delta=1", cc0, StepTotal)
	}
	if got := cc0.labels["step"]; got != "load_catalogue" {
		t.Fatalf("counter[0].labels[step]=%q; want %q", got, "load_catalogue")
	}
	if got := cc0.labels["status"]; got != "success" {
		t.Fatalf("counter[0].labels[status]=%q; want %q", got, "success")
	}

	h0 := fb.callsHistograms[0]
	if h0.name != StepDuration {
		t.Fatalf("hist[0].name=%q; want %s", h0.name, StepDuration)
	}
	if h0.value < 2.0-0.001 || h0.value > 2.0+0.001 {
		t.Fatalf("hist[0].value=%v; want ~2.0", h0.value)
	}

	cc1 := fb.callsCounters[1]
	if cc1.labels["step"] != "append" || cc1.labels["status"] != "failure" {
		t.Fatalf("counter[1] labels = %v; want step=append status=failure", cc1.labels)
	}
	h1 := fb.callsHistograms[1]
	if h1.value < 1.5-0.001 || h1.value > 1.5+0.001 {
		t.Fatalf("hist[1].value=%v; want ~1.5", h1.value)
	}
}

func TestRecordRecord(t *testing.T) {
	fb := &fakeBackend{}
	swap(t, fb)

	RecordRecord(KindAppended, 1)
	RecordRecord(KindAppended, 0) // ignored
	RecordRecord(KindMalformedSourceRow, 3)
	RecordRecord(KindValidationFailed, -1) // ignored

	if len(fb.callsCounters) != 2 {
		t.Fatalf("expected 2 counter calls, got %d", len(fb.callsCounters))
	}
	c0 := fb.callsCounters[0]
	if c0.name != RecordsTotal || c0.delta != 1 || c0.labels["kind"] != KindAppended {
		t.Fatalf("counter[0] = %#v", c0)
	}
	c1 := fb.callsCounters[1]
	if c1.delta != 3 || c1.labels["kind"] != "malformed_source_rows" {
		t.Fatalf("counter[1] = %#v", c1)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	swap(t, current())

	fb := &fakeBackend{}
	SetBackend(fb)

	if current() != fb {
		t.Fatal("SetBackend did not replace global backend")
	}

	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("expected flushCount=1, got %d", fb.flushCount)
	}

	// SetBackend(nil) should not nil out the backend.
	SetBackend(nil)
	if current() != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}

func TestNopBackendAcceptsEverything(t *testing.T) {
	swap(t, nopBackend{})

	RecordStep("x", nil, time.Millisecond)
	RecordRecord(KindAppended, 1)
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush returned %v", err)
	}
}
