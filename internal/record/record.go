// Package record models a single inspection of one batch: the values an
// operator enters, the derived accepted quantity, and the record's
// lifecycle (Draft -> Validated -> Persisted).
//
// Every mutation re-derives the accepted quantity from scratch, so Accepted
// always equals cast minus the sum of all defect counters, hidden legacy
// counters included.
package record

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kontrol/internal/derive"
	"kontrol/internal/schema"
)

// State is the lifecycle position of a record.
type State int

const (
	Draft State = iota
	Validated
	Persisted
)

func (s State) String() string {
	switch s {
	case Draft:
		return "draft"
	case Validated:
		return "validated"
	case Persisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrPersisted is returned when mutating a record that has been saved.
	ErrPersisted = errors.New("record: already persisted")
	// ErrDerivedField is returned when a caller tries to set the accepted
	// quantity directly.
	ErrDerivedField = errors.New("record: accepted quantity is derived")
	// ErrUnknownField is returned by Apply for names outside the schema.
	ErrUnknownField = errors.New("record: unknown field")
	// ErrControllerSlot is returned for a controller slot outside 0..2.
	ErrControllerSlot = errors.New("record: controller slot out of range")
	// ErrInvalidDate is returned by Apply when a date does not parse.
	ErrInvalidDate = errors.New("record: invalid date")
)

// InspectionRecord is one inspection of one batch. The zero value is not
// usable; construct with New.
type InspectionRecord struct {
	batch       string
	cast        string // sanitized digits as entered
	accepted    int
	date        time.Time
	controllers [schema.MaxControllers]string

	// counts and entries are indexed by schema.DefectID.
	counts  []int
	entries []string

	state State
}

// New returns an empty draft dated on the calendar day of now.
func New(now time.Time) *InspectionRecord {
	n := schema.DefectCount()
	return &InspectionRecord{
		date:    Day(now),
		counts:  make([]int, n),
		entries: make([]string, n),
	}
}

// Day truncates t to its calendar date, keeping the year/month/day as seen
// in t's location, and returns it in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Batch returns the selected batch identifier.
func (r *InspectionRecord) Batch() string { return r.batch }

// CastText returns the sanitized cast quantity as entered; empty when blank.
func (r *InspectionRecord) CastText() string { return r.cast }

// Cast returns the cast quantity, 0 when blank or out of range.
func (r *InspectionRecord) Cast() int { return derive.Coerce(r.cast) }

// Accepted returns the derived accepted quantity. It may be negative.
func (r *InspectionRecord) Accepted() int { return r.accepted }

// Date returns the acceptance date.
func (r *InspectionRecord) Date() time.Time { return r.date }

// Controllers returns the three controller slots; empty slots are "".
func (r *InspectionRecord) Controllers() [schema.MaxControllers]string { return r.controllers }

// State returns the lifecycle state.
func (r *InspectionRecord) State() State { return r.state }

// Count returns the counter for one defect column.
func (r *InspectionRecord) Count(id schema.DefectID) int { return r.counts[id] }

// Entry returns the sanitized text entered for one defect column.
func (r *InspectionRecord) Entry(id schema.DefectID) string { return r.entries[id] }

// Counts returns a copy of all defect counters indexed by schema.DefectID.
func (r *InspectionRecord) Counts() []int {
	out := make([]int, len(r.counts))
	copy(out, r.counts)
	return out
}

// Defects returns the defect counters keyed by column name.
func (r *InspectionRecord) Defects() map[string]int {
	out := make(map[string]int, len(r.counts))
	for i, n := range r.counts {
		out[schema.DefectID(i).Name()] = n
	}
	return out
}

// mutate guards every setter: persisted records are immutable, and any
// change to a validated record sends it back to Draft.
func (r *InspectionRecord) mutate(fn func()) error {
	if r.state == Persisted {
		return ErrPersisted
	}
	fn()
	r.state = Draft
	r.recompute()
	return nil
}

func (r *InspectionRecord) recompute() {
	r.accepted = derive.Accepted(r.Cast(), r.counts)
}

// SetBatch selects the batch identifier.
func (r *InspectionRecord) SetBatch(id string) error {
	return r.mutate(func() { r.batch = strings.TrimSpace(id) })
}

// SetCast sets the cast quantity from free text.
func (r *InspectionRecord) SetCast(raw string) error {
	return r.mutate(func() { r.cast = derive.SanitizeDigits(raw) })
}

// SetDate sets the acceptance date; only the calendar day is kept.
func (r *InspectionRecord) SetDate(d time.Time) error {
	return r.mutate(func() { r.date = Day(d) })
}

// SetController fills controller slot 0, 1 or 2. An empty name clears it.
func (r *InspectionRecord) SetController(slot int, name string) error {
	if slot < 0 || slot >= schema.MaxControllers {
		return fmt.Errorf("%w: %d", ErrControllerSlot, slot)
	}
	return r.mutate(func() { r.controllers[slot] = strings.TrimSpace(name) })
}

// SetDefect sets one defect counter from free text.
func (r *InspectionRecord) SetDefect(id schema.DefectID, raw string) error {
	if !id.Valid() {
		return fmt.Errorf("%w: defect id %d", ErrUnknownField, int(id))
	}
	return r.mutate(func() {
		r.entries[id] = derive.SanitizeDigits(raw)
		r.counts[id] = derive.Coerce(r.entries[id])
	})
}

// Apply is the single update event of the form: it routes a value to the
// field named by a schema column. Dates are parsed with schema.Layout.
func (r *InspectionRecord) Apply(field, value string) error {
	name := schema.Canonical(field)
	if id, ok := schema.DefectByName(name); ok {
		return r.SetDefect(id, value)
	}
	switch name {
	case schema.BatchColumn:
		return r.SetBatch(value)
	case schema.CastColumn:
		return r.SetCast(value)
	case schema.AcceptedColumn:
		return ErrDerivedField
	case schema.DateColumn:
		d, err := time.Parse(schema.Layout, strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, value)
		}
		return r.SetDate(d)
	case schema.Controller1Column:
		return r.SetController(0, value)
	case schema.Controller2Column:
		return r.SetController(1, value)
	case schema.Controller3Column:
		return r.SetController(2, value)
	}
	return fmt.Errorf("%w: %q", ErrUnknownField, field)
}

// markValidated is only called by Validator.Validate.
func (r *InspectionRecord) markValidated() { r.state = Validated }

// MarkPersisted freezes the record after a successful append. It fails
// unless the record has been validated.
func (r *InspectionRecord) MarkPersisted() error {
	switch r.state {
	case Persisted:
		return ErrPersisted
	case Validated:
		r.state = Persisted
		return nil
	default:
		return fmt.Errorf("record: cannot persist from state %s", r.state)
	}
}

// Reopen returns a validated record to Draft after a failed save, keeping
// every entered value.
func (r *InspectionRecord) Reopen() {
	if r.state == Validated {
		r.state = Draft
	}
}
