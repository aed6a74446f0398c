package record

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"kontrol/internal/derive"
	"kontrol/internal/schema"
)

// Validation reasons. A ValidationFailure always wraps exactly one of these.
var (
	ErrMissingBatch        = errors.New("batch identifier is required")
	ErrMissingCastQuantity = errors.New("cast quantity is required")
	ErrMissingController   = errors.New("at least one controller is required")
	ErrUnknownController   = errors.New("controller is not on the roster")

	// ErrBatchAlreadyRecorded is reported by the inspection log, which is
	// the only place that knows which batches were already inspected.
	ErrBatchAlreadyRecorded = errors.New("batch is already in the inspection log")
)

// ValidationFailure reports why a record may not be saved. Field names the
// schema column the operator should fix.
type ValidationFailure struct {
	Reason error
	Field  string
	Value  string
}

func (f *ValidationFailure) Error() string {
	if f.Value != "" {
		return fmt.Sprintf("validation: %s: %v (%q)", f.Field, f.Reason, f.Value)
	}
	return fmt.Sprintf("validation: %s: %v", f.Field, f.Reason)
}

func (f *ValidationFailure) Unwrap() error { return f.Reason }

// Validator gates persistence. Rules run in a fixed order and stop at the
// first failure:
//
//  1. batch identifier non-empty
//  2. cast quantity non-empty and numeric
//  3. at least one controller slot filled
//  4. every filled controller slot names a roster member (only when a
//     roster is configured)
//
// Defect counters are never required; blank means 0.
type Validator struct {
	roster map[string]struct{}
	names  []string
}

// NewValidator builds a validator for the given controller roster. An empty
// roster disables rule 4.
func NewValidator(roster []string) *Validator {
	v := &Validator{roster: make(map[string]struct{}, len(roster))}
	for _, name := range roster {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := v.roster[name]; dup {
			continue
		}
		v.roster[name] = struct{}{}
		v.names = append(v.names, name)
	}
	sort.Strings(v.names)
	return v
}

// Roster returns the sorted controller roster.
func (v *Validator) Roster() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Validate checks r and, on success, moves it to Validated. On failure the
// record stays a Draft with every value intact and a *ValidationFailure is
// returned.
func (v *Validator) Validate(r *InspectionRecord) error {
	if r.State() == Persisted {
		return ErrPersisted
	}
	if err := v.check(r); err != nil {
		r.state = Draft
		return err
	}
	r.markValidated()
	return nil
}

func (v *Validator) check(r *InspectionRecord) error {
	if r.Batch() == "" {
		return &ValidationFailure{Reason: ErrMissingBatch, Field: schema.BatchColumn}
	}

	if r.CastText() == "" {
		return &ValidationFailure{Reason: ErrMissingCastQuantity, Field: schema.CastColumn}
	}
	if _, err := derive.ParseCount(r.CastText()); err != nil {
		return &ValidationFailure{Reason: ErrMissingCastQuantity, Field: schema.CastColumn, Value: r.CastText()}
	}

	ctrls := r.Controllers()
	filled := false
	for _, c := range ctrls {
		if c != "" {
			filled = true
			break
		}
	}
	if !filled {
		return &ValidationFailure{Reason: ErrMissingController, Field: schema.Controller1Column}
	}

	if len(v.roster) > 0 {
		cols := schema.ControllerColumns()
		for i, c := range ctrls {
			if c == "" {
				continue
			}
			if _, ok := v.roster[c]; !ok {
				return &ValidationFailure{Reason: ErrUnknownController, Field: cols[i], Value: c}
			}
		}
	}
	return nil
}
