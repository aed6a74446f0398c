// Package recordstore is the append-only inspection log. It owns the append
// cursor: every save opens the log, finds the last occupied row, writes the
// record after it and makes the change durable before returning.
package recordstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"kontrol/internal/record"
	"kontrol/internal/schema"
	"kontrol/internal/storage"
)

var (
	// ErrSchemaMismatch means an existing log's header row is not the
	// current column list. Nothing is written.
	ErrSchemaMismatch = errors.New("recordstore: log header does not match the column schema")

	// ErrNotValidated is returned by Append for drafts.
	ErrNotValidated = errors.New("recordstore: record has not been validated")
)

// PersistenceFailure wraps any error that prevented a durable append or a
// read of the log. The log is left as it was before the call.
type PersistenceFailure struct {
	Op  string
	Err error
}

func (f *PersistenceFailure) Error() string { return "recordstore: " + f.Op + ": " + f.Err.Error() }

func (f *PersistenceFailure) Unwrap() error { return f.Err }

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDateLayout sets the Go layout used as the date column's display
// format. The default is schema.Layout (DD.MM.YYYY).
func WithDateLayout(layout string) Option {
	return func(s *Store) {
		if layout != "" {
			s.layout = layout
		}
	}
}

// Store appends inspection records to one table.
type Store struct {
	repo   storage.Repository
	layout string
	log    *zap.Logger
}

// New returns a Store over repo.
func New(repo storage.Repository, opts ...Option) *Store {
	s := &Store{repo: repo, layout: schema.Layout, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Append writes rec as the row after the last occupied one and returns its
// row number. An absent or empty log first gets the header row. A batch
// already in the log is refused with a *record.ValidationFailure wrapping
// record.ErrBatchAlreadyRecorded. The date display format is re-applied to
// every data row on each save; re-applying an identical format is harmless.
// On failure no row is written.
func (s *Store) Append(ctx context.Context, rec *record.InspectionRecord) (int, error) {
	if rec.State() != record.Validated {
		return 0, ErrNotValidated
	}

	tbl, err := s.repo.Open(ctx)
	if errors.Is(err, storage.ErrNotExist) {
		tbl, err = s.repo.Create(ctx)
	}
	if err != nil {
		return 0, s.fail("open", err)
	}
	defer tbl.Close()

	last, err := tbl.LastRow()
	if err != nil {
		return 0, s.fail("locate last row", err)
	}
	if last == 0 {
		if err := tbl.WriteRow(1, headerValues()); err != nil {
			return 0, s.fail("write header", err)
		}
		last = 1
	} else {
		rows, err := tbl.Rows()
		if err != nil {
			return 0, s.fail("read", err)
		}
		if err := checkHeader(rows); err != nil {
			return 0, s.fail("check header", err)
		}
		// Batch identifiers are unique across the log.
		id := schema.Canonical(rec.Batch())
		if _, dup := batchIDs(rows)[id]; dup {
			s.log.Info("batch already recorded", zap.String("batch", id))
			return 0, &record.ValidationFailure{Reason: record.ErrBatchAlreadyRecorded, Field: schema.BatchColumn, Value: id}
		}
	}

	row := last + 1
	if err := tbl.WriteRow(row, Serialize(rec)); err != nil {
		return 0, s.fail("write row", err)
	}
	dateCol, _ := schema.Position(schema.DateColumn)
	if err := tbl.SetDateFormat(dateCol+1, 2, row, s.layout); err != nil {
		return 0, s.fail("format dates", err)
	}
	if err := tbl.Save(ctx); err != nil {
		return 0, s.fail("save", err)
	}

	s.log.Info("record appended",
		zap.String("batch", rec.Batch()),
		zap.Int("row", row),
		zap.Int("cast", rec.Cast()),
		zap.Int("accepted", rec.Accepted()),
	)
	return row, nil
}

// ReadExcludedBatchIdentifiers returns the batch identifiers already in the
// log. An absent log yields an empty set.
func (s *Store) ReadExcludedBatchIdentifiers(ctx context.Context) (map[string]struct{}, error) {
	tbl, err := s.repo.Open(ctx)
	if errors.Is(err, storage.ErrNotExist) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, s.fail("open", err)
	}
	defer tbl.Close()

	rows, err := tbl.Rows()
	if err != nil {
		return nil, s.fail("read", err)
	}
	return batchIDs(rows), nil
}

// batchIDs collects the canonical batch identifiers of the data rows. The
// batch column is located by header name, falling back to its schema
// position.
func batchIDs(rows [][]string) map[string]struct{} {
	out := map[string]struct{}{}
	if len(rows) < 2 {
		return out
	}
	col, _ := schema.Position(schema.BatchColumn)
	for i, h := range rows[0] {
		if schema.Canonical(h) == schema.BatchColumn {
			col = i
			break
		}
	}
	for _, r := range rows[1:] {
		if col >= len(r) {
			continue
		}
		if id := schema.Canonical(r[col]); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s *Store) fail(op string, err error) error {
	s.log.Error("inspection log operation failed", zap.String("op", op), zap.Error(err))
	return &PersistenceFailure{Op: op, Err: err}
}

func headerValues() []any {
	h := schema.Header()
	out := make([]any, len(h))
	for i, name := range h {
		out[i] = name
	}
	return out
}

func checkHeader(rows [][]string) error {
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	if schema.HeaderFingerprint(header) != schema.Fingerprint() {
		return fmt.Errorf("%w: found %d columns", ErrSchemaMismatch, len(header))
	}
	return nil
}

// Serialize flattens rec into schema column order: text for the batch and
// controllers, integers for quantities, a date value for the date column.
// Empty controller slots are empty cells.
func Serialize(rec *record.InspectionRecord) []any {
	cols := schema.Columns()
	out := make([]any, len(cols))
	ctrls := rec.Controllers()
	slot := 0
	for i, c := range cols {
		switch c.Name {
		case schema.BatchColumn:
			out[i] = rec.Batch()
		case schema.CastColumn:
			out[i] = rec.Cast()
		case schema.AcceptedColumn:
			out[i] = rec.Accepted()
		case schema.DateColumn:
			out[i] = rec.Date()
		case schema.Controller1Column, schema.Controller2Column, schema.Controller3Column:
			if name := ctrls[slot]; name != "" {
				out[i] = name
			}
			slot++
		default:
			id, _ := schema.DefectByName(c.Name)
			out[i] = rec.Count(id)
		}
	}
	return out
}
