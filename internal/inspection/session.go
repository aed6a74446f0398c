// Package inspection runs one operator session: it loads the catalogue of
// inspectable batches, hands out draft records, and commits them through
// validation and the inspection log. After every successful commit the
// catalogue is reloaded so the consumed batch disappears from it.
package inspection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kontrol/internal/catalogue"
	"kontrol/internal/metrics"
	"kontrol/internal/record"
	"kontrol/internal/recordstore"
	"kontrol/internal/storage"
)

// Options wires a Session. Source and Store are required.
type Options struct {
	// Source is the batch registry.
	Source  storage.Repository
	Columns catalogue.Columns
	// Marker is the eligibility marker; empty means catalogue.DefaultMarker.
	Marker string

	Store  *recordstore.Store
	Roster []string

	Logger *zap.Logger
	// Now is the clock for new drafts; nil means time.Now.
	Now func() time.Time
}

// Session is not safe for concurrent use.
type Session struct {
	id     string
	source storage.Repository
	cols   catalogue.Columns
	marker string
	store  *recordstore.Store
	valid  *record.Validator
	log    *zap.Logger
	now    func() time.Time

	cat       *catalogue.Catalogue
	malformed []catalogue.MalformedSourceRow
	draft     *record.InspectionRecord
}

// New returns a session with an empty catalogue and a fresh draft. Call
// Refresh to load the catalogue.
func New(opts Options) *Session {
	s := &Session{
		id:     uuid.NewString(),
		source: opts.Source,
		cols:   opts.Columns,
		marker: opts.Marker,
		store:  opts.Store,
		valid:  record.NewValidator(opts.Roster),
		log:    opts.Logger,
		now:    opts.Now,
		cat:    catalogue.Empty(),
	}
	if s.marker == "" {
		s.marker = catalogue.DefaultMarker
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.log = s.log.With(zap.String("session", s.id))
	s.draft = record.New(s.now())
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Roster returns the sorted controller roster.
func (s *Session) Roster() []string { return s.valid.Roster() }

// Catalogue returns the current catalogue of inspectable batches.
func (s *Session) Catalogue() *catalogue.Catalogue { return s.cat }

// Available is the number of batches still open for inspection.
func (s *Session) Available() int { return s.cat.Len() }

// Malformed returns the registry rows skipped by the last Refresh.
func (s *Session) Malformed() []catalogue.MalformedSourceRow {
	return append([]catalogue.MalformedSourceRow(nil), s.malformed...)
}

// Draft returns the record being edited.
func (s *Session) Draft() *record.InspectionRecord { return s.draft }

// NewDraft discards the current draft and starts an empty one dated today.
func (s *Session) NewDraft() *record.InspectionRecord {
	s.draft = record.New(s.now())
	return s.draft
}

// ResolveName returns the descriptive name of id in the current catalogue,
// or "" when id is empty or not offered.
func (s *Session) ResolveName(id string) string { return s.cat.ResolveName(id) }

// Refresh reloads the catalogue from the registry, excluding batches already
// in the inspection log. When the registry or the log cannot be read the
// catalogue becomes empty and the error is returned; the session remains
// usable.
func (s *Session) Refresh(ctx context.Context) error {
	start := time.Now()
	err := s.refresh(ctx)
	metrics.RecordStep("load_catalogue", err, time.Since(start))
	return err
}

func (s *Session) refresh(ctx context.Context) error {
	excluded, err := s.store.ReadExcludedBatchIdentifiers(ctx)
	if err != nil {
		s.cat, s.malformed = catalogue.Empty(), nil
		s.log.Error("cannot read inspection log; catalogue is empty", zap.Error(err))
		return err
	}

	batches, malformed, err := catalogue.ReadSource(ctx, s.source, s.cols, s.log)
	if err != nil {
		s.cat, s.malformed = catalogue.Empty(), nil
		if errors.Is(err, catalogue.ErrSourceUnavailable) {
			s.log.Warn("batch registry unavailable; catalogue is empty", zap.Error(err))
		} else {
			s.log.Error("batch registry read failed", zap.Error(err))
		}
		return err
	}

	s.cat = catalogue.Load(batches, excluded, s.marker)
	s.malformed = malformed
	metrics.RecordRecord(metrics.KindMalformedSourceRow, int64(len(malformed)))
	s.log.Info("catalogue loaded",
		zap.Int("source", len(batches)),
		zap.Int("excluded", len(excluded)),
		zap.Int("malformed", len(malformed)),
		zap.Int("available", s.cat.Len()),
	)
	return nil
}

// Result describes a committed record.
type Result struct {
	Row      int
	Batch    string
	Accepted int
	// RefreshErr is set when the record was saved but the catalogue could
	// not be reloaded afterwards.
	RefreshErr error
}

// Commit validates the draft and appends it to the inspection log. On
// success the catalogue is reloaded and a new draft replaces the saved one.
// On failure the draft keeps every entered value and stays editable; the
// error is a *record.ValidationFailure (including a batch already in the
// log) or a *recordstore.PersistenceFailure.
func (s *Session) Commit(ctx context.Context) (Result, error) {
	d := s.draft

	start := time.Now()
	err := s.valid.Validate(d)
	metrics.RecordStep("validate", err, time.Since(start))
	if err != nil {
		metrics.RecordRecord(metrics.KindValidationFailed, 1)
		s.log.Info("record rejected", zap.String("batch", d.Batch()), zap.Error(err))
		return Result{}, err
	}
	if !s.cat.Contains(d.Batch()) {
		s.log.Warn("batch is not in the current catalogue", zap.String("batch", d.Batch()))
	}

	start = time.Now()
	row, err := s.store.Append(ctx, d)
	metrics.RecordStep("append", err, time.Since(start))
	if err != nil {
		d.Reopen()
		var vf *record.ValidationFailure
		if errors.As(err, &vf) {
			metrics.RecordRecord(metrics.KindValidationFailed, 1)
			s.log.Info("record rejected", zap.String("batch", d.Batch()), zap.Error(err))
			return Result{}, err
		}
		metrics.RecordRecord(metrics.KindPersistFailed, 1)
		return Result{}, err
	}
	if err := d.MarkPersisted(); err != nil {
		return Result{}, err
	}
	metrics.RecordRecord(metrics.KindAppended, 1)

	res := Result{Row: row, Batch: d.Batch(), Accepted: d.Accepted()}
	res.RefreshErr = s.Refresh(ctx)
	s.NewDraft()
	return res, nil
}
