// Package storage contains the storage-agnostic contract for tabular files.
//
// The inspection log and the batch registry are both "a named table of
// rows": a spreadsheet, a delimited text file, or a cell table in a
// database. Callers only see Repository and Table; concrete backends live in
// subpackages and register themselves by kind at init time (see
// storage/all).
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"kontrol/internal/datasource/httpds"
)

var (
	// ErrReadOnly is returned by Create and Save on remote tables.
	ErrReadOnly = errors.New("storage: table is read-only")

	// ErrNotExist is returned by Repository.Open when the table has never
	// been created. Callers test with errors.Is.
	ErrNotExist = errors.New("storage: table does not exist")

	// ErrUnsupportedKind is returned by New for unregistered kinds.
	ErrUnsupportedKind = errors.New("storage: unsupported kind")
)

// Config selects and configures a backend.
type Config struct {
	// Kind selects the backend: "xlsx", "csv", "sqlite", "postgres". When
	// empty it is inferred from DSN (see KindFromDSN).
	Kind string

	// DSN is a file path for file backends, a file path or SQLite DSN for
	// sqlite, and a connection string for postgres.
	DSN string

	// Table names the sheet (xlsx) or the cell table (sqlite, postgres).
	// Empty means the active sheet, or a backend default table name.
	Table string

	// HTTP configures fetching when DSN is an http(s) URL. Remote tables are
	// read-only.
	HTTP httpds.Config
}

// Table is an opened tabular file. Rows are 1-based; row 1 of the inspection
// log is its header. Writes are buffered until Save.
type Table interface {
	// Rows returns every occupied row, rendered the way the file displays
	// it (dates in their display format). Buffered writes are included.
	Rows() ([][]string, error)

	// LastRow returns the index of the last occupied row, 0 when empty.
	LastRow() (int, error)

	// WriteRow sets the cells of one row starting at column 1. Supported
	// value types are string, int, int64, time.Time and nil (empty cell).
	WriteRow(row int, values []any) error

	// SetDateFormat sets the display layout (a Go time layout) of column col
	// for rows from..to inclusive. Values are not changed.
	SetDateFormat(col, from, to int, layout string) error

	// Save makes every buffered change durable. It either applies all of
	// them or none.
	Save(ctx context.Context) error

	// Close releases the table. Unsaved changes are discarded.
	Close() error
}

// Repository opens and creates the table behind a Config.
type Repository interface {
	// Open opens the existing table or returns an error wrapping ErrNotExist.
	Open(ctx context.Context) (Table, error)

	// Create returns a new, empty table. Nothing is written until Save.
	Create(ctx context.Context) (Table, error)

	// Close releases backend resources (connection pools).
	Close()
}

// Factory constructs a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// again replaces the previous factory.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New returns a Repository for cfg using the registered factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = KindFromDSN(cfg.DSN)
	}
	regMu.RLock()
	f, ok := factories[kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: storage.kind=%s", ErrUnsupportedKind, kind)
	}
	cfg.Kind = kind
	return f(ctx, cfg)
}

// KindFromDSN infers a backend kind from a path or connection string.
// It returns "" when nothing matches.
func KindFromDSN(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	if strings.HasPrefix(lower, "file:") {
		return "sqlite"
	}
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if i := strings.IndexAny(lower, "?#"); i >= 0 {
			lower = lower[:i]
		}
	}
	switch filepath.Ext(lower) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".csv", ".tsv", ".txt":
		return "csv"
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	}
	return ""
}
