// Package csv stores tables as delimited text files. The whole file is held
// in memory as a storage.Grid and rewritten on Save; dates are written in
// their display layout.
package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"kontrol/internal/datasource"
	"kontrol/internal/storage"
)

func init() {
	storage.Register("csv", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(cfg)
	})
}

// Repository is a delimited file on disk or behind a URL.
type Repository struct {
	cfg   storage.Config
	comma rune
}

// NewRepository picks the delimiter from the extension: tab for .tsv,
// comma otherwise.
func NewRepository(cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("csv: path must not be empty")
	}
	comma := ','
	if strings.EqualFold(filepath.Ext(cfg.DSN), ".tsv") {
		comma = '\t'
	}
	return &Repository{cfg: cfg, comma: comma}, nil
}

// Close is a no-op.
func (r *Repository) Close() {}

// Open reads the file. Rows may have differing widths.
func (r *Repository) Open(ctx context.Context) (storage.Table, error) {
	rc, err := datasource.For(r.cfg.DSN, r.cfg.HTTP).Open(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("csv: %s: %w", r.cfg.DSN, storage.ErrNotExist)
		}
		return nil, fmt.Errorf("csv: %w", err)
	}
	defer rc.Close()

	cr := csv.NewReader(bufio.NewReader(rc))
	cr.Comma = r.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: read %s: %w", r.cfg.DSN, err)
	}
	g := storage.NewGrid()
	for i, rec := range records {
		if i == 0 {
			rec = stripHeaderBOM(rec)
		}
		for j, v := range rec {
			if v == "" {
				continue
			}
			g.Load(i+1, j+1, storage.Cell{Kind: storage.CellString, Value: v})
		}
	}
	return r.table(g), nil
}

// Create returns an empty table; the file is written on the first Save.
func (r *Repository) Create(ctx context.Context) (storage.Table, error) {
	if datasource.IsRemote(r.cfg.DSN) {
		return nil, fmt.Errorf("csv: %s: %w", r.cfg.DSN, storage.ErrReadOnly)
	}
	return r.table(storage.NewGrid()), nil
}

func (r *Repository) table(g *storage.Grid) *Table {
	return &Table{Grid: g, path: r.cfg.DSN, comma: r.comma, readOnly: datasource.IsRemote(r.cfg.DSN)}
}

// Table is an in-memory copy of the file.
type Table struct {
	*storage.Grid
	path     string
	comma    rune
	readOnly bool
}

// Rows returns the rendered rows.
func (t *Table) Rows() ([][]string, error) { return t.Grid.Rows(), nil }

// LastRow returns the last occupied row.
func (t *Table) LastRow() (int, error) { return t.Grid.LastRow(), nil }

// Save rewrites the whole file through a temporary file and a rename. The
// file starts with a UTF-8 BOM so spreadsheet tools detect the encoding.
func (t *Table) Save(ctx context.Context) error {
	if t.readOnly {
		return fmt.Errorf("csv: %s: %w", t.path, storage.ErrReadOnly)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), "."+filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("csv: save %s: %w", t.path, err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("csv: save %s: %w", t.path, err)
	}

	bw := bufio.NewWriter(tmp)
	if _, err := bw.WriteString(utf8BOM); err != nil {
		return fail(err)
	}
	cw := csv.NewWriter(bw)
	cw.Comma = t.comma
	if err := cw.WriteAll(t.Grid.Rows()); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("csv: save %s: %w", t.path, err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("csv: save %s: %w", t.path, err)
	}
	t.Grid.ClearDirty()
	return nil
}

// Close drops the in-memory copy.
func (t *Table) Close() error {
	t.Grid = storage.NewGrid()
	return nil
}

var (
	_ storage.Repository = (*Repository)(nil)
	_ storage.Table      = (*Table)(nil)
)
