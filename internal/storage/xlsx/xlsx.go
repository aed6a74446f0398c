// Package xlsx stores tables in Excel workbooks using excelize. It is the
// default backend: the registry and the inspection log are spreadsheets that
// people also open by hand.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"kontrol/internal/datasource"
	"kontrol/internal/storage"
)

func init() {
	storage.Register("xlsx", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(cfg)
	})
}

// Repository opens one workbook path (or URL) and one sheet in it.
type Repository struct {
	cfg storage.Config
}

// NewRepository validates cfg. No file is touched until Open or Create.
func NewRepository(cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("xlsx: path must not be empty")
	}
	return &Repository{cfg: cfg}, nil
}

// Close is a no-op; workbooks are released by Table.Close.
func (r *Repository) Close() {}

// Open reads the workbook into memory. A missing file wraps
// storage.ErrNotExist. When a sheet is configured but absent it is added.
func (r *Repository) Open(ctx context.Context) (storage.Table, error) {
	rc, err := datasource.For(r.cfg.DSN, r.cfg.HTTP).Open(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("xlsx: %s: %w", r.cfg.DSN, storage.ErrNotExist)
		}
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	defer rc.Close()

	f, err := excelize.OpenReader(rc)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read %s: %w", r.cfg.DSN, err)
	}
	sheet := r.cfg.Table
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("xlsx: add sheet %q: %w", sheet, err)
		}
	}
	return r.table(f, sheet), nil
}

// Create returns an empty workbook with a single sheet. The file appears on
// disk at the first Save.
func (r *Repository) Create(ctx context.Context) (storage.Table, error) {
	if datasource.IsRemote(r.cfg.DSN) {
		return nil, fmt.Errorf("xlsx: %s: %w", r.cfg.DSN, storage.ErrReadOnly)
	}
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if r.cfg.Table != "" && r.cfg.Table != sheet {
		if err := f.SetSheetName(sheet, r.cfg.Table); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("xlsx: name sheet %q: %w", r.cfg.Table, err)
		}
		sheet = r.cfg.Table
	}
	return r.table(f, sheet), nil
}

func (r *Repository) table(f *excelize.File, sheet string) *Table {
	return &Table{
		f:        f,
		sheet:    sheet,
		path:     r.cfg.DSN,
		readOnly: datasource.IsRemote(r.cfg.DSN),
		styles:   map[string]int{},
	}
}

// Table is one sheet of an in-memory workbook.
type Table struct {
	f        *excelize.File
	sheet    string
	path     string
	readOnly bool
	styles   map[string]int // number format -> style id
}

// Rows returns the sheet's rows rendered with their number formats, so date
// cells come back as the workbook displays them.
func (t *Table) Rows() ([][]string, error) {
	rows, err := t.f.GetRows(t.sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: rows: %w", err)
	}
	n := lastOccupied(rows)
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		out[i] = trimTrailing(rows[i])
	}
	return out, nil
}

// LastRow returns the index of the last row holding a value.
func (t *Table) LastRow() (int, error) {
	rows, err := t.f.GetRows(t.sheet)
	if err != nil {
		return 0, fmt.Errorf("xlsx: rows: %w", err)
	}
	return lastOccupied(rows), nil
}

// WriteRow writes values into row starting at column A. Dates are stored as
// Excel date serials so that spreadsheet tools can sort and filter them.
func (t *Table) WriteRow(row int, values []any) error {
	if row < 1 {
		return fmt.Errorf("xlsx: row %d out of range", row)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
			cells[i] = nil
		case string, int, int64:
			cells[i] = x
		case time.Time:
			cells[i] = x
		default:
			return fmt.Errorf("xlsx: row %d col %d: unsupported cell value %T", row, i+1, v)
		}
	}
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := t.f.SetSheetRow(t.sheet, start, &cells); err != nil {
		return fmt.Errorf("xlsx: write row %d: %w", row, err)
	}
	return nil
}

// SetDateFormat applies a custom number format derived from layout to
// column col in rows from..to.
func (t *Table) SetDateFormat(col, from, to int, layout string) error {
	if col < 1 || from < 1 || to < from {
		return fmt.Errorf("xlsx: bad date format range col=%d rows=%d..%d", col, from, to)
	}
	numFmt := NumFmt(layout)
	style, ok := t.styles[numFmt]
	if !ok {
		var err error
		style, err = t.f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
		if err != nil {
			return fmt.Errorf("xlsx: style %q: %w", numFmt, err)
		}
		t.styles[numFmt] = style
	}
	top, err := excelize.CoordinatesToCellName(col, from)
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	bottom, err := excelize.CoordinatesToCellName(col, to)
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := t.f.SetCellStyle(t.sheet, top, bottom, style); err != nil {
		return fmt.Errorf("xlsx: set style %s:%s: %w", top, bottom, err)
	}
	return nil
}

// Save writes the workbook to a temporary file next to the target and
// renames it into place, so a failed save leaves the previous file intact.
func (t *Table) Save(ctx context.Context) error {
	if t.readOnly {
		return fmt.Errorf("xlsx: %s: %w", t.path, storage.ErrReadOnly)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("xlsx: save %s: %w", t.path, err)
	}
	tmpName := tmp.Name()
	if err := t.f.Write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("xlsx: save %s: %w", t.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("xlsx: save %s: %w", t.path, err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("xlsx: save %s: %w", t.path, err)
	}
	return nil
}

// Close releases the workbook.
func (t *Table) Close() error { return t.f.Close() }

// NumFmt translates a Go date layout into an Excel number format, e.g.
// "02.01.2006" -> "dd.mm.yyyy".
func NumFmt(layout string) string {
	return numFmtReplacer.Replace(layout)
}

var numFmtReplacer = strings.NewReplacer(
	"2006", "yyyy",
	"06", "yy",
	"01", "mm",
	"02", "dd",
	"15", "hh",
	"04", "mm",
	"05", "ss",
)

func lastOccupied(rows [][]string) int {
	for i := len(rows) - 1; i >= 0; i-- {
		for _, v := range rows[i] {
			if v != "" {
				return i + 1
			}
		}
	}
	return 0
}

func trimTrailing(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return row[:end]
}

var (
	_ storage.Repository = (*Repository)(nil)
	_ storage.Table      = (*Table)(nil)
)
