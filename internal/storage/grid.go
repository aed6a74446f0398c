package storage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ISODate is the storage form of date cells in text-based backends.
const ISODate = "2006-01-02"

// CellKind tags the value type of a Cell.
type CellKind string

const (
	CellEmpty  CellKind = ""
	CellString CellKind = "s"
	CellInt    CellKind = "n"
	CellDate   CellKind = "d"
)

// Cell is one stored value. Date cells hold ISODate text in Value and an
// optional Go layout in Format that controls how they are displayed.
type Cell struct {
	Kind   CellKind
	Value  string
	Format string
}

// EncodeCell converts a WriteRow value into a Cell.
func EncodeCell(v any) (Cell, error) {
	switch t := v.(type) {
	case nil:
		return Cell{}, nil
	case string:
		if t == "" {
			return Cell{}, nil
		}
		return Cell{Kind: CellString, Value: t}, nil
	case int:
		return Cell{Kind: CellInt, Value: strconv.Itoa(t)}, nil
	case int64:
		return Cell{Kind: CellInt, Value: strconv.FormatInt(t, 10)}, nil
	case time.Time:
		return Cell{Kind: CellDate, Value: t.Format(ISODate)}, nil
	default:
		return Cell{}, fmt.Errorf("storage: unsupported cell value %T", v)
	}
}

// Render returns the display text of c.
func (c Cell) Render() string {
	if c.Kind != CellDate {
		return c.Value
	}
	if c.Format == "" {
		return c.Value
	}
	d, err := time.Parse(ISODate, c.Value)
	if err != nil {
		return c.Value
	}
	return d.Format(c.Format)
}

// Grid is an in-memory sheet with dirty-row tracking. Backends without a
// native spreadsheet model load their cells into a Grid, let the Table
// methods mutate it, and persist the dirty rows on Save.
type Grid struct {
	rows  [][]Cell // rows[0] is row 1
	dirty map[int]struct{}
}

// NewGrid returns an empty grid.
func NewGrid() *Grid { return &Grid{dirty: map[int]struct{}{}} }

func (g *Grid) ensure(row, col int) {
	for len(g.rows) < row {
		g.rows = append(g.rows, nil)
	}
	r := g.rows[row-1]
	for len(r) < col {
		r = append(r, Cell{})
	}
	g.rows[row-1] = r
}

// Load places a stored cell without marking it dirty.
func (g *Grid) Load(row, col int, c Cell) {
	if row < 1 || col < 1 {
		return
	}
	g.ensure(row, col)
	g.rows[row-1][col-1] = c
}

// WriteRow replaces the cells of row starting at column 1.
func (g *Grid) WriteRow(row int, values []any) error {
	if row < 1 {
		return fmt.Errorf("storage: row %d out of range", row)
	}
	cells := make([]Cell, len(values))
	for i, v := range values {
		c, err := EncodeCell(v)
		if err != nil {
			return fmt.Errorf("row %d col %d: %w", row, i+1, err)
		}
		cells[i] = c
	}
	g.ensure(row, len(cells))
	// Keep formats already applied to cells being overwritten.
	for i := range cells {
		if prev := g.rows[row-1][i]; prev.Format != "" && cells[i].Kind == CellDate {
			cells[i].Format = prev.Format
		}
	}
	copy(g.rows[row-1], cells)
	g.dirty[row] = struct{}{}
	return nil
}

// LastRow returns the last row holding a non-empty cell, 0 when empty.
func (g *Grid) LastRow() int {
	for i := len(g.rows) - 1; i >= 0; i-- {
		for _, c := range g.rows[i] {
			if c.Kind != CellEmpty {
				return i + 1
			}
		}
	}
	return 0
}

// SetDateFormat applies layout to column col in rows from..to. String cells
// that parse as a date (ISO or already in layout) are turned into date cells
// so text backends converge on one representation; re-applying the same
// layout is a no-op.
func (g *Grid) SetDateFormat(col, from, to int, layout string) error {
	if col < 1 || from < 1 || to < from {
		return fmt.Errorf("storage: bad date format range col=%d rows=%d..%d", col, from, to)
	}
	for row := from; row <= to && row <= len(g.rows); row++ {
		r := g.rows[row-1]
		if len(r) < col {
			continue
		}
		c := r[col-1]
		switch c.Kind {
		case CellDate:
		case CellString:
			d, ok := parseDate(c.Value, layout)
			if !ok {
				continue
			}
			c = Cell{Kind: CellDate, Value: d.Format(ISODate)}
		default:
			continue
		}
		if c.Format == layout && r[col-1].Kind == CellDate {
			continue
		}
		c.Format = layout
		r[col-1] = c
		g.dirty[row] = struct{}{}
	}
	return nil
}

func parseDate(s, layout string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range []string{layout, ISODate} {
		if l == "" {
			continue
		}
		if d, err := time.Parse(l, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// Rows renders every row up to LastRow. Trailing empty cells are dropped.
func (g *Grid) Rows() [][]string {
	n := g.LastRow()
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		r := g.rows[i]
		end := len(r)
		for end > 0 && r[end-1].Kind == CellEmpty {
			end--
		}
		line := make([]string, end)
		for j := 0; j < end; j++ {
			line[j] = r[j].Render()
		}
		out[i] = line
	}
	return out
}

// Row returns the stored cells of row (1-based); nil when out of range.
func (g *Grid) Row(row int) []Cell {
	if row < 1 || row > len(g.rows) {
		return nil
	}
	return g.rows[row-1]
}

// Dirty returns the rows changed since the last ClearDirty, ascending.
func (g *Grid) Dirty() []int {
	out := make([]int, 0, len(g.dirty))
	for r := range g.dirty {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// ClearDirty forgets pending changes after a successful save.
func (g *Grid) ClearDirty() { g.dirty = map[int]struct{}{} }

// DirtyCells returns the dirty rows and every non-empty cell in them as
// (row, col, kind, value, num_fmt) tuples, the layout of ddl.CellTable.
func (g *Grid) DirtyCells() ([]int, [][]any) {
	rows := g.Dirty()
	var cells [][]any
	for _, r := range rows {
		for j, c := range g.Row(r) {
			if c.Kind == CellEmpty {
				continue
			}
			cells = append(cells, []any{int64(r), int64(j + 1), string(c.Kind), c.Value, c.Format})
		}
	}
	return rows, cells
}
