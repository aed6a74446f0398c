package catalogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"kontrol/internal/schema"
	"kontrol/internal/storage"
)

// Registry column names used by the production department's file.
const (
	DefaultIDColumn   = "Учетный_номер"
	DefaultNameColumn = "Наименование_отливки"
)

// ErrSourceUnavailable means the registry could not be read at all. The
// caller degrades to an empty catalogue.
var ErrSourceUnavailable = errors.New("catalogue: batch registry unavailable")

// MalformedSourceRow describes a registry row that was skipped.
type MalformedSourceRow struct {
	Row    int // 1-based row in the registry, header is row 1
	Reason string
}

func (m MalformedSourceRow) Error() string {
	return fmt.Sprintf("registry row %d: %s", m.Row, m.Reason)
}

// Columns names the registry columns to read.
type Columns struct {
	ID   string
	Name string
}

func (c Columns) withDefaults() Columns {
	if strings.TrimSpace(c.ID) == "" {
		c.ID = DefaultIDColumn
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = DefaultNameColumn
	}
	return c
}

// ReadSource reads every batch from the registry behind repo. Columns are
// located by header name. Rows that cannot be used are returned as
// MalformedSourceRow, logged at warn level and skipped; the rest still load.
// Any failure to open or interpret the registry wraps ErrSourceUnavailable.
func ReadSource(ctx context.Context, repo storage.Repository, cols Columns, log *zap.Logger) ([]Batch, []MalformedSourceRow, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cols = cols.withDefaults()

	tbl, err := repo.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer tbl.Close()

	rows, err := tbl.Rows()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: registry is empty", ErrSourceUnavailable)
	}

	idCol, nameCol := -1, -1
	for i, h := range rows[0] {
		switch schema.Canonical(h) {
		case schema.Canonical(cols.ID):
			if idCol < 0 {
				idCol = i
			}
		case schema.Canonical(cols.Name):
			if nameCol < 0 {
				nameCol = i
			}
		}
	}
	if idCol < 0 {
		return nil, nil, fmt.Errorf("%w: column %q not found", ErrSourceUnavailable, cols.ID)
	}
	if nameCol < 0 {
		return nil, nil, fmt.Errorf("%w: column %q not found", ErrSourceUnavailable, cols.Name)
	}

	var (
		out       []Batch
		malformed []MalformedSourceRow
	)
	for i, row := range rows[1:] {
		rowNo := i + 2
		if blank(row) {
			continue
		}
		id := cell(row, idCol)
		if reason := checkID(id); reason != "" {
			m := MalformedSourceRow{Row: rowNo, Reason: reason}
			malformed = append(malformed, m)
			log.Warn("skipping malformed registry row", zap.Int("row", rowNo), zap.String("reason", reason))
			continue
		}
		out = append(out, Batch{ID: id, Name: cell(row, nameCol)})
	}
	return out, malformed, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func checkID(id string) string {
	switch {
	case id == "":
		return "empty batch identifier"
	case !utf8.ValidString(id):
		return "batch identifier is not valid UTF-8"
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return "batch identifier contains control characters"
	}
	return ""
}
