package csv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kontrol/internal/storage"
)

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	r, err := NewRepository(storage.Config{DSN: filepath.Join(t.TempDir(), "control.csv")})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	if _, err := r.Open(context.Background()); !errors.Is(err, storage.ErrNotExist) {
		t.Fatalf("Open(missing) err = %v, want ErrNotExist", err)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "control.csv")
	r, err := NewRepository(storage.Config{DSN: path})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}

	tbl, err := r.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	d := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	mustWrite(t, tbl, 1, []any{"Номер_плавки", "Наименование_отливки", "Количество_отлитых", "Дата_приемки"})
	mustWrite(t, tbl, 2, []any{"1/25", "Корпус, литой", 100, d})
	if err := tbl.SetDateFormat(4, 2, 2, "02.01.2006"); err != nil {
		t.Fatalf("SetDateFormat: %v", err)
	}
	if err := tbl.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(raw), utf8BOM) {
		t.Fatalf("file does not start with a BOM: %q", raw[:8])
	}
	if !strings.Contains(string(raw), `1/25,"Корпус, литой",100,14.03.2025`) {
		t.Fatalf("unexpected body: %q", raw)
	}

	// Reopen: dates come back as text and are re-formatted idempotently.
	tbl, err = r.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rows, err := tbl.Rows()
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if rows[0][0] != "Номер_плавки" {
		t.Fatalf("BOM not stripped from header: %q", rows[0][0])
	}
	mustWrite(t, tbl, 3, []any{"2/25", "", 5, d.AddDate(0, 0, 1)})
	if err := tbl.SetDateFormat(4, 2, 3, "02.01.2006"); err != nil {
		t.Fatalf("SetDateFormat: %v", err)
	}
	rows, _ = tbl.Rows()
	if got := []string{rows[1][3], rows[2][3]}; got[0] != "14.03.2025" || got[1] != "15.03.2025" {
		t.Fatalf("dates = %q", got)
	}
	last, _ := tbl.LastRow()
	if last != 3 {
		t.Fatalf("LastRow = %d, want 3", last)
	}
}

func TestTSVDelimiter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plavka.tsv")
	if err := os.WriteFile(path, []byte("Учетный_номер\tНаименование_отливки\n3/25\tКрышка\n\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, _ := NewRepository(storage.Config{DSN: path})
	tbl, err := r.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rows, _ := tbl.Rows()
	if len(rows) != 2 || rows[1][0] != "3/25" || rows[1][1] != "Крышка" {
		t.Fatalf("rows = %q", rows)
	}
}

func mustWrite(t *testing.T, tbl storage.Table, row int, values []any) {
	t.Helper()
	if err := tbl.WriteRow(row, values); err != nil {
		t.Fatalf("WriteRow(%d): %v", row, err)
	}
}
