package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// fakeRepo is a minimal Repository implementation for tests.
type fakeRepo struct {
	closed bool
	cfg    Config
}

func (f *fakeRepo) Open(ctx context.Context) (Table, error)   { return nil, ErrNotExist }
func (f *fakeRepo) Create(ctx context.Context) (Table, error) { return nil, errors.New("not implemented") }
func (f *fakeRepo) Close()                                    { f.closed = true }

// TestRegisterAndNew_Success verifies that registering a backend enables New()
// to return the corresponding repository.
func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{cfg: cfg}, nil
	})

	repo, err := New(context.Background(), Config{Kind: kind, DSN: "x"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo == nil {
		t.Fatalf("New returned nil repo")
	}
	if got := repo.(*fakeRepo).cfg.DSN; got != "x" {
		t.Fatalf("factory cfg.DSN = %q, want x", got)
	}

	kinds := ListKinds()
	found := false
	for _, k := range kinds {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in ListKinds: %v", kind, kinds)
	}
}

// TestNew_Unsupported verifies that unsupported kinds return a helpful error.
func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("error %v does not wrap ErrUnsupportedKind", err)
	}
	if got, want := err.Error(), "storage: unsupported kind: storage.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestNew_InfersKindFromDSN verifies that an empty Kind falls back to the DSN.
func TestNew_InfersKindFromDSN(t *testing.T) {
	t.Parallel()

	var got string
	Register("infer-probe", func(ctx context.Context, cfg Config) (Repository, error) {
		got = cfg.Kind
		return &fakeRepo{}, nil
	})

	_, err := New(context.Background(), Config{DSN: "/tmp/missing-kind.unknown"})
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("want ErrUnsupportedKind for unknown extension, got %v", err)
	}

	_, err = New(context.Background(), Config{Kind: "infer-probe"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if got != "infer-probe" {
		t.Fatalf("factory saw kind %q", got)
	}
}

// TestRegister_Override verifies that re-registering a kind overrides the
// previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0

	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		return &fakeRepo{}, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls += 10
		return &fakeRepo{}, nil
	})

	_, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if calls != 10 {
		t.Fatalf("factory call count = %d, want 10", calls)
	}
}

// TestListKinds_Snapshot checks that ListKinds returns a copy.
func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	k := "snap"
	Register(k, func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })

	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	a[0] = "mutated"

	b := ListKinds()
	if reflect.DeepEqual(a, b) {
		t.Fatalf("ListKinds returned same slice; want snapshot copy")
	}
}

// TestRegister_AllowsErrors shows factories can return errors that bubble up.
func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	kind := "errkind"
	want := errors.New("boom")

	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, want
	})

	_, err := New(context.Background(), Config{Kind: kind})
	if !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

func TestKindFromDSN(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"control.xlsx":                       "xlsx",
		"/srv/Plavka.XLSX":                   "xlsx",
		"control.csv":                        "csv",
		"control.db":                         "sqlite",
		"file:control.db?cache=shared":       "sqlite",
		"postgres://u:p@localhost/kontrol":   "postgres",
		"postgresql://u:p@localhost/kontrol": "postgres",
		"https://intranet/plavka.xlsx?v=2":   "xlsx",
		"control":                            "",
		"":                                   "",
	}
	for dsn, want := range cases {
		if got := KindFromDSN(dsn); got != want {
			t.Errorf("KindFromDSN(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestGrid_WriteAndRender(t *testing.T) {
	t.Parallel()

	g := NewGrid()
	if g.LastRow() != 0 {
		t.Fatalf("empty grid LastRow = %d", g.LastRow())
	}
	d := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	if err := g.WriteRow(1, []any{"a", "b", "c"}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := g.WriteRow(2, []any{"1/25", 10, d, nil, ""}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := g.WriteRow(3, []any{struct{}{}}); err == nil {
		t.Fatalf("WriteRow accepted unsupported value")
	}

	if g.LastRow() != 2 {
		t.Fatalf("LastRow = %d, want 2", g.LastRow())
	}
	rows := g.Rows()
	want := [][]string{{"a", "b", "c"}, {"1/25", "10", "2025-03-14"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("Rows = %q, want %q", rows, want)
	}

	g.ClearDirty()
	if err := g.SetDateFormat(3, 2, 2, "02.01.2006"); err != nil {
		t.Fatalf("SetDateFormat: %v", err)
	}
	if got := g.Rows()[1][2]; got != "14.03.2025" {
		t.Fatalf("formatted date = %q", got)
	}
	if !reflect.DeepEqual(g.Dirty(), []int{2}) {
		t.Fatalf("Dirty = %v, want [2]", g.Dirty())
	}

	// Re-applying the same layout changes nothing.
	g.ClearDirty()
	if err := g.SetDateFormat(3, 1, 2, "02.01.2006"); err != nil {
		t.Fatalf("SetDateFormat: %v", err)
	}
	if len(g.Dirty()) != 0 {
		t.Fatalf("Dirty after idempotent format = %v", g.Dirty())
	}
}

func TestGrid_SetDateFormatConvertsText(t *testing.T) {
	t.Parallel()

	g := NewGrid()
	g.Load(1, 1, Cell{Kind: CellString, Value: "14.03.2025"})
	g.Load(2, 1, Cell{Kind: CellString, Value: "2025-03-15"})
	g.Load(3, 1, Cell{Kind: CellString, Value: "не дата"})

	if err := g.SetDateFormat(1, 1, 3, "02.01.2006"); err != nil {
		t.Fatalf("SetDateFormat: %v", err)
	}
	got := g.Rows()
	want := [][]string{{"14.03.2025"}, {"15.03.2025"}, {"не дата"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rows = %q, want %q", got, want)
	}
	if c := g.Row(2)[0]; c.Kind != CellDate || c.Value != "2025-03-15" {
		t.Fatalf("row 2 cell = %+v", c)
	}
	if err := g.SetDateFormat(0, 1, 1, "x"); err == nil {
		t.Fatalf("SetDateFormat accepted column 0")
	}
}
