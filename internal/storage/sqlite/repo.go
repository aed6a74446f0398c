package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kontrol/internal/ddl"
	"kontrol/internal/storage"
)

// Repository is a SQLite-backed storage.Repository. A sheet is stored one
// row per non-empty cell; see ddl.CellTable.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite connection and returns a Repository plus a
// close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

func (r *Repository) quoted() string { return ddl.QuoteFQN(r.cfg.table(), ddl.QuoteDouble) }

// exists checks sqlite_master for the cell table.
func (r *Repository) exists(ctx context.Context) (bool, error) {
	name := r.cfg.table()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: lookup %s: %w", name, err)
	}
	return n > 0, nil
}

// Open loads every cell of the table into memory. A missing table wraps
// storage.ErrNotExist.
func (r *Repository) Open(ctx context.Context) (storage.Table, error) {
	ok, err := r.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("sqlite: %s: %w", r.cfg.table(), storage.ErrNotExist)
	}

	q := fmt.Sprintf(`SELECT %s, %s, %s, %s, %s FROM %s`,
		ddl.ColRow, ddl.ColCol, ddl.ColKind, ddl.ColValue, ddl.ColNumFmt, r.quoted())
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load: %w", err)
	}
	defer rows.Close()

	g := storage.NewGrid()
	for rows.Next() {
		var (
			row, col          int
			kind, val, numFmt string
		)
		if err := rows.Scan(&row, &col, &kind, &val, &numFmt); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		g.Load(row, col, storage.Cell{Kind: storage.CellKind(kind), Value: val, Format: numFmt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: load: %w", err)
	}
	return &Table{Grid: g, repo: r}, nil
}

// Create returns an empty table; the cell table is created on Save.
func (r *Repository) Create(ctx context.Context) (storage.Table, error) {
	return &Table{Grid: storage.NewGrid(), repo: r}, nil
}

// Table buffers changes in a storage.Grid.
type Table struct {
	*storage.Grid
	repo *Repository
}

// Rows returns the rendered rows.
func (t *Table) Rows() ([][]string, error) { return t.Grid.Rows(), nil }

// LastRow returns the last occupied row.
func (t *Table) LastRow() (int, error) { return t.Grid.LastRow(), nil }

// Save replaces every dirty row inside a single transaction.
func (t *Table) Save(ctx context.Context) error {
	dirty, cells := t.Grid.DirtyCells()
	if len(dirty) == 0 {
		return nil
	}
	r := t.repo

	create, err := ddl.BuildCreateTableSQL(ddl.CellTable(r.cfg.table(), "INTEGER", "TEXT"),
		ddl.Dialect{Quote: ddl.QuoteDouble, IfNotExists: true})
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: create table: %w", err)
	}

	del, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, r.quoted(), ddl.ColRow))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare delete: %w", err)
	}
	defer del.Close()
	for _, row := range dirty {
		if _, err := del.ExecContext(ctx, row); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: delete row %d: %w", row, err)
		}
	}

	ins, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?)`,
		r.quoted(), strings.Join(ddl.CellColumns(), ", ")))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer ins.Close()
	for _, c := range cells {
		if _, err := ins.ExecContext(ctx, c...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	t.Grid.ClearDirty()
	return nil
}

// Close drops buffered state; the connection belongs to the Repository.
func (t *Table) Close() error {
	t.Grid = storage.NewGrid()
	return nil
}

var _ storage.Table = (*Table)(nil)
