// Package postgres stores tables in a Postgres cell table using pgx v5.
// Dirty rows are deleted and re-inserted with COPY inside one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kontrol/internal/ddl"
	"kontrol/internal/storage"
)

// DefaultTable names the cell table when Config.Table is empty.
const DefaultTable = "public.kontrol_cells"

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // fully qualified cell table, e.g. "public.kontrol_cells"
}

func (c Config) table() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// Open loads the cell table into memory. A missing table wraps
// storage.ErrNotExist.
func (r *Repository) Open(ctx context.Context) (storage.Table, error) {
	fqn := ddl.QuoteFQN(r.cfg.table(), ddl.QuoteDouble)

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, fqn).Scan(&exists); err != nil {
		return nil, fmt.Errorf("postgres: lookup %s: %w", r.cfg.table(), err)
	}
	if !exists {
		return nil, fmt.Errorf("postgres: %s: %w", r.cfg.table(), storage.ErrNotExist)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s`,
		strings.Join(mapIdent(ddl.CellColumns()), ", "), fqn))
	if err != nil {
		return nil, fmt.Errorf("postgres: load: %w", err)
	}
	defer rows.Close()

	g := storage.NewGrid()
	for rows.Next() {
		var (
			row, col          int64
			kind, val, numFmt string
		)
		if err := rows.Scan(&row, &col, &kind, &val, &numFmt); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		g.Load(int(row), int(col), storage.Cell{Kind: storage.CellKind(kind), Value: val, Format: numFmt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load: %w", err)
	}
	return &Table{Grid: g, repo: r}, nil
}

// Create returns an empty table; DDL runs on Save.
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

// Save creates the table if needed, deletes the dirty rows and copies their
// cells back in, all in one transaction.
func (t *Table) Save(ctx context.Context) error {
	dirty, cells := t.Grid.DirtyCells()
	if len(dirty) == 0 {
		return nil
	}
	r := t.repo
	create, err := ddl.BuildCreateTableSQL(ddl.CellTable(r.cfg.table(), "BIGINT", "TEXT"),
		ddl.Dialect{Quote: ddl.QuoteDouble, IfNotExists: true})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}

	rowNos := make([]int64, len(dirty))
	for i, n := range dirty {
		rowNos[i] = int64(n)
	}
	del := fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`,
		ddl.QuoteFQN(r.cfg.table(), ddl.QuoteDouble), ddl.QuoteDouble(ddl.ColRow))
	if _, err := tx.Exec(ctx, del, rowNos); err != nil {
		return fmt.Errorf("postgres: delete rows: %w", err)
	}

	if len(cells) > 0 {
		if _, err := tx.CopyFrom(ctx, splitFQN(r.cfg.table()), ddl.CellColumns(), pgx.CopyFromRows(cells)); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Detail != "" {
				return fmt.Errorf("postgres: copy cells: %s (%s)", pgErr.Detail, pgErr.SQLState())
			}
			return fmt.Errorf("postgres: copy cells: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	t.Grid.ClearDirty()
	return nil
}

// Close drops buffered state; the pool belongs to the Repository.
func (t *Table) Close() error {
	t.Grid = storage.NewGrid()
	return nil
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = ddl.QuoteDouble(c)
	}
	return out
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

var _ storage.Table = (*Table)(nil)
