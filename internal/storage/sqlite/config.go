// Package sqlite stores tables in a SQLite cell table.
package sqlite

// DefaultTable names the cell table when storage.Config.Table is empty.
const DefaultTable = "kontrol_cells"

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:control.db?cache=shared"
	//   "control.db"
	DSN string

	// Table is the cell table. Each logical sheet lives in its own table,
	// so the registry and the inspection log can share one database file.
	Table string
}

func (c Config) table() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}
