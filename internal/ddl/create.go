// Package ddl is a small, dialect-neutral model of CREATE TABLE statements.
// SQL storage backends describe their cell table with it and render it with
// their own identifier quoting.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect controls rendering.
type Dialect struct {
	// Quote quotes one identifier segment. Nil emits names verbatim.
	Quote func(string) string
	// IfNotExists adds IF NOT EXISTS.
	IfNotExists bool
}

// QuoteDouble is the ANSI quoting shared by SQLite and Postgres.
func QuoteDouble(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes each dotted segment of fqn with q; empty segments are
// dropped.
func QuoteFQN(fqn string, q func(string) string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if q != nil {
			p = q(p)
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders t for dialect d. Primary key columns are
// always NOT NULL and are listed in a trailing PRIMARY KEY clause in
// declaration order.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	q := d.Quote
	if q == nil {
		q = func(s string) string { return s }
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(q(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, q(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	create := "CREATE TABLE "
	if d.IfNotExists {
		create += "IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n);", create, QuoteFQN(fqn, d.Quote), strings.Join(cols, ",\n  ")), nil
}
