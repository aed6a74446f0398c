package ddl

// ColumnDef describes one column of a table definition.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string // raw SQL expression
}

// TableDef holds a dotted table name ("schema.table") and ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Cell table column names. SQL backends store a sheet as one row per
// non-empty cell.
const (
	ColRow    = "row_no"
	ColCol    = "col_no"
	ColKind   = "kind"
	ColValue  = "value"
	ColNumFmt = "num_fmt"
)

// CellColumns lists the cell table columns in insert order.
func CellColumns() []string {
	return []string{ColRow, ColCol, ColKind, ColValue, ColNumFmt}
}

// CellTable describes the cell table named fqn using the dialect's integer
// and text types.
func CellTable(fqn, intType, textType string) TableDef {
	return TableDef{
		FQN: fqn,
		Columns: []ColumnDef{
			{Name: ColRow, SQLType: intType, PrimaryKey: true},
			{Name: ColCol, SQLType: intType, PrimaryKey: true},
			{Name: ColKind, SQLType: textType},
			{Name: ColValue, SQLType: textType},
			{Name: ColNumFmt, SQLType: textType, Default: "''"},
		},
	}
}
