package schema

// DefectID indexes the defect columns (second-grade, rework, final-scrap) in
// persisted order. It is the key of a record's defect counts.
type DefectID int

// DefectCount is the number of defect columns.
func DefectCount() int { return len(defects) }

// DefectColumns returns the columns that are deducted from the cast
// quantity, in persisted order, hidden ones included.
func DefectColumns() []Column {
	out := make([]Column, len(defects))
	copy(out, defects)
	return out
}

// Defect returns the column for id. It panics if id is out of range, like
// an index expression would.
func Defect(id DefectID) Column { return defects[id] }

// DefectByName resolves a defect column name to its id.
func DefectByName(name string) (DefectID, bool) {
	id, ok := defectIndex[Canonical(name)]
	return id, ok
}

// Valid reports whether id addresses a defect column.
func (id DefectID) Valid() bool { return id >= 0 && int(id) < len(defects) }

// Name returns the column name of the defect.
func (id DefectID) Name() string { return defects[id].Name }
