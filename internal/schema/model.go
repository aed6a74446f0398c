// Package schema declares the fixed, ordered column catalogue of the
// inspection log. The same order is used to write the header row of a new
// store and to serialize every record, so it must never change between
// releases: existing log files depend on it.
package schema

import (
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/unicode/norm"
)

// Layout is the display layout of the acceptance date column (DD.MM.YYYY).
const Layout = "02.01.2006"

// Category groups columns by their role in a record.
type Category int

const (
	// Meta columns describe the batch and the inspection itself.
	Meta Category = iota
	// SecondGrade counts parts with minor, non-reworkable defects.
	SecondGrade
	// Rework counts parts with defects correctable before acceptance.
	Rework
	// FinalScrap counts parts with unrecoverable defects.
	FinalScrap
)

func (c Category) String() string {
	switch c {
	case Meta:
		return "meta"
	case SecondGrade:
		return "second_grade"
	case Rework:
		return "rework"
	case FinalScrap:
		return "final_scrap"
	default:
		return "unknown"
	}
}

// IsDefect reports whether columns of this category are deducted from the
// cast quantity.
func (c Category) IsDefect() bool { return c != Meta }

// Kind is the value type stored in a column.
type Kind string

const (
	KindText Kind = "text"
	KindInt  Kind = "int"
	KindDate Kind = "date"
)

// Column describes one column of the inspection log.
type Column struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Kind     Kind     `json:"kind"`
	// Visible is false for legacy fields that are persisted and counted in
	// the accepted total but never offered to the operator.
	Visible bool `json:"visible"`
}

// Well-known metadata column names.
const (
	BatchColumn       = "Номер_плавки"
	CastColumn        = "Контроль_отлито"
	AcceptedColumn    = "Контроль_принято"
	DateColumn        = "Контроль_дата_приемки"
	Controller1Column = "Контролер1"
	Controller2Column = "Контролер2"
	Controller3Column = "Контролер3"
)

// MaxControllers is the number of controller slots on a record.
const MaxControllers = 3

func meta(name, label string, kind Kind) Column {
	return Column{Name: name, Label: label, Category: Meta, Kind: kind, Visible: true}
}

func defect(cat Category, name, label string) Column {
	return Column{Name: name, Label: label, Category: cat, Kind: KindInt, Visible: true}
}

func hidden(c Column) Column {
	c.Visible = false
	return c
}

var columns = []Column{
	meta(BatchColumn, "Номер плавки", KindText),
	meta(CastColumn, "Отлито, шт.", KindInt),
	meta(AcceptedColumn, "Принято, шт.", KindInt),
	meta(DateColumn, "Дата приемки", KindDate),
	meta(Controller1Column, "Контролер 1", KindText),
	meta(Controller2Column, "Контролер 2", KindText),
	meta(Controller3Column, "Контролер 3", KindText),

	defect(SecondGrade, "Второй_сорт_раковины", "Раковины"),
	defect(SecondGrade, "Второй_сорт_зарез", "Зарез"),

	hidden(defect(Rework, "Доработка_раковины", "Раковины")),
	hidden(defect(Rework, "Доработка_зарез", "Зарез")),
	defect(Rework, "Доработка_несоответствие_размеров", "Несоответствие размеров"),
	defect(Rework, "Доработка_несоответствие_внешнего_вида", "Несоответствие внешнего вида"),
	defect(Rework, "Доработка_наплыв_металла", "Наплыв металла"),
	defect(Rework, "Доработка_прорыв_металла", "Прорыв металла"),
	defect(Rework, "Доработка_вырыв", "Вырыв"),
	defect(Rework, "Доработка_облой", "Облой"),
	defect(Rework, "Доработка_песок_на_поверхности", "Песок на поверхности"),
	defect(Rework, "Доработка_песок_в_резьбе", "Песок в резьбе"),
	defect(Rework, "Доработка_клей", "Клей"),
	defect(Rework, "Доработка_коробление", "Коробление"),
	defect(Rework, "Доработка_дефект_пеномодели", "Дефект пеномодели"),
	defect(Rework, "Доработка_лапы", "Лапы"),
	defect(Rework, "Доработка_питатель", "Питатель"),
	defect(Rework, "Доработка_корона", "Корона"),
	defect(Rework, "Доработка_смещение", "Смещение"),

	defect(FinalScrap, "Окончательный_брак_недолив", "Недолив"),
	defect(FinalScrap, "Окончательный_брак_вырыв", "Вырыв"),
	defect(FinalScrap, "Окончательный_брак_зарез", "Зарез"),
	defect(FinalScrap, "Окончательный_брак_коробление", "Коробление"),
	defect(FinalScrap, "Окончательный_брак_наплыв_металла", "Наплыв металла"),
	defect(FinalScrap, "Окончательный_брак_нарушение_геометрии", "Нарушение геометрии"),
	defect(FinalScrap, "Окончательный_брак_нарушение_маркировки", "Нарушение маркировки"),
	defect(FinalScrap, "Окончательный_брак_непроклей", "Непроклей"),
	defect(FinalScrap, "Окончательный_брак_неслитина", "Неслитина"),
	defect(FinalScrap, "Окончательный_брак_несоответствие_внешнего_вида", "Несоответствие внешнего вида"),
	defect(FinalScrap, "Окончательный_брак_несоответствие_размеров", "Несоответствие размеров"),
	defect(FinalScrap, "Окончательный_брак_пеномодель", "Пеномодель"),
	defect(FinalScrap, "Окончательный_брак_пористость", "Пористость"),
	defect(FinalScrap, "Окончательный_брак_пригар_песка", "Пригар песка"),
	defect(FinalScrap, "Окончательный_брак_прочее", "Прочее"),
	defect(FinalScrap, "Окончательный_брак_рыхлота", "Рыхлота"),
	defect(FinalScrap, "Окончательный_брак_раковины", "Раковины"),
	defect(FinalScrap, "Окончательный_брак_скол", "Скол"),
	defect(FinalScrap, "Окончательный_брак_слом", "Слом"),
	defect(FinalScrap, "Окончательный_брак_спай", "Спай"),
	defect(FinalScrap, "Окончательный_брак_трещины", "Трещины"),
}

// Precomputed lookups; columns is never mutated after init.
var (
	position    = make(map[string]int, len(columns))
	defects     []Column
	defectIndex = make(map[string]DefectID)
	fingerprint uint64
)

func init() {
	for i, c := range columns {
		position[c.Name] = i
		if c.Category.IsDefect() {
			defectIndex[c.Name] = DefectID(len(defects))
			defects = append(defects, c)
		}
	}
	fingerprint = HeaderFingerprint(Header())
}

// Columns returns a copy of the full, ordered column list.
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

// Header returns the column names in persisted order.
func Header() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Name
	}
	return out
}

// Position returns the 0-based position of the named column.
func Position(name string) (int, bool) {
	i, ok := position[Canonical(name)]
	return i, ok
}

// Lookup returns the column with the given name.
func Lookup(name string) (Column, bool) {
	i, ok := Position(name)
	if !ok {
		return Column{}, false
	}
	return columns[i], true
}

// VisibleColumns returns the columns a presentation layer may offer for
// editing, in persisted order. Hidden legacy fields are omitted.
func VisibleColumns() []Column {
	out := make([]Column, 0, len(columns))
	for _, c := range columns {
		if c.Visible {
			out = append(out, c)
		}
	}
	return out
}

// ByCategory returns the columns of one category in persisted order.
func ByCategory(cat Category) []Column {
	var out []Column
	for _, c := range columns {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}

// RequiredFields lists the columns that must be filled before a record can
// be saved. Controllers are required as a group (at least one of
// ControllerColumns) and are not part of this list.
func RequiredFields() []string {
	return []string{BatchColumn, CastColumn}
}

// ControllerColumns returns the controller slot columns in order.
func ControllerColumns() []string {
	return []string{Controller1Column, Controller2Column, Controller3Column}
}

// Canonical normalizes a header or identifier to NFC and trims surrounding
// whitespace. Spreadsheets written on other systems sometimes carry
// decomposed Cyrillic letters (й, ё), which would otherwise not match.
func Canonical(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// HeaderFingerprint hashes a header row after canonicalization.
func HeaderFingerprint(header []string) uint64 {
	h := xxh3.New()
	for i, name := range header {
		if i > 0 {
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.WriteString(Canonical(name))
	}
	return h.Sum64()
}

// Fingerprint is the HeaderFingerprint of this schema's Header.
func Fingerprint() uint64 { return fingerprint }
