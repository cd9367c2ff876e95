// Package tabular holds the column contracts for every CSV this system reads
// or writes, plus the cell-level conversions and CSV encoding shared by the
// backup archive and the reports.
//
// A Table is registered once (see Register) and then consumed by both the
// writer and the reader, so a column rename shows up as a compile-time
// constant change rather than silent drift between export and import.
package tabular

import "strings"

// Layout describes where a table's files live inside an archive.
type Layout int

const (
	// LayoutSingleton is one fixed-name file at the archive root.
	LayoutSingleton Layout = iota
	// LayoutByBatch is <dir>/<standard>/<batch>.csv.
	LayoutByBatch
	// LayoutByDay is <dir>/<standard>/<batch>/<YYYY-MM-DD>.csv.
	LayoutByDay
	// LayoutNone is for tables that are never part of an archive.
	LayoutNone
)

// FieldSpec describes one column.
type FieldSpec struct {
	Name     string
	Required bool // the header must contain this column
}

// Table is a registered column contract.
type Table struct {
	Key        string
	Group      string // "archive" or "report"
	Layout     Layout
	Name       string // file name for singletons, directory otherwise
	FieldSpecs []FieldSpec
	Columns    []string // derived from FieldSpecs on Register
}

// Required returns the names of required columns.
func (t Table) Required() []string {
	var out []string
	for _, f := range t.FieldSpecs {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Canonical maps a header cell to the table's column name, ignoring case
// and surrounding whitespace. ok is false for unknown columns.
func (t Table) Canonical(header string) (string, bool) {
	h := strings.ToLower(CleanCell(header))
	for _, c := range t.Columns {
		if strings.ToLower(c) == h {
			return c, true
		}
	}
	return "", false
}

// HeaderIndex maps lowercased header names to column positions.
type HeaderIndex map[string]int

// Row is one record keyed by canonical column name.
type Row map[string]string

// Get returns the value for col with surrounding whitespace removed, or ""
// when absent. Quotes are kept, so free text reads back as written.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Clean returns CleanCell of col. Use it for identifiers, phone numbers and
// enum cells that spreadsheets wrap in ="..." or quotes.
func (r Row) Clean(col string) string {
	return CleanCell(r[col])
}

// Sheet is a table instance: the rows of one CSV file.
type Sheet struct {
	Table    Table
	Path     string
	Location Location
	Rows     []Row
}

// NewSheet returns an empty sheet for t at loc.
func NewSheet(t Table, loc Location) *Sheet {
	return &Sheet{Table: t, Path: t.Path(loc), Location: loc}
}

// Add appends a row.
func (s *Sheet) Add(r Row) { s.Rows = append(s.Rows, r) }

// Len is the number of data rows.
func (s *Sheet) Len() int { return len(s.Rows) }

// Records renders the header followed by every row in column order.
func (s *Sheet) Records() [][]string {
	out := make([][]string, 0, len(s.Rows)+1)
	out = append(out, append([]string(nil), s.Table.Columns...))
	for _, r := range s.Rows {
		rec := make([]string, len(s.Table.Columns))
		for i, c := range s.Table.Columns {
			rec[i] = r[c]
		}
		out = append(out, rec)
	}
	return out
}
