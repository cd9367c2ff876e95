package tabular

import (
	"path"
	"strings"
	"time"
)

// Placeholder path segments for missing grouping keys.
const (
	UnassignedBatch     = "unassigned"
	UnspecifiedStandard = "unspecified"
)

// Location is the grouping key encoded in an archive path.
type Location struct {
	Standard string
	Batch    string
	Date     string // YYYY-MM-DD, LayoutByDay only
}

// Segment makes s safe as one path component: separators become "-",
// surrounding whitespace and dots are trimmed, and an empty result falls
// back to placeholder.
func Segment(s, placeholder string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return placeholder
	}
	return s
}

// Path returns the archive entry name for loc. Grouping keys are sanitized
// so the result is always a valid, relative, forward-slash path.
func (t Table) Path(loc Location) string {
	std := Segment(loc.Standard, UnspecifiedStandard)
	batch := Segment(loc.Batch, UnassignedBatch)
	switch t.Layout {
	case LayoutSingleton:
		return t.Name
	case LayoutByBatch:
		return path.Join(t.Name, std, batch+".csv")
	case LayoutByDay:
		return path.Join(t.Name, std, batch, Segment(loc.Date, "undated")+".csv")
	}
	return t.Key + ".csv"
}

// Classify maps an archive entry name back to its table and location.
// Archives re-zipped with an enclosing folder are accepted by retrying
// without the first path component.
func Classify(name string, tables []Table) (Table, Location, bool) {
	name = strings.TrimPrefix(path.Clean(strings.ReplaceAll(name, "\\", "/")), "./")
	if t, loc, ok := classify(name, tables); ok {
		return t, loc, true
	}
	if i := strings.IndexByte(name, '/'); i > 0 {
		return classify(name[i+1:], tables)
	}
	return Table{}, Location{}, false
}

func classify(name string, tables []Table) (Table, Location, bool) {
	if !strings.EqualFold(path.Ext(name), ".csv") {
		return Table{}, Location{}, false
	}
	parts := strings.Split(name, "/")
	base := strings.TrimSuffix(parts[len(parts)-1], path.Ext(name))

	for _, t := range tables {
		switch {
		case t.Layout == LayoutSingleton && len(parts) == 1 && strings.EqualFold(parts[0], t.Name):
			return t, Location{}, true
		case t.Layout == LayoutByBatch && len(parts) == 3 && parts[0] == t.Name:
			return t, Location{Standard: parts[1], Batch: base}, true
		case t.Layout == LayoutByDay && len(parts) == 4 && parts[0] == t.Name:
			loc := Location{Standard: parts[1], Batch: parts[2], Date: base}
			if _, err := time.Parse(time.DateOnly, base); err != nil {
				loc.Date = ""
			}
			return t, loc, true
		}
	}
	return Table{}, Location{}, false
}
