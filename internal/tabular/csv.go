package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrMissingColumns is wrapped by DecodeCSV when required headers are absent.
var ErrMissingColumns = errors.New("missing required columns")

// EncodeCSV writes the sheet's header and rows to w.
func EncodeCSV(w io.Writer, s *Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(s.Records()); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	return nil
}

// DecodeCSV parses data as a CSV for table t with header-driven binding:
// columns may appear in any order, unknown columns are kept under their
// cleaned header text, and blank lines are skipped. A UTF-8 BOM is dropped
// and invalid UTF-8 is replaced rather than rejected.
func DecodeCSV(data []byte, t Table, loc Location, name string) (*Sheet, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.ToValidUTF8(data, []byte("�"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &Sheet{Table: t, Path: name, Location: loc}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	names := make([]string, len(header))
	for i, h := range header {
		if c, ok := t.Canonical(h); ok {
			names[i] = c
		} else {
			names[i] = CleanCell(h)
		}
	}

	idx := MakeHeaderIndex(names)
	var missing []string
	for _, req := range t.Required() {
		if _, ok := idx[strings.ToLower(req)]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w: %s", name, ErrMissingColumns, strings.Join(missing, ", "))
	}

	sheet := &Sheet{Table: t, Path: name, Location: loc}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if blank(rec) {
			continue
		}
		row := make(Row, len(names))
		for i, v := range rec {
			if i < len(names) && names[i] != "" {
				if _, set := row[names[i]]; !set {
					row[names[i]] = v
				}
			}
		}
		sheet.Add(row)
	}
	return sheet, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
