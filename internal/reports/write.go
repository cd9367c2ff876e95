package reports

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tuitiondesk/internal/tabular"
)

// Format is a report download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat defaults to CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// FileName is the report's download name for f.
func (r *Report) FileName(f Format) string {
	return r.Name + "." + string(f)
}

// Write renders the report in format f.
func (r *Report) Write(w io.Writer, f Format) error {
	if f == FormatXLSX {
		return WriteXLSX(w, r.Sheet, sheetTitle(r.Kind))
	}
	return tabular.EncodeCSV(w, r.Sheet)
}

func sheetTitle(k Kind) string {
	title := strings.ReplaceAll(string(k), "-", " ")
	if len(title) > 31 {
		title = title[:31]
	}
	return title
}

// WriteXLSX writes s as a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, s *tabular.Sheet, title string) error {
	f := excelize.NewFile()
	defer f.Close()

	if title == "" {
		title = "Report"
	}
	if err := f.SetSheetName("Sheet1", title); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E0E0E0"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, rec := range s.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		if err := f.SetSheetRow(title, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if n := len(s.Table.Columns); n > 0 {
		last, err := excelize.ColumnNumberToName(n)
		if err != nil {
			return err
		}
		if err := f.SetRowStyle(title, 1, 1, header); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
		if err := f.SetColWidth(title, "A", last, 18); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	_, err = f.WriteTo(w)
	return err
}
