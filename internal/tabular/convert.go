package tabular

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex matches a plain decimal once currency and separators are gone.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// TwoDigitYearPivot: two-digit years that would land more than this many
// years in the future are placed in the previous century.
var TwoDigitYearPivot = 20

var (
	timestampLayouts = []string{
		time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "02.01.2006",
		"Jan 2, 2006", "2 Jan 2006", "20060102",
	}
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "02.01.06",
	}
)

// ErrEmpty is returned by parsers for blank cells.
var ErrEmpty = errors.New("empty value")

// CleanCell removes spreadsheet artifacts from a cell: surrounding
// whitespace, an Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// MakeHeaderIndex indexes a header row by lowercased, cleaned name.
// The first occurrence of a repeated header wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// ParseAmount parses a money cell. Rupee, dollar, euro and pound signs,
// "Rs"/"INR" prefixes and thousands separators are ignored; "(123)"
// is negative.
func ParseAmount(s string) (float64, error) {
	s = CleanCell(s)
	if s == "" {
		return 0, ErrEmpty
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	upper := strings.ToUpper(s)
	for _, p := range []string{"INR", "RS.", "RS"} {
		if strings.HasPrefix(upper, p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.NewReplacer("₹", "", "$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)

	if !numericRegex.MatchString(s) {
		return 0, errors.New("invalid amount " + strconv.Quote(s))
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if negative {
		v = -v
	}
	return v, nil
}

// FormatAmount renders v without trailing zeros: 4000, 1250.5.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseDate accepts ISO dates and timestamps plus common day-first forms.
// Date-only values are midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, ErrEmpty
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivot := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date " + strconv.Quote(s))
}
