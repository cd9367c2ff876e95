package backup

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/JonMunkholm/tuitiondesk/internal/tabular"
)

var (
	// ErrInvalidArchive is returned for uploads that are not a readable
	// backup archive.
	ErrInvalidArchive = errors.New("invalid backup archive")

	// ErrMissingTenantTable is returned when an archive has no tuition.csv
	// or it has no rows.
	ErrMissingTenantTable = errors.New("archive has no tuition.csv")
)

// DefaultMaxUncompressed bounds the decompressed size of an archive.
const DefaultMaxUncompressed int64 = 512 << 20

// Archive is a decoded backup: every recognized CSV entry keyed by its
// path, plus the manifest when one was present.
type Archive struct {
	Manifest *Manifest
	Entries  map[string]*tabular.Sheet
	// Ignored lists entries that were not recognized as archive tables.
	Ignored []string
}

// Sheets returns the entries of table t ordered by path.
func (a *Archive) Sheets(t tabular.Table) []*tabular.Sheet {
	var out []*tabular.Sheet
	for _, s := range a.Entries {
		if s.Table.Key == t.Key {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Rows counts the rows of table t across all its entries.
func (a *Archive) Rows(t tabular.Table) int {
	n := 0
	for _, s := range a.Sheets(t) {
		n += s.Len()
	}
	return n
}

// Paths returns every recognized entry path, sorted.
func (a *Archive) Paths() []string {
	out := make([]string, 0, len(a.Entries))
	for p := range a.Entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ReadArchive decodes a backup ZIP held in memory. Directory entries and
// files that are not archive CSVs are skipped. maxUncompressed <= 0 uses
// DefaultMaxUncompressed.
func ReadArchive(data []byte, maxUncompressed int64) (*Archive, error) {
	if maxUncompressed <= 0 {
		maxUncompressed = DefaultMaxUncompressed
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	tables := Tables()
	a := &Archive{Entries: make(map[string]*tabular.Sheet)}
	var total int64

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || skipEntry(f.Name) {
			continue
		}
		base := path.Base(f.Name)
		isManifest := strings.EqualFold(base, ManifestName)
		t, loc, ok := tabular.Classify(f.Name, tables)
		if !ok && !isManifest {
			a.Ignored = append(a.Ignored, f.Name)
			continue
		}

		body, err := readEntry(f, maxUncompressed-total)
		if err != nil {
			return nil, err
		}
		total += int64(len(body))

		if isManifest {
			if a.Manifest, err = ParseManifest(body); err != nil {
				return nil, err
			}
			continue
		}

		sheet, err := tabular.DecodeCSV(body, t, loc, f.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}
		key := t.Path(loc)
		if prev, dup := a.Entries[key]; dup {
			prev.Rows = append(prev.Rows, sheet.Rows...)
			continue
		}
		sheet.Path = key
		a.Entries[key] = sheet
	}
	return a, nil
}

func readEntry(f *zip.File, budget int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, f.Name, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(io.LimitReader(rc, budget+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidArchive, f.Name, err)
	}
	if int64(len(body)) > budget {
		return nil, fmt.Errorf("%w: archive expands beyond size limit", ErrInvalidArchive)
	}
	return body, nil
}

// skipEntry filters OS metadata that archivers add.
func skipEntry(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}
