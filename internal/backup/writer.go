package backup

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/tabular"
)

// WriteArchive writes sheets and the manifest as one ZIP to w. The archive
// is assembled in memory first, so nothing reaches w unless every entry
// encoded. Empty sheets are left out and entries are ordered by path.
func WriteArchive(w io.Writer, sheets []*tabular.Sheet, m *Manifest) error {
	buf, err := BuildArchive(sheets, m)
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// BuildArchive is WriteArchive into a buffer. m.Entries is filled in from
// the sheets that were written.
func BuildArchive(sheets []*tabular.Sheet, m *Manifest) (*bytes.Buffer, error) {
	ordered := make([]*tabular.Sheet, 0, len(sheets))
	for _, s := range sheets {
		if s != nil && s.Len() > 0 {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	modified := m.ExportedAt
	if modified.IsZero() {
		modified = time.Now().UTC()
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	m.Entries = m.Entries[:0]
	for _, s := range ordered {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: s.Path, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", s.Path, err)
		}
		if err := tabular.EncodeCSV(f, s); err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, ManifestEntry{Path: s.Path, Rows: s.Len()})
	}

	if m.Format == "" {
		m.Format = ContractVersion
	}
	data, err := m.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	f, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestName, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return nil, fmt.Errorf("create manifest: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	return &buf, nil
}
