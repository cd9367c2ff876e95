package backup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestName is the archive entry holding the Manifest.
const ManifestName = "manifest.yaml"

// Manifest describes an archive. It is informational: a reader that finds
// no manifest restores the CSV entries all the same.
type Manifest struct {
	Format      string          `yaml:"format"`
	TuitionID   string          `yaml:"tuition_id"`
	TuitionName string          `yaml:"tuition_name"`
	ExportedAt  time.Time       `yaml:"exported_at"`
	Entries     []ManifestEntry `yaml:"entries"`
}

// ManifestEntry is one CSV file and its row count.
type ManifestEntry struct {
	Path string `yaml:"path"`
	Rows int    `yaml:"rows"`
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// ParseManifest decodes a manifest and rejects a newer major format.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, ManifestName, err)
	}
	if major(m.Format) > major(ContractVersion) {
		return nil, fmt.Errorf("%w: format %s is newer than supported %s", ErrInvalidArchive, m.Format, ContractVersion)
	}
	return &m, nil
}

func major(v string) int {
	head, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(v), "v"), ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}
