package tabular

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Table)
	registryMu sync.RWMutex
)

// Register adds a table contract. It panics on a duplicate key or a
// duplicate column name, both of which are programming errors.
func Register(t Table) Table {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Key]; exists {
		panic(fmt.Sprintf("table already registered: %s", t.Key))
	}

	seen := make(map[string]bool, len(t.FieldSpecs))
	t.Columns = make([]string, len(t.FieldSpecs))
	for i, f := range t.FieldSpecs {
		if seen[f.Name] {
			panic(fmt.Sprintf("table %s: duplicate column %q", t.Key, f.Name))
		}
		seen[f.Name] = true
		t.Columns[i] = f.Name
	}

	registry[t.Key] = t
	return t
}

// Get returns a table by key.
func Get(key string) (Table, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[key]
	return t, ok
}

// ByGroup returns the tables of a group sorted by key.
func ByGroup(group string) []Table {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []Table
	for _, t := range registry {
		if t.Group == group {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
