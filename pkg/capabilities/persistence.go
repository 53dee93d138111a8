package capabilities

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/wireformat"
)

// Persistence saves and loads the locally-registered capability set,
// per spec.md §4.7.7.
type Persistence interface {
	Save(entries []model.DiscoveryEntry) error
	Load() ([]model.DiscoveryEntry, error)
}

// NoopPersistence disables persistence entirely: both Save and Load
// are no-ops, per spec.md §4.7.7's "persistence may be disabled by
// configuration".
type NoopPersistence struct{}

// Save implements Persistence.
func (NoopPersistence) Save([]model.DiscoveryEntry) error { return nil }

// Load implements Persistence.
func (NoopPersistence) Load() ([]model.DiscoveryEntry, error) { return nil, nil }

// FilePersistence stores the registered capability set as a single
// deterministic-JSON file (pkg/wireformat), written atomically via a
// write-then-rename so a crash mid-save never leaves a truncated file
// behind.
type FilePersistence struct {
	Path string
}

// Save atomically overwrites Path with entries.
func (f FilePersistence) Save(entries []model.DiscoveryEntry) error {
	b, err := wireformat.Marshal(entries)
	if err != nil {
		return fmt.Errorf("capabilities: marshal persisted entries: %w", err)
	}

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".capabilities-*.tmp")
	if err != nil {
		return fmt.Errorf("capabilities: create temp persistence file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("capabilities: write persistence file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("capabilities: close persistence file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("capabilities: install persistence file: %w", err)
	}
	return nil
}

// Load reads Path. A missing file is not an error: it means there is
// nothing to restore yet.
func (f FilePersistence) Load() ([]model.DiscoveryEntry, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("capabilities: read persistence file: %w", err)
	}

	var entries []model.DiscoveryEntry
	if err := wireformat.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("capabilities: unmarshal persisted entries: %w", err)
	}
	return entries, nil
}
