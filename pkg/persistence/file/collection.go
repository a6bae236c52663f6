package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// readCollection loads the named entity collection as an id-keyed map.
// A missing file is an empty collection.
func readCollection[T any](p *Persistence, name string) (map[string]*T, error) {
	path := filepath.Join(p.root, name+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*T), nil
		}

		return nil, fmt.Errorf("failed to read %s collection: %w", name, err)
	}

	items := make(map[string]*T)
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s collection: %w", name, err)
	}

	return items, nil
}

// writeCollection persists the collection atomically via temp-file rename.
func writeCollection[T any](p *Persistence, name string, items map[string]*T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s collection: %w", name, err)
	}

	path := filepath.Join(p.root, name+".json")
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s collection: %w", name, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s collection: %w", name, err)
	}

	return nil
}
