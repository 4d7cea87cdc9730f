// Package statefile is the shared persistence layer for the control plane's
// small JSON state records (threshold state, doctor state, freeze flags).
// Writes go through a temp file plus rename so a concurrent reader never
// observes a partially written record.
package statefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads the JSON record at path into v. A missing file is reported via
// the bool so callers can distinguish "first run" from a real read error.
func Load(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read state file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return true, nil
}

// Save atomically replaces the JSON record at path with v, creating parent
// directories as needed.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state for %s: %w", path, err)
	}

	// Atomic write using temp file + rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replace state file %s: %w", path, err)
	}
	return nil
}
