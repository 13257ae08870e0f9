// Package jsonstore reads and writes the flat JSON files this job uses as
// its only persistence. Files are small and rewritten whole; there is no
// cross-process locking, so concurrent instances are last-writer-wins.
package jsonstore

import (
	"encoding/json"
	"os"
)

// Load decodes the file at path into T. A missing or unreadable file, or
// one that fails to decode, yields the zero value: callers treat absent
// state as empty, matching the forgiving read-modify-write cycle these
// files live in.
func Load[T any](path string) T {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero
	}
	return v
}

// Save writes v to path as indented JSON, replacing any existing file.
func Save[T any](path string, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
