package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// 原子JSON文档读写
//
// Checkpoint and snapshot documents are rewritten on every collection pass.
// A crash mid-write must never leave a torn file, so writes go to a
// sibling .tmp file first and are published with a rename.

// EnsureParentDir creates the parent directory of path if missing.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// WriteAtomic marshals payload and replaces path atomically.
func WriteAtomic(path string, payload interface{}) error {
	if err := EnsureParentDir(path); err != nil {
		return fmt.Errorf("failed to create parent dir for %s: %w", path, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadInto unmarshals path into out. Returns false (without touching out)
// when the file is missing or corrupt, so callers can fall back to a
// default-empty document.
func ReadInto(path string, out interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false
	}
	return true
}
