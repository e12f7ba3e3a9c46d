// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TempPrefix is the name prefix of the scratch files AtomicWriteFile creates
// next to its target. Directory scanners should skip names carrying it.
const TempPrefix = ".tmp-"

// RELIABILITY: Atomic write with fsync prevents torn files on crash
//
// AtomicWriteFile replaces path with data by writing a temp file in the same
// directory, syncing it, and renaming it over the target. Readers observe
// either the previous content or the new content, never a partial write.
//
// The parent directory must already exist. Callers that own their directory
// layout create it once up front; a vanished directory is reported, not healed.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	f, err := os.CreateTemp(dir, TempPrefix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()

	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync data to disk: %w", err)
	}
	// Close before rename - required on Windows
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	committed = true
	return nil
}

// WriteJSON pretty-prints v with two-space indentation and writes it
// atomically to path.
func WriteJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return AtomicWriteFile(path, data, perm)
}

// ReadJSON decodes the JSON document at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", filepath.Base(path), err)
	}
	return nil
}

// IsTempFile reports whether name is an in-flight AtomicWriteFile scratch file.
func IsTempFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), TempPrefix)
}

// EnsureFile creates path with the given content if it does not exist yet.
// An existing file is never touched. It reports whether the file was created.
func EnsureFile(path string, content []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := AtomicWriteFile(path, content, perm); err != nil {
		return false, err
	}
	return true, nil
}
