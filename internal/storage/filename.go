// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

// ValidateFilename rejects names that would escape the conversations
// directory or collide with its bookkeeping files.
//
// The store itself uses filenames verbatim; callers that accept names from
// outside the process (HTTP, CLI, imports) check them here first.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return errors.New("filename is required")
	case name == "." || name == "..":
		return fmt.Errorf("invalid filename %q", name)
	case name == IndexFileName:
		return fmt.Errorf("filename %q is reserved", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("filename %q must not contain a path separator", name)
	case strings.ContainsRune(name, 0):
		return errors.New("filename must not contain NUL")
	case util.IsTempFile(name):
		return fmt.Errorf("filename %q is reserved", name)
	}
	return nil
}
