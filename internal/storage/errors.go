// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "fmt"

// ErrorKind classifies a storage failure.
type ErrorKind int

const (
	// KindRead covers missing, unreadable, or malformed files.
	KindRead ErrorKind = iota + 1
	// KindWrite covers content or index files that could not be persisted.
	KindWrite
	// KindDelete is reserved. Removal failures are currently logged and swallowed.
	KindDelete
)

func (k ErrorKind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Error is returned by every ConversationStore operation that fails.
// Use errors.Is(err, ErrRead) (or ErrWrite, ErrDelete) to classify it and
// errors.Is(err, fs.ErrNotExist) to detect a missing file.
type Error struct {
	Kind     ErrorKind
	Filename string // empty for index-level failures
	Err      error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrRead   = &Error{Kind: KindRead}
	ErrWrite  = &Error{Kind: KindWrite}
	ErrDelete = &Error{Kind: KindDelete}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to %s conversation", e.Kind)
	}
	return fmt.Sprintf("failed to %s conversation: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func readError(filename string, err error) error {
	return &Error{Kind: KindRead, Filename: filename, Err: err}
}

func writeError(filename string, err error) error {
	return &Error{Kind: KindWrite, Filename: filename, Err: err}
}
