// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across chatstore.
//
// # File Operations
//
//   - AtomicWriteFile: crash-safe replace via temp file, fsync, and rename
//   - WriteJSON / ReadJSON: pretty-printed JSON documents on top of it
//   - EnsureFile: create-if-missing seeding that never clobbers
//
// # Display
//
//   - TruncateWidth, PadRight, StringWidth: column-aware formatting
//     backed by github.com/mattn/go-runewidth
//
// # Usage
//
//	if err := util.WriteJSON(path, index, 0644); err != nil {
//	    return err
//	}
package util
