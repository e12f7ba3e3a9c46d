// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: Width-aware helpers keep CLI tables aligned when filenames or
// previews contain CJK or other double-width characters.

// TruncateWidth truncates s to at most maxWidth terminal columns, appending
// "..." when anything was cut.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadRight pads s with spaces to width terminal columns.
// Strings already at least width wide are returned unchanged.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// StringWidth returns the display width of s in terminal columns.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// OneLine collapses newlines and tabs so s renders on a single row.
func OneLine(s string) string {
	r := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", "", "\t", " ")
	return r.Replace(s)
}
