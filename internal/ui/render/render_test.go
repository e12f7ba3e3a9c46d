// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyJSON(t *testing.T) {
	out, err := PrettyJSON(map[string]any{"a": "<b>", "n": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"<b>\",\n  \"n\": 1\n}", out)
}

func TestPrettyJSON_Unencodable(t *testing.T) {
	_, err := PrettyJSON(make(chan int))
	assert.Error(t, err)
}

func TestHighlight(t *testing.T) {
	out := Highlight(`{"title": "x"}`, "json")
	assert.Contains(t, out, "\x1b[", "ANSI escapes present")
	assert.Contains(t, out, "title")
}

func TestHighlightJSON(t *testing.T) {
	out, err := HighlightJSON([]any{"hello"})
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestMarkdown(t *testing.T) {
	out := Markdown("# Heading\n\nbody text", 40)
	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "body text")

	assert.Equal(t, Markdown("plain", 0), Markdown("plain", DefaultWordWrap), "zero width uses default")
}
