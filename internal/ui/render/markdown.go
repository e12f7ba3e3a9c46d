// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"sync"

	"github.com/charmbracelet/glamour"
)

// DefaultWordWrap is the wrap width used when none is given.
const DefaultWordWrap = 80

var (
	renderersMu sync.Mutex
	renderers   = map[int]*glamour.TermRenderer{}
)

// renderer returns a cached glamour renderer for width. glamour renderers
// are not safe for concurrent use, so callers hold renderersMu.
func renderer(width int) (*glamour.TermRenderer, error) {
	if r, ok := renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	renderers[width] = r
	return r, nil
}

// Markdown renders content for a terminal wrapped at width columns.
// The source is returned unchanged if rendering fails.
func Markdown(content string, width int) string {
	if width <= 0 {
		width = DefaultWordWrap
	}

	renderersMu.Lock()
	defer renderersMu.Unlock()

	r, err := renderer(width)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}
