// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search finds conversations containing a phrase.
//
// Matching is accent and case insensitive: "cafe" finds "Café" and
// "STRASSE" finds "straße".
package search

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/rigrun-chatstore/internal/export"
	"github.com/jeranaias/rigrun-chatstore/internal/storage"
	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

// SnippetWidth is the maximum display width of Match.Snippet.
const SnippetWidth = 72

// TitleField is the Match.Field value for hits in the conversation title.
const TitleField = "title"

// Match is one hit. Field is TitleField or the role of the matching message.
type Match struct {
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
	Field    string `json:"field"`
	Message  int    `json:"message"` // -1 for title hits
	Snippet  string `json:"snippet"`
}

// Fold returns s in the form used for comparison: compatibility
// decomposed, combining marks stripped, case folded.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		normalized = s
	}
	return cases.Fold().String(normalized)
}

// Search scans every listed conversation, newest first, and returns up to
// limit matches (all of them when limit <= 0). Each message contributes at
// most one match. Unreadable conversations are skipped.
func Search(src export.Source, query string, limit int) ([]Match, error) {
	needle := Fold(strings.TrimSpace(query))
	if needle == "" {
		return nil, errors.New("empty search query")
	}

	names, err := src.List()
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, name := range names {
		conv, err := src.Get(name)
		if err != nil {
			if errors.Is(err, storage.ErrRead) {
				continue
			}
			return nil, err
		}

		for _, m := range matchConversation(conv, needle) {
			matches = append(matches, m)
			if limit > 0 && len(matches) >= limit {
				return matches, nil
			}
		}
	}
	return matches, nil
}

func matchConversation(conv *storage.Conversation, needle string) []Match {
	summary := export.Summarize(conv)

	var matches []Match
	if strings.Contains(Fold(summary.Title), needle) {
		matches = append(matches, Match{
			Filename: conv.Filename,
			Title:    summary.Title,
			Field:    TitleField,
			Message:  -1,
			Snippet:  util.TruncateWidth(util.OneLine(summary.Title), SnippetWidth),
		})
	}

	for i, msg := range export.Messages(conv) {
		if snippet, ok := snippetFor(msg.Content, needle); ok {
			matches = append(matches, Match{
				Filename: conv.Filename,
				Title:    summary.Title,
				Field:    msg.Role,
				Message:  i,
				Snippet:  snippet,
			})
		}
	}
	return matches
}

// snippetFor returns the first line of text containing needle.
func snippetFor(text, needle string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(Fold(line), needle) {
			return util.TruncateWidth(strings.TrimSpace(util.OneLine(line)), SnippetWidth), true
		}
	}
	return "", false
}
