// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-chatstore/internal/storage"
	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

// =============================================================================
// FORMATS
// =============================================================================

// Format selects the backup encoding.
type Format string

const (
	// FormatJSON is a single JSON bundle that Import can replay.
	FormatJSON Format = "json"
	// FormatSQLite is a SQLite database with one row per conversation.
	FormatSQLite Format = "sqlite"
	// FormatMarkdown is a human-readable transcript. It cannot be imported.
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name, case-insensitively. "md" and "db" are
// accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, sqlite, or markdown)", s)
	}
}

// FormatFromPath guesses a format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatJSON
	}
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Source is the read side of a conversation store.
type Source interface {
	List() ([]string, error)
	Get(filename string) (*storage.Conversation, error)
}

// Sink is the write side of a conversation store.
type Sink interface {
	Save(filename string, content any) error
}

// Result summarizes an export or import.
type Result struct {
	Format   Format   `json:"format"`
	Count    int      `json:"count"`
	Skipped  []string `json:"skipped,omitempty"`
	Location string   `json:"location,omitempty"`
}

// =============================================================================
// EXPORT
// =============================================================================

// Export writes every listed conversation to w in listing order (newest
// first). Conversations whose files cannot be read are skipped and reported
// in Result.Skipped. FormatSQLite needs a file; use ExportFile.
func Export(src Source, w io.Writer, format Format) (*Result, error) {
	convs, skipped, err := collect(src)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		err = writeBundle(w, convs, time.Now().UTC())
	case FormatMarkdown:
		err = writeMarkdown(w, convs)
	case FormatSQLite:
		return nil, errors.New("sqlite export needs a file path")
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, err
	}

	return &Result{Format: format, Count: len(convs), Skipped: skipped}, nil
}

// ExportFile writes a backup to path, replacing it atomically.
func ExportFile(src Source, path string, format Format) (*Result, error) {
	if format == FormatSQLite {
		return ExportSQLite(src, path)
	}

	var buf bytes.Buffer
	result, err := Export(src, &buf, format)
	if err != nil {
		return nil, err
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}
	result.Location = path
	return result, nil
}

// ImportFile replays a JSON or SQLite backup into dst.
func ImportFile(dst Sink, path string, format Format) (*Result, error) {
	switch format {
	case FormatSQLite:
		return ImportSQLite(dst, path)
	case FormatJSON:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		result, err := Import(dst, f)
		if result != nil {
			result.Location = path
		}
		return result, err
	default:
		return nil, fmt.Errorf("format %q cannot be imported", format)
	}
}

// collect loads the listed conversations, skipping unreadable ones.
func collect(src Source) ([]*storage.Conversation, []string, error) {
	names, err := src.List()
	if err != nil {
		return nil, nil, err
	}

	convs := make([]*storage.Conversation, 0, len(names))
	var skipped []string
	for _, name := range names {
		conv, err := src.Get(name)
		if err != nil {
			if errors.Is(err, storage.ErrRead) {
				skipped = append(skipped, name)
				continue
			}
			return nil, nil, err
		}
		convs = append(convs, conv)
	}
	return convs, skipped, nil
}

// replay saves records oldest first so the store's index keeps the original
// insertion order. Records with unusable filenames are skipped.
func replay(dst Sink, records []*storage.Conversation, result *Result) error {
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec == nil {
			continue
		}
		if err := storage.ValidateFilename(rec.Filename); err != nil {
			result.Skipped = append(result.Skipped, rec.Filename)
			continue
		}
		if err := dst.Save(rec.Filename, rec.Content); err != nil {
			return fmt.Errorf("failed to import %s: %w", rec.Filename, err)
		}
		result.Count++
	}
	return nil
}
