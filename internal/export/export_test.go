// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-chatstore/internal/storage"
)

func newStore(t *testing.T) *storage.ConversationStore {
	t.Helper()
	store, err := storage.New(t.TempDir(), storage.WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)
	return store
}

func seed(t *testing.T, store *storage.ConversationStore) {
	t.Helper()
	require.NoError(t, store.Save("2024-01-01.json", map[string]any{
		"title":    "First",
		"model":    "x-ai/grok-3-beta",
		"messages": []any{map[string]any{"role": "user", "content": "hello"}},
	}))
	require.NoError(t, store.Save("2024-02-01.json", map[string]any{"title": "Second"}))
	require.NoError(t, store.Save("2024-03-01.json", []any{1, 2, 3}))
}

func readIndex(t *testing.T, store *storage.ConversationStore) []string {
	t.Helper()
	data, err := os.ReadFile(store.IndexPath())
	require.NoError(t, err)
	var index []string
	require.NoError(t, json.Unmarshal(data, &index))
	return index
}

// =============================================================================
// FORMAT PARSING
// =============================================================================

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":         FormatJSON,
		"JSON":     FormatJSON,
		"sqlite":   FormatSQLite,
		"db":       FormatSQLite,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatSQLite, FormatFromPath("backup.sqlite"))
	assert.Equal(t, FormatSQLite, FormatFromPath("backup.DB"))
	assert.Equal(t, FormatMarkdown, FormatFromPath("notes.md"))
	assert.Equal(t, FormatJSON, FormatFromPath("backup.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("backup"))
}

// =============================================================================
// JSON
// =============================================================================

func TestExportJSON(t *testing.T) {
	store := newStore(t)
	seed(t, store)

	var buf bytes.Buffer
	result, err := Export(store, &buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	assert.Empty(t, result.Skipped)

	var bundle Bundle
	require.NoError(t, json.Unmarshal(buf.Bytes(), &bundle))
	assert.False(t, bundle.ExportedAt.IsZero())
	require.Len(t, bundle.Conversations, 3)
	assert.Equal(t, "2024-03-01.json", bundle.Conversations[0].Filename)
	assert.Equal(t, "2024-01-01.json", bundle.Conversations[2].Filename)
}

func TestExport_SkipsDangling(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	require.NoError(t, os.Remove(filepath.Join(store.Dir(), "2024-02-01.json")))

	var buf bytes.Buffer
	result, err := Export(store, &buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []string{"2024-02-01.json"}, result.Skipped)
}

func TestExport_EmptyStore(t *testing.T) {
	var buf bytes.Buffer
	result, err := Export(newStore(t), &buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.Contains(t, buf.String(), `"conversations": []`)
}

func TestExport_CorruptIndex(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.WriteFile(store.IndexPath(), []byte("{"), 0644))

	_, err := Export(store, io.Discard, FormatJSON)
	assert.ErrorIs(t, err, storage.ErrRead)
}

func TestExport_SQLiteNeedsPath(t *testing.T) {
	_, err := Export(newStore(t), io.Discard, FormatSQLite)
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	src := newStore(t)
	seed(t, src)

	path := filepath.Join(t.TempDir(), "backup.json")
	result, err := ExportFile(src, path, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, path, result.Location)

	dst := newStore(t)
	result, err = ImportFile(dst, path, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)

	assert.Equal(t, readIndex(t, src), readIndex(t, dst), "index insertion order survives")

	conv, err := dst.Get("2024-01-01.json")
	require.NoError(t, err)
	assert.Equal(t, "First", conv.Content.(map[string]any)["title"])
}

func TestImport_SkipsBadFilenames(t *testing.T) {
	bundle := `{"exported_at":"2024-01-01T00:00:00Z","conversations":[
		{"filename":"ok.json","content":{"n":1}},
		{"filename":"../escape.json","content":{}},
		{"filename":"index.json","content":[]},
		null
	]}`

	dst := newStore(t)
	result, err := Import(dst, strings.NewReader(bundle))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.ElementsMatch(t, []string{"../escape.json", "index.json"}, result.Skipped)
	assert.Equal(t, []string{"ok.json"}, readIndex(t, dst))
}

func TestImport_Malformed(t *testing.T) {
	_, err := Import(newStore(t), strings.NewReader("not json"))
	assert.Error(t, err)
}

func TestImportFile_Markdown(t *testing.T) {
	_, err := ImportFile(newStore(t), "x.md", FormatMarkdown)
	assert.Error(t, err)
}

// =============================================================================
// SQLITE
// =============================================================================

func TestSQLiteRoundTrip(t *testing.T) {
	src := newStore(t)
	seed(t, src)

	path := filepath.Join(t.TempDir(), "backup.db")
	result, err := ExportFile(src, path, FormatSQLite)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&count))
	assert.Equal(t, 3, count)
	var newest string
	require.NoError(t, db.QueryRow("SELECT filename FROM conversations WHERE position = 0").Scan(&newest))
	assert.Equal(t, "2024-03-01.json", newest)
	var version string
	require.NoError(t, db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version))
	assert.Equal(t, "1", version)
	require.NoError(t, db.Close())

	dst := newStore(t)
	result, err = ImportFile(dst, path, FormatSQLite)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, readIndex(t, src), readIndex(t, dst))

	conv, err := dst.Get("2024-03-01.json")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, conv.Content)
}

func TestExportSQLite_ReplacesExisting(t *testing.T) {
	src := newStore(t)
	seed(t, src)
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.db")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	_, err := ExportSQLite(src, path)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp database left behind")
}

func TestImportSQLite_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := ImportSQLite(newStore(t), path)
	assert.True(t, os.IsNotExist(err))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "import must not create the database")
}

func TestImportSQLite_NotAnExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = ImportSQLite(newStore(t), path)
	assert.Error(t, err)
}
