// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/rigrun-chatstore/internal/storage"
	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

// SchemaVersion is recorded in the metadata table of every SQLite export.
const SchemaVersion = 1

// sqliteSchema holds one row per conversation. position is the listing
// order at export time, 0 being the newest.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS conversations (
    filename TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    content TEXT NOT NULL,        -- compact JSON
    exported_at TEXT NOT NULL     -- RFC 3339
);

CREATE INDEX IF NOT EXISTS idx_conversations_position ON conversations(position);
`

// ExportSQLite writes the store to a new SQLite database at path. The
// database is built next to path and renamed into place, so an existing
// file is replaced only on success.
func ExportSQLite(src Source, path string) (*Result, error) {
	convs, skipped, err := collect(src)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), util.TempPrefix+"*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if err := writeSQLite(tmpPath, convs, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	committed = true

	return &Result{Format: FormatSQLite, Count: len(convs), Skipped: skipped, Location: path}, nil
}

func writeSQLite(path string, convs []*storage.Conversation, at time.Time) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stamp := at.Format(time.RFC3339)
	meta := map[string]string{
		"schema_version": fmt.Sprint(SchemaVersion),
		"exported_at":    stamp,
		"generator":      "chatstore",
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
	}

	stmt, err := tx.Prepare("INSERT INTO conversations (filename, position, content, exported_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, conv := range convs {
		content, err := json.Marshal(conv.Content)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", conv.Filename, err)
		}
		if _, err := stmt.Exec(conv.Filename, i, string(content), stamp); err != nil {
			return fmt.Errorf("failed to insert %s: %w", conv.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

// ImportSQLite replays a database written by ExportSQLite through dst.Save,
// oldest first.
func ImportSQLite(dst Sink, path string) (*Result, error) {
	// sql.Open would create a missing file.
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT filename, content FROM conversations ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("not a conversation export: %w", err)
	}
	defer rows.Close()

	var records []*storage.Conversation
	result := &Result{Format: FormatSQLite, Location: path}
	for rows.Next() {
		var filename, raw string
		if err := rows.Scan(&filename, &raw); err != nil {
			return nil, err
		}

		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.UseNumber()
		var content any
		if err := dec.Decode(&content); err != nil {
			result.Skipped = append(result.Skipped, filename)
			continue
		}
		records = append(records, &storage.Conversation{Filename: filename, Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := replay(dst, records, result); err != nil {
		return result, err
	}
	return result, nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	return db, nil
}
