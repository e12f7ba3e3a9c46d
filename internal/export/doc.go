// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes backups of the conversation store and replays them.
//
// # Supported Formats
//
//   - JSON: a bundle of {filename, content} records, importable
//   - SQLite: one row per conversation, importable
//   - Markdown: human-readable transcripts, export only
//
// Imports go through the store's Save, so the index stays consistent and
// names that could escape the conversations directory are skipped.
//
// # Usage
//
//	result, err := export.ExportFile(store, "backup.db", export.FormatSQLite)
//	result, err = export.ImportFile(store, "backup.db", export.FormatSQLite)
package export
