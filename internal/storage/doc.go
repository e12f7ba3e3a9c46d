// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for chatstore.
//
// Each conversation is a pretty-printed JSON file named exactly by its
// caller-supplied filename. index.json, a JSON array of filenames, decides
// which conversations are visible to listing.
//
// # Key Types
//
//   - ConversationStore: owns the directory and index
//   - Conversation: filename plus opaque JSON content
//   - Error: classified failure (ErrRead, ErrWrite, ErrDelete)
//   - Report: index/directory drift found by Check and Repair
//
// # Usage
//
//	store, err := storage.New(appDataDir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = store.Save("2024-03-01_10-00-00.json", content)
//	names, err := store.List() // newest first
//	conv, err := store.Get(names[0])
//
// # Storage Location
//
//	<app data dir>/chat_conversations/
//	    index.json
//	    <filename>...
package storage
