// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for chatstore.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

const (
	// ConversationsDirName is the directory created under the app data dir.
	ConversationsDirName = "chat_conversations"

	// IndexFileName is the index of visible conversations inside that directory.
	IndexFileName = "index.json"

	filePerm = 0644
	dirPerm  = 0755
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is one stored chat session.
//
// Content is an opaque JSON tree (map[string]any, []any, float64, string,
// bool, or nil after decoding). The store never inspects it.
type Conversation struct {
	Filename string `json:"filename"`
	Content  any    `json:"content"`
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore keeps one JSON file per conversation plus index.json
// listing the conversations that are visible.
//
// Nothing is cached between calls: every operation re-reads the index from
// disk. The mutex serializes index read-modify-write sequences so concurrent
// saves and deletes on one store cannot lose each other's updates.
type ConversationStore struct {
	dir    string
	logger *log.Logger

	mu sync.Mutex
}

// Option customizes a ConversationStore.
type Option func(*ConversationStore)

// WithLogger routes store diagnostics to logger instead of log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(s *ConversationStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New prepares appDataDir/chat_conversations and its index.json, creating
// whichever is missing. An existing index is never overwritten.
//
// Callers should treat an error as fatal: the store is unusable without its
// directory.
func New(appDataDir string, opts ...Option) (*ConversationStore, error) {
	if appDataDir == "" {
		return nil, errors.New("storage: app data directory is required")
	}

	s := &ConversationStore{
		dir:    filepath.Join(appDataDir, ConversationsDirName),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}

	created, err := util.EnsureFile(s.IndexPath(), []byte("[]"), filePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", IndexFileName, err)
	}
	if created {
		s.logger.Printf("STORE_INIT | dir=%s index=created", s.dir)
	}

	return s, nil
}

// Dir returns the conversations directory.
func (s *ConversationStore) Dir() string {
	return s.dir
}

// IndexPath returns the path of index.json.
func (s *ConversationStore) IndexPath() string {
	return filepath.Join(s.dir, IndexFileName)
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// List returns the indexed filenames, newest first.
//
// Ordering is descending lexicographic; filenames that embed a sortable
// timestamp therefore come back in reverse chronological order. The on-disk
// index keeps insertion order.
func (s *ConversationStore) List() ([]string, error) {
	index, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(index)))
	return index, nil
}

// Get reads one conversation file.
//
// The index is not consulted, so a file that exists but is not indexed can
// still be fetched directly.
func (s *ConversationStore) Get(filename string) (*Conversation, error) {
	var content any
	if err := util.ReadJSON(s.path(filename), &content); err != nil {
		return nil, readError(filename, err)
	}
	return &Conversation{Filename: filename, Content: content}, nil
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Save writes content to filename (full replace) and adds filename to the
// index if it is not there yet.
//
// If the content write fails the index is left untouched. If the content is
// written but the index update fails, the error is returned and the file
// stays on disk unindexed.
func (s *ConversationStore) Save(filename string, content any) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return writeError(filename, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.AtomicWriteFile(s.path(filename), data, filePerm); err != nil {
		return writeError(filename, err)
	}

	index, err := s.readIndex()
	if err != nil {
		return err
	}
	if slices.Contains(index, filename) {
		return nil
	}
	return s.writeIndex(append(index, filename))
}

// Delete removes filename's file, if present, and every index entry naming it.
//
// A missing file is not an error. A file that exists but cannot be removed is
// logged and the index entry is dropped anyway, leaving the file unindexed.
func (s *ConversationStore) Delete(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeFile(filename)

	index, err := s.readIndex()
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(slices.Clone(index), func(f string) bool { return f == filename })
	if len(kept) == len(index) {
		return nil
	}
	return s.writeIndex(kept)
}

// ClearAll removes every indexed conversation file and resets the index to
// an empty list.
//
// An unreadable index is returned untouched; RebuildIndex is the recovery
// path.
// Per-file failures are logged and skipped.
func (s *ConversationStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex()
	if err != nil {
		return err
	}

	removed := 0
	for _, filename := range index {
		if s.removeFile(filename) {
			removed++
		}
	}

	if err := s.writeIndex(nil); err != nil {
		return err
	}

	s.logger.Printf("CONVERSATIONS_CLEARED | indexed=%d removed=%d", len(index), removed)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// path returns the file path for a conversation. Filenames are used verbatim.
func (s *ConversationStore) path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// removeFile deletes a conversation file and reports whether it was removed.
// A missing file is silently ignored; other failures are logged.
func (s *ConversationStore) removeFile(filename string) bool {
	err := os.Remove(s.path(filename))
	switch {
	case err == nil:
		return true
	case errors.Is(err, fs.ErrNotExist):
		return false
	default:
		s.logger.Printf("DELETE_FILE_FAILED | file=%s error=%v", filename, err)
		return false
	}
}

func (s *ConversationStore) readIndex() ([]string, error) {
	var index []string
	if err := util.ReadJSON(s.IndexPath(), &index); err != nil {
		return nil, readError("", fmt.Errorf("index: %w", err))
	}
	if index == nil {
		index = []string{}
	}
	return index, nil
}

func (s *ConversationStore) writeIndex(index []string) error {
	if index == nil {
		index = []string{}
	}
	if err := util.WriteJSON(s.IndexPath(), index, filePerm); err != nil {
		return writeError("", fmt.Errorf("index: %w", err))
	}
	return nil
}
