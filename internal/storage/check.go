// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"sort"

	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

// Report describes how far the index and the directory have drifted apart.
type Report struct {
	// Indexed is the number of entries in index.json, duplicates included.
	Indexed int `json:"indexed"`

	// Dangling lists index entries whose file no longer exists.
	Dangling []string `json:"dangling"`

	// Unindexed lists conversation files that are invisible to List.
	Unindexed []string `json:"unindexed"`

	// Duplicates lists filenames that appear in the index more than once.
	Duplicates []string `json:"duplicates"`
}

// Healthy reports whether the index and directory agree.
func (r *Report) Healthy() bool {
	return len(r.Dangling) == 0 && len(r.Unindexed) == 0 && len(r.Duplicates) == 0
}

// Check compares index.json with the directory contents without changing
// either.
func (s *ConversationStore) Check() (*Report, error) {
	index, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	return s.inspect(index)
}

// Repair drops dangling and duplicate entries from the index, keeping the
// first occurrence of each filename in its original position. Files are
// never touched; unindexed files are only reported.
//
// The returned report describes the state found before the repair.
func (s *ConversationStore) Repair() (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	report, err := s.inspect(index)
	if err != nil {
		return nil, err
	}
	if len(report.Dangling) == 0 && len(report.Duplicates) == 0 {
		return report, nil
	}

	seen := make(map[string]bool, len(index))
	repaired := make([]string, 0, len(index))
	for _, filename := range index {
		if seen[filename] || slices.Contains(report.Dangling, filename) {
			continue
		}
		seen[filename] = true
		repaired = append(repaired, filename)
	}

	if err := s.writeIndex(repaired); err != nil {
		return nil, err
	}
	s.logger.Printf("INDEX_REPAIRED | dangling=%d duplicates=%d kept=%d",
		len(report.Dangling), len(report.Duplicates), len(repaired))
	return report, nil
}

// RebuildIndex replaces index.json with every conversation file in the
// directory, in ascending name order. It is the recovery path for an index
// that no longer parses; whatever the old index held is discarded.
func (s *ConversationStore) RebuildIndex() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, readError("", err)
	}
	index := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || name == IndexFileName || util.IsTempFile(name) {
			continue
		}
		index = append(index, name)
	}
	sort.Strings(index)

	if err := s.writeIndex(index); err != nil {
		return nil, err
	}
	s.logger.Printf("INDEX_REBUILT | entries=%d", len(index))
	return index, nil
}

func (s *ConversationStore) inspect(index []string) (*Report, error) {
	report := &Report{
		Indexed:    len(index),
		Dangling:   []string{},
		Unindexed:  []string{},
		Duplicates: []string{},
	}

	counts := make(map[string]int, len(index))
	for _, filename := range index {
		counts[filename]++
		if counts[filename] == 2 {
			report.Duplicates = append(report.Duplicates, filename)
		}
		if counts[filename] > 1 {
			continue
		}
		if _, err := os.Stat(s.path(filename)); errors.Is(err, fs.ErrNotExist) {
			report.Dangling = append(report.Dangling, filename)
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, readError("", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || name == IndexFileName || util.IsTempFile(name) {
			continue
		}
		if counts[name] == 0 {
			report.Unindexed = append(report.Unindexed, name)
		}
	}

	sort.Strings(report.Dangling)
	sort.Strings(report.Unindexed)
	sort.Strings(report.Duplicates)
	return report, nil
}
