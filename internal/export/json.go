// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/rigrun-chatstore/internal/storage"
)

// =============================================================================
// JSON BUNDLE
// =============================================================================

// Bundle is the JSON backup document.
type Bundle struct {
	ExportedAt    time.Time               `json:"exported_at"`
	Conversations []*storage.Conversation `json:"conversations"`
}

func writeBundle(w io.Writer, convs []*storage.Conversation, at time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Bundle{ExportedAt: at, Conversations: convs}); err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	return nil
}

// Import replays a JSON bundle through dst.Save. Bundles list conversations
// newest first; they are saved oldest first.
func Import(dst Sink, r io.Reader) (*Result, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var bundle Bundle
	if err := dec.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}

	result := &Result{Format: FormatJSON}
	if err := replay(dst, bundle.Conversations, result); err != nil {
		return result, err
	}
	return result, nil
}
