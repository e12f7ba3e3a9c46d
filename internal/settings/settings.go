// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings persists the small host documents that live beside the
// conversation store: the model catalogue, appearance preferences, and saved
// prompts.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

const (
	ModelsFile     = "models.json"
	AppearanceFile = "appearance.json"
	PromptsFile    = "prompts.json"

	filePerm = 0644
)

var (
	// ErrPromptNotFound is returned by DeletePrompt for an unknown id.
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrInvalidAppearance is returned by SaveAppearance for non-positive values.
	ErrInvalidAppearance = errors.New("invalid appearance")
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// Appearance holds UI scaling preferences.
type Appearance struct {
	Scale    float64 `json:"scale"`
	FontSize int     `json:"fontSize"`
}

// Prompt is a saved system prompt.
type Prompt struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// DefaultModels maps display names to provider model ids.
func DefaultModels() map[string]string {
	return map[string]string{
		"Grok 3":        "x-ai/grok-3-beta",
		"DeepSeek R1":   "deepseek/deepseek-r1",
		"Claude 3 Opus": "anthropic/claude-3-opus",
		"GPT-4 Turbo":   "openai/gpt-4-turbo-preview",
		"Mixtral 8x7B":  "mistral/mixtral-8x7b",
	}
}

// DefaultAppearance returns scale 1 with a 14px font.
func DefaultAppearance() Appearance {
	return Appearance{Scale: 1, FontSize: 14}
}

// =============================================================================
// STORE
// =============================================================================

// Store reads and writes the settings documents in one directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New seeds any missing settings document in appDataDir with its default.
// Existing documents are left as they are.
func New(appDataDir string) (*Store, error) {
	if appDataDir == "" {
		return nil, errors.New("settings: app data directory is required")
	}
	if err := os.MkdirAll(appDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create app data directory: %w", err)
	}

	s := &Store{dir: appDataDir}
	seeds := []struct {
		name string
		v    any
	}{
		{ModelsFile, DefaultModels()},
		{AppearanceFile, DefaultAppearance()},
		{PromptsFile, []Prompt{}},
	}
	for _, seed := range seeds {
		data, err := json.MarshalIndent(seed.v, "", "  ")
		if err != nil {
			return nil, err
		}
		if _, err := util.EnsureFile(s.path(seed.name), data, filePerm); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", seed.name, err)
		}
	}
	return s, nil
}

// Dir returns the directory holding the settings documents.
func (s *Store) Dir() string {
	return s.dir
}

// ----- Models -----

// Models returns the display name to model id catalogue.
func (s *Store) Models() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readModels()
}

// SaveModels replaces the catalogue.
func (s *Store) SaveModels(models map[string]string) error {
	if models == nil {
		models = map[string]string{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ModelsFile, models)
}

// DeleteModel removes every display name mapped to modelID. An unknown id is
// not an error.
func (s *Store) DeleteModel(modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	models, err := s.readModels()
	if err != nil {
		return err
	}
	removed := false
	for name, id := range models {
		if id == modelID {
			delete(models, name)
			removed = true
		}
	}
	if !removed {
		return nil
	}
	return s.write(ModelsFile, models)
}

func (s *Store) readModels() (map[string]string, error) {
	models := map[string]string{}
	if err := s.read(ModelsFile, &models); err != nil {
		return nil, err
	}
	if models == nil {
		models = map[string]string{}
	}
	return models, nil
}

// ----- Appearance -----

// Appearance returns the saved appearance. Missing fields take defaults.
func (s *Store) Appearance() (Appearance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := DefaultAppearance()
	if err := s.read(AppearanceFile, &a); err != nil {
		return Appearance{}, err
	}
	return a, nil
}

// SaveAppearance replaces the appearance document.
func (s *Store) SaveAppearance(a Appearance) error {
	if a.Scale <= 0 || a.FontSize <= 0 {
		return fmt.Errorf("%w: scale and fontSize must be positive", ErrInvalidAppearance)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(AppearanceFile, a)
}

// ----- Prompts -----

// Prompts returns the saved prompts in stored order.
func (s *Store) Prompts() ([]Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readPrompts()
}

// SavePrompts replaces the prompt list. Prompts without an id get a new
// UUID; the stored list is returned so callers can learn the assigned ids.
func (s *Store) SavePrompts(prompts []Prompt) ([]Prompt, error) {
	stored := make([]Prompt, len(prompts))
	for i, p := range prompts {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		stored[i] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(PromptsFile, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// DeletePrompt removes the prompt with the given id.
func (s *Store) DeletePrompt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompts, err := s.readPrompts()
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(slices.Clone(prompts), func(p Prompt) bool { return p.ID == id })
	if len(kept) == len(prompts) {
		return fmt.Errorf("%w: %s", ErrPromptNotFound, id)
	}
	return s.write(PromptsFile, kept)
}

func (s *Store) readPrompts() ([]Prompt, error) {
	var prompts []Prompt
	if err := s.read(PromptsFile, &prompts); err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = []Prompt{}
	}
	return prompts, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) read(name string, v any) error {
	if err := util.ReadJSON(s.path(name), v); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}

func (s *Store) write(name string, v any) error {
	if err := util.WriteJSON(s.path(name), v, filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
