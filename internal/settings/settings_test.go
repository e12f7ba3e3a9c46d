// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNew_SeedsDefaults(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{ModelsFile, AppearanceFile, PromptsFile} {
		_, err := os.Stat(filepath.Join(s.Dir(), name))
		assert.NoError(t, err, name)
	}

	models, err := s.Models()
	require.NoError(t, err)
	assert.Equal(t, DefaultModels(), models)

	a, err := s.Appearance()
	require.NoError(t, err)
	assert.Equal(t, Appearance{Scale: 1, FontSize: 14}, a)

	prompts, err := s.Prompts()
	require.NoError(t, err)
	assert.Empty(t, prompts)
	assert.NotNil(t, prompts)
}

func TestNew_KeepsExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ModelsFile), []byte(`{"Local":"llama3"}`), 0644))

	s, err := New(dir)
	require.NoError(t, err)

	models, err := s.Models()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Local": "llama3"}, models)
}

func TestNew_EmptyDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestModels_SaveAndDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveModels(map[string]string{
		"Opus":      "anthropic/claude-3-opus",
		"Opus copy": "anthropic/claude-3-opus",
		"Grok":      "x-ai/grok-3-beta",
	}))

	require.NoError(t, s.DeleteModel("anthropic/claude-3-opus"))
	models, err := s.Models()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Grok": "x-ai/grok-3-beta"}, models)

	require.NoError(t, s.DeleteModel("unknown/model"), "unknown id is not an error")
}

func TestModels_Corrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), ModelsFile), []byte("{"), 0644))

	_, err := s.Models()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ModelsFile)
}

func TestAppearance_Save(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveAppearance(Appearance{Scale: 1.25, FontSize: 16}))
	a, err := s.Appearance()
	require.NoError(t, err)
	assert.Equal(t, Appearance{Scale: 1.25, FontSize: 16}, a)

	assert.ErrorIs(t, s.SaveAppearance(Appearance{Scale: 0, FontSize: 16}), ErrInvalidAppearance)
}

func TestAppearance_PartialDocument(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), AppearanceFile), []byte(`{"scale":2}`), 0644))

	a, err := s.Appearance()
	require.NoError(t, err)
	assert.Equal(t, Appearance{Scale: 2, FontSize: 14}, a)
}

func TestPrompts_AssignsIDs(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.SavePrompts([]Prompt{
		{Name: "Reviewer", Content: "Review this code."},
		{ID: "fixed", Name: "Poet", Content: "Answer in verse."},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	_, err = uuid.Parse(stored[0].ID)
	assert.NoError(t, err, "generated id should be a UUID")
	assert.Equal(t, "fixed", stored[1].ID)

	loaded, err := s.Prompts()
	require.NoError(t, err)
	assert.Equal(t, stored, loaded)
}

func TestDeletePrompt(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SavePrompts([]Prompt{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeletePrompt("a"))
	prompts, err := s.Prompts()
	require.NoError(t, err)
	assert.Equal(t, []Prompt{{ID: "b", Name: "B"}}, prompts)

	err = s.DeletePrompt("a")
	assert.True(t, errors.Is(err, ErrPromptNotFound))
}
