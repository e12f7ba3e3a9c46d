// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/jeranaias/rigrun-chatstore/internal/settings"
	"github.com/jeranaias/rigrun-chatstore/internal/storage"
)

// ============================================================================
// CONVERSATION HANDLERS
// ============================================================================

// SaveRequest is the body of POST /conversations/{filename}.
type SaveRequest struct {
	Content json.RawMessage `json:"content"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	index, err := s.conversations.List()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	filename, ok := s.filename(w, r)
	if !ok {
		return
	}

	conv, err := s.conversations.Get(filename)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	filename, ok := s.filename(w, r)
	if !ok {
		return
	}

	var req SaveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Content) == 0 {
		writeError(w, http.StatusBadRequest, `request body must contain "content"`)
		return
	}

	// UseNumber keeps large integers in the document exact.
	dec := json.NewDecoder(bytes.NewReader(req.Content))
	dec.UseNumber()
	var content any
	if err := dec.Decode(&content); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid content: %v", err))
		return
	}

	if err := s.conversations.Save(filename, content); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	filename, ok := s.filename(w, r)
	if !ok {
		return
	}

	if err := s.conversations.Delete(filename); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleClearConversations(w http.ResponseWriter, r *http.Request) {
	if err := s.conversations.ClearAll(); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeSuccess(w)
}

// ============================================================================
// SETTINGS HANDLERS
// ============================================================================

func (s *Server) handleGetModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.settings.Models()
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleSaveModels(w http.ResponseWriter, r *http.Request) {
	var models map[string]string
	if !s.decodeBody(w, r, &models) {
		return
	}
	if err := s.settings.SaveModels(models); err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	modelID := r.PathValue("modelId")
	if modelID == "" {
		writeError(w, http.StatusBadRequest, "model id is required")
		return
	}
	if err := s.settings.DeleteModel(modelID); err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleGetAppearance(w http.ResponseWriter, r *http.Request) {
	a, err := s.settings.Appearance()
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleSaveAppearance(w http.ResponseWriter, r *http.Request) {
	a := settings.DefaultAppearance()
	if !s.decodeBody(w, r, &a) {
		return
	}
	if err := s.settings.SaveAppearance(a); err != nil {
		if errors.Is(err, settings.ErrInvalidAppearance) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeInternalError(w, r, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) handleGetPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.settings.Prompts()
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (s *Server) handleSavePrompts(w http.ResponseWriter, r *http.Request) {
	var prompts []settings.Prompt
	if !s.decodeBody(w, r, &prompts) {
		return
	}
	stored, err := s.settings.SavePrompts(prompts)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "prompts": stored})
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.DeletePrompt(r.PathValue("id")); err != nil {
		if errors.Is(err, settings.ErrPromptNotFound) {
			writeError(w, http.StatusNotFound, "Prompt not found")
			return
		}
		s.writeInternalError(w, r, err)
		return
	}
	writeSuccess(w)
}

// ============================================================================
// REQUEST HELPERS
// ============================================================================

// filename extracts and validates the {filename} path value, writing a 400
// when it is unusable.
func (s *Server) filename(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("filename")
	if err := storage.ValidateFilename(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return name, true
}

// decodeBody decodes a size-limited JSON body into v. On failure it writes a
// 400 (or 413 for an oversized body) and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		}
		return false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: trailing data")
		return false
	}
	return true
}

// writeStoreError maps a storage error to 404 for a missing conversation and
// 500 for everything else.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var storeErr *storage.Error
	if errors.As(err, &storeErr) && storeErr.Kind == storage.KindRead &&
		storeErr.Filename != "" && errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeInternalError(w, r, err)
}

func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Printf("HTTP_ERROR | id=%s method=%s path=%s error=%v",
		RequestID(r.Context()), r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
