// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support.
//
// Every command prints the same envelope in --json mode so scripts can
// check "success" before reading "data".
package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/rigrun-chatstore/internal/export"
	"github.com/jeranaias/rigrun-chatstore/internal/search"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	ErrorType string  `json:"error_type,omitempty"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// ListData is returned by list.
type ListData struct {
	Conversations []export.Summary `json:"conversations"`
	Missing       []string         `json:"missing,omitempty"`
}

// ChangeData is returned by save and delete.
type ChangeData struct {
	Filename string `json:"filename"`
	Action   string `json:"action"`
}

// ClearData is returned by clear.
type ClearData struct {
	Deleted int `json:"deleted"`
}

// SearchData is returned by search.
type SearchData struct {
	Query   string         `json:"query"`
	Matches []search.Match `json:"matches"`
}

// DoctorData represents the data returned by the doctor command.
type DoctorData struct {
	Checks  []DoctorCheck `json:"checks"`
	Summary DoctorSummary `json:"summary"`
}

// DoctorCheck represents a single health check result.
type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "pass", "warn", "fail"
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

// DoctorSummary contains the summary of health checks.
type DoctorSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

// ConfigData is returned by config show.
type ConfigData struct {
	Path   string `json:"config_path"`
	Exists bool   `json:"exists"`
	Config any    `json:"config"`
}

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}
