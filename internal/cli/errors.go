// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, exit codes, and error display for CLI commands.
//
// Handlers ALWAYS return errors; App.Run displays them once and maps them
// to an exit code.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/jeranaias/rigrun-chatstore/internal/config"
	"github.com/jeranaias/rigrun-chatstore/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNotFoundError indicates a conversation or file was not found
	ExitNotFoundError = 4
	// ExitStorageError indicates the store could not be read or written
	ExitStorageError = 5
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid usage (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a missing conversation or file.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError wraps a failure to load or save configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// ErrMissingArgument creates an error for a missing required argument.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrInvalidValue creates an error for a malformed argument value.
func ErrInvalidValue(field, value string, err error) error {
	return &ValidationError{Field: field, Value: value, Reason: err.Error()}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) || errors.Is(err, fs.ErrNotExist) {
		return ExitNotFoundError
	}

	var configErr *ConfigError
	if errors.As(err, &configErr) || config.IsValidationError(err) {
		return ExitConfigError
	}

	var storeErr *storage.Error
	if errors.As(err, &storeErr) {
		return ExitStorageError
	}

	return ExitGeneralError
}

// errorType names the error category in JSON output.
func errorType(err error) string {
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var configErr *ConfigError
	var storeErr *storage.Error
	switch {
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.As(err, &notFoundErr), errors.Is(err, fs.ErrNotExist):
		return "not_found_error"
	case errors.As(err, &configErr):
		return "config_error"
	case errors.As(err, &storeErr):
		return "storage_error"
	default:
		return "generic_error"
	}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err in a consistent format: a JSON error response
// in JSON mode, otherwise a styled line.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		resp := NewJSONErrorResponse(command, err)
		resp.ErrorType = errorType(err)
		resp.Print(w)
		return
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// ExitError ends a command with Code after it has already reported its
// own outcome. Run does not display it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
