// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation handling for destructive commands.
//
// The pattern:
//  1. If --confirm is present, proceed without prompting
//  2. In --json mode, require --confirm (no interactive prompts)
//  3. If stdin is not a TTY, require --confirm (can't prompt)
//  4. Otherwise, prompt y/N
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ConfirmationOptions describes how a destructive command was invoked.
type ConfirmationOptions struct {
	// ConfirmFlag indicates --confirm was passed
	ConfirmFlag bool
	// JSONMode indicates --json was passed
	JSONMode bool
}

// ErrConfirmationRequired is returned when a prompt is impossible and
// --confirm was not given.
var ErrConfirmationRequired = errors.New("confirmation required: use --confirm")

// requireConfirmation asks before running action. interactive reports
// whether in is a terminal.
func requireConfirmation(in io.Reader, out io.Writer, interactive bool, action string, opts ConfirmationOptions) (bool, error) {
	if opts.ConfirmFlag {
		return true, nil
	}
	if opts.JSONMode {
		return false, fmt.Errorf("%w (JSON mode cannot prompt)", ErrConfirmationRequired)
	}
	if !interactive {
		return false, fmt.Errorf("%w (stdin is not a terminal)", ErrConfirmationRequired)
	}
	return promptYesNo(in, out, action)
}

// promptYesNo prints a y/N question and reads one line. Only "y" and "yes"
// confirm.
func promptYesNo(in io.Reader, out io.Writer, action string) (bool, error) {
	fmt.Fprintf(out, "Are you sure you want to %s? [y/N]: ", action)

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}
