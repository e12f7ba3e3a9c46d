// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for chatstore.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed global flags plus the command's remaining arguments
//   - App: Executes commands against the configured stores
//
// # Usage
//
//	cmd, args := cli.Parse()
//	app := cli.NewApp(args)
//	os.Exit(app.Run(cmd))
//
// All commands support --json for machine-readable output.
package cli
