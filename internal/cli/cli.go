// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for chatstore.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdServe
	CmdList
	CmdShow
	CmdSave
	CmdDelete
	CmdClear
	CmdDoctor
	CmdWatch
	CmdExport
	CmdImport
	CmdSearch
	CmdBrowse
	CmdShell
	CmdConfig
	CmdVersion
	CmdUnknown
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	ConfigPath string // --config
	DataDir    string // --data-dir

	// Subcommand is the first positional argument after the command.
	Subcommand string

	// Raw holds the arguments after the command name, flags included.
	// For CmdUnknown it starts with the unrecognized command.
	Raw []string
}

const usageText = `chatstore - file-backed conversation store for chat clients

Conversations are kept as one JSON file each, plus an index.json listing
them newest first. The HTTP API serves the desktop client; the commands
below inspect and maintain the same directory.

Usage:
  chatstore serve                   Start the HTTP API (default port 3000)
    --host HOST                     Bind address (default: 127.0.0.1)
    --port N                        Listen port
    --no-watch                      Do not watch for external edits
  chatstore list, ls                List conversations, newest first
  chatstore show <file>             Print a conversation as JSON
    --markdown, --md                Render the transcript as Markdown
  chatstore save <file>             Store JSON read from stdin
    --file PATH                     Read the JSON from PATH instead
  chatstore delete, rm <file>       Delete a conversation
  chatstore clear                   Delete every listed conversation
    --confirm                       Skip the confirmation prompt
  chatstore search <text>           Find conversations containing text
    --limit N                       Stop after N matches
  chatstore browse                  Interactive conversation browser
  chatstore shell                   Interactive prompt with history
  chatstore watch                   Print changes to the store as they happen
  chatstore doctor [--fix]          Compare index.json with the directory
  chatstore export <path|->         Write a backup (- for stdout)
    --format json|sqlite|markdown   Format (default: from extension)
  chatstore import <path|->         Replay a json or sqlite backup
    --format json|sqlite            Format (default: from extension)
  chatstore config [show|path]      Show the configuration or its file
  chatstore config init|reset       Write a config file with the defaults
  chatstore config set <key> <val>  Change one setting in the config file
  chatstore version                 Version information

Global Flags:
  --config PATH     Config file (default: ~/.chatstore/config.toml)
  --data-dir DIR    App data directory (overrides config)
  --json            Output in JSON format
  -q, --quiet       Minimal output
  -v, --verbose     Debug logging

Environment:
  CHATSTORE_DATA_DIR, CHATSTORE_HOST, CHATSTORE_PORT, CHATSTORE_WATCH
  NO_COLOR, FORCE_COLOR

Examples:
  chatstore serve --port 3001
  chatstore show 2024-05-06_07-08-09.json --md
  cat chat.json | chatstore save 2024-05-06_07-08-09.json
  chatstore export backup.db
  chatstore clear --confirm

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "chatstore version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses os.Args and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses command-line arguments, excluding the program name.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdHelp, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining
	if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
		parsedArgs.Subcommand = remaining[0]
	}

	switch cmd {
	case "serve", "server":
		return CmdServe, parsedArgs
	case "list", "ls":
		return CmdList, parsedArgs
	case "show", "get", "cat":
		return CmdShow, parsedArgs
	case "save", "put":
		return CmdSave, parsedArgs
	case "delete", "rm":
		return CmdDelete, parsedArgs
	case "clear":
		return CmdClear, parsedArgs
	case "doctor", "check":
		return CmdDoctor, parsedArgs
	case "watch":
		return CmdWatch, parsedArgs
	case "export", "backup":
		return CmdExport, parsedArgs
	case "import", "restore":
		return CmdImport, parsedArgs
	case "search", "find":
		return CmdSearch, parsedArgs
	case "browse", "tui":
		return CmdBrowse, parsedArgs
	case "shell", "repl":
		return CmdShell, parsedArgs
	case "config":
		return CmdConfig, parsedArgs
	case "version", "--version":
		return CmdVersion, parsedArgs
	case "help", "-h", "--help":
		return CmdHelp, parsedArgs
	default:
		parsedArgs.Raw = append([]string{cmd}, remaining...)
		parsedArgs.Subcommand = ""
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
// Global flags may appear before or after the command.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		case "--data-dir":
			if i+1 < len(args) {
				i++
				parsedArgs.DataDir = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--data-dir="):
				parsedArgs.DataDir = strings.TrimPrefix(arg, "--data-dir=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}
