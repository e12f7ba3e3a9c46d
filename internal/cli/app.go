// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Command execution.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/jeranaias/rigrun-chatstore/internal/config"
	"github.com/jeranaias/rigrun-chatstore/internal/settings"
	"github.com/jeranaias/rigrun-chatstore/internal/storage"
)

// App runs commands against the stores named by the configuration.
// Stdin, Stdout and Stderr may be replaced before Run.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	args Args

	cfg           *config.Config
	cfgPath       string
	logger        *log.Logger
	conversations *storage.ConversationStore
	settings      *settings.Store
}

// NewApp returns an App wired to the process's standard streams.
func NewApp(args Args) *App {
	return &App{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		args:   args,
	}
}

// commandNames maps commands to the name reported in JSON output.
var commandNames = map[Command]string{
	CmdHelp:    "help",
	CmdServe:   "serve",
	CmdList:    "list",
	CmdShow:    "show",
	CmdSave:    "save",
	CmdDelete:  "delete",
	CmdClear:   "clear",
	CmdDoctor:  "doctor",
	CmdWatch:   "watch",
	CmdExport:  "export",
	CmdImport:  "import",
	CmdSearch:  "search",
	CmdBrowse:  "browse",
	CmdShell:   "shell",
	CmdConfig:  "config",
	CmdVersion: "version",
	CmdUnknown: "unknown",
}

// Run executes cmd and returns the process exit code. Errors are displayed
// on Stderr, or as a JSON error response on Stdout in --json mode.
func (a *App) Run(cmd Command) int {
	err := a.dispatch(cmd)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	if a.args.JSON {
		DisplayError(a.Stdout, commandNames[cmd], err, true)
	} else {
		DisplayError(a.Stderr, commandNames[cmd], err, false)
	}
	return GetExitCode(err)
}

func (a *App) dispatch(cmd Command) error {
	switch cmd {
	case CmdHelp:
		PrintUsage(a.Stdout)
		return nil
	case CmdVersion:
		return a.handleVersion()
	case CmdUnknown:
		return a.handleUnknown()
	case CmdConfig:
		return a.HandleConfig()
	}

	if err := a.setup(); err != nil {
		return err
	}
	return a.runCommand(cmd)
}

// runCommand runs a command that needs the stores. setup must have run.
func (a *App) runCommand(cmd Command) error {
	switch cmd {
	case CmdServe:
		return a.HandleServe()
	case CmdList:
		return a.HandleList()
	case CmdShow:
		return a.HandleShow()
	case CmdSave:
		return a.HandleSave()
	case CmdDelete:
		return a.HandleDelete()
	case CmdClear:
		return a.HandleClear()
	case CmdDoctor:
		return a.HandleDoctor()
	case CmdWatch:
		return a.HandleWatch()
	case CmdExport:
		return a.HandleExport()
	case CmdImport:
		return a.HandleImport()
	case CmdSearch:
		return a.HandleSearch()
	case CmdBrowse:
		return a.HandleBrowse()
	case CmdShell:
		return a.HandleShell()
	default:
		return fmt.Errorf("unhandled command %d", cmd)
	}
}

// =============================================================================
// SETUP
// =============================================================================

// loadConfig resolves the configuration once: --config, else the default
// location, then --data-dir on top.
func (a *App) loadConfig() error {
	if a.cfg != nil {
		return nil
	}

	var cfg *config.Config
	var err error
	if a.args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(a.args.ConfigPath)
		a.cfgPath = a.args.ConfigPath
	} else {
		cfg, err = config.Load()
		a.cfgPath, _ = config.ConfigPath()
	}
	if err != nil {
		return &ConfigError{Err: err}
	}

	if a.args.DataDir != "" {
		cfg.DataDir = a.args.DataDir
	}
	a.cfg = cfg
	return nil
}

// setup loads configuration, builds the logger and opens both stores.
func (a *App) setup() error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	a.logger = newLogger(a.Stderr, a.args.Quiet, a.args.Verbose)

	conversations, err := storage.New(a.cfg.DataDir, storage.WithLogger(a.logger))
	if err != nil {
		return err
	}
	prefs, err := settings.New(a.cfg.DataDir)
	if err != nil {
		return err
	}
	a.conversations = conversations
	a.settings = prefs

	if a.args.Verbose {
		a.logger.Printf("STORE_OPEN | dir=%s", conversations.Dir())
	}
	return nil
}

// newLogger returns the logger handed to every component. --quiet
// discards log lines; --verbose adds microseconds and call sites.
func newLogger(w io.Writer, quiet, verbose bool) *log.Logger {
	if quiet {
		return log.New(io.Discard, "", 0)
	}
	flags := log.LstdFlags
	if verbose {
		flags |= log.Lmicroseconds | log.Lshortfile
	}
	return log.New(w, "", flags)
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// printJSON writes a successful JSON response for command.
func (a *App) printJSON(command string, data any) error {
	return NewJSONResponse(command, data).Print(a.Stdout)
}

// printf writes human output unless --quiet is set.
func (a *App) printf(format string, args ...any) {
	if a.args.Quiet {
		return
	}
	fmt.Fprintf(a.Stdout, format, args...)
}

// stdoutIsTerminal reports whether styled output should be written.
func (a *App) stdoutIsTerminal() bool {
	return isTerminal(a.Stdout) && ColorsEnabled()
}

// =============================================================================
// SMALL COMMANDS
// =============================================================================

func (a *App) handleVersion() error {
	if a.args.JSON {
		return a.printJSON("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		})
	}
	PrintVersion(a.Stdout)
	return nil
}

func (a *App) handleUnknown() error {
	name := ""
	if len(a.args.Raw) > 0 {
		name = a.args.Raw[0]
	}
	err := &ValidationError{Field: "command", Value: name, Reason: "unknown command"}
	if suggestion := SuggestCommand(name); suggestion != "" {
		err.Example = "chatstore " + suggestion
	} else {
		err.Example = "chatstore help"
	}
	return err
}
