// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// shell.go - Interactive command shell.
//
// Command: shell
//
// Reads store commands with line editing and history (arrow keys, Ctrl+R
// search, Tab completion of command names). History is kept in
// ~/.chatstore/shell_history with 0600 permissions.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/rigrun-chatstore/internal/config"
	"github.com/jeranaias/rigrun-chatstore/internal/ui/styles"
)

const shellPrompt = "chatstore> "

var shellPromptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)

// shellCommands are the commands the shell accepts, by primary name.
var shellCommands = map[Command]bool{
	CmdList:    true,
	CmdShow:    true,
	CmdDelete:  true,
	CmdClear:   true,
	CmdSearch:  true,
	CmdDoctor:  true,
	CmdExport:  true,
	CmdImport:  true,
	CmdVersion: true,
}

const shellHelp = `Commands:
  ls                      List conversations
  show <file> [--md]      Print a conversation
  rm <file>...            Delete conversations
  clear                   Delete every conversation (asks first)
  search <text>           Search titles and messages
  doctor [--fix]          Check the index
  export <path>           Write a backup
  import <path>           Restore a backup
  version                 Show version
  help                    Show this help
  exit                    Leave the shell
`

// lineReader is the part of liner.State the shell uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// Shell runs commands read from a lineReader against an App whose stores
// are already open.
type Shell struct {
	app   *App
	input lineReader
}

// NewShell returns a shell reading from input.
func NewShell(app *App, input lineReader) *Shell {
	return &Shell{app: app, input: input}
}

// Run reads and executes lines until exit, EOF or Ctrl+C.
func (s *Shell) Run() error {
	for {
		line, err := s.input.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.app.Stdout)
				return nil
			}
			return err
		}
		if s.Exec(line) {
			return nil
		}
	}
}

// Exec runs one line and reports whether the shell should exit. Command
// errors are displayed, never returned.
func (s *Shell) Exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		fmt.Fprint(s.app.Stdout, shellHelp)
		return false
	}

	cmd, args := ParseArgs(fields)
	args.JSON = args.JSON || s.app.args.JSON
	args.Quiet = args.Quiet || s.app.args.Quiet
	args.Verbose = args.Verbose || s.app.args.Verbose

	sub := *s.app
	sub.args = args
	// Confirmation is asked through the shell's own prompt.
	sub.Stdin = strings.NewReader("")

	var err error
	switch {
	case cmd == CmdUnknown:
		err = sub.handleUnknown()
	case !shellCommands[cmd]:
		err = &ValidationError{Field: "command", Value: fields[0], Reason: "not available in the shell", Example: "chatstore " + fields[0]}
	case cmd == CmdVersion:
		err = sub.handleVersion()
	case cmd == CmdClear && !NewArgParser(args.Raw).BoolFlag("confirm", "yes", "y"):
		if !s.confirm("Delete all conversations? [y/N]: ") {
			fmt.Fprintln(s.app.Stdout, "Cancelled.")
			return false
		}
		sub.args.Raw = append(append([]string{}, args.Raw...), "--confirm")
		err = sub.runCommand(cmd)
	default:
		err = sub.runCommand(cmd)
	}

	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		DisplayError(s.app.Stderr, commandNames[cmd], err, args.JSON)
	}
	return false
}

func (s *Shell) confirm(question string) bool {
	answer, err := s.input.Prompt(question)
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// =============================================================================
// HANDLE SHELL
// =============================================================================

// HandleShell handles "shell".
func (a *App) HandleShell() error {
	if !isTerminal(a.Stdin) || !isTerminal(a.Stdout) {
		return &TTYRequiredError{Operation: "start the shell"}
	}

	hl := newHistoryLiner()
	defer hl.Close()

	fmt.Fprintln(a.Stdout, shellPromptStyle.Render("chatstore shell")+" "+DimStyle.Render(a.conversations.Dir()))
	fmt.Fprintln(a.Stdout, DimStyle.Render("Type help for commands, exit or Ctrl+D to leave."))

	return NewShell(a, hl).Run()
}

// historyLiner wraps liner with a persistent history file.
type historyLiner struct {
	line        *liner.State
	historyFile string
}

func newHistoryLiner() *historyLiner {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetTabCompletionStyle(liner.TabPrints)
	line.SetCompleter(completeCommand)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	h := &historyLiner{line: line, historyFile: filepath.Join(configDir, "shell_history")}

	if f, err := os.Open(h.historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return h
}

// Prompt reads a line and records non-empty input in history.
func (h *historyLiner) Prompt(prompt string) (string, error) {
	input, err := h.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		h.line.AppendHistory(input)
	}
	return input, nil
}

// Close writes history with owner-only permissions and restores the terminal.
func (h *historyLiner) Close() {
	if err := os.MkdirAll(filepath.Dir(h.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(h.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			h.line.WriteHistory(f)
			f.Close()
		}
	}
	h.line.Close()
}

// completeCommand completes the first word of a line.
func completeCommand(line string) []string {
	if strings.ContainsRune(line, ' ') {
		return nil
	}
	words := []string{"ls", "show", "rm", "clear", "search", "doctor", "export", "import", "version", "help", "exit"}
	var out []string
	for _, w := range words {
		if strings.HasPrefix(w, strings.ToLower(line)) {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
