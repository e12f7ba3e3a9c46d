// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations.go - list, show, save, delete, clear, search and browse.
package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/jeranaias/rigrun-chatstore/internal/export"
	"github.com/jeranaias/rigrun-chatstore/internal/search"
	"github.com/jeranaias/rigrun-chatstore/internal/storage"
	"github.com/jeranaias/rigrun-chatstore/internal/ui/browse"
	"github.com/jeranaias/rigrun-chatstore/internal/ui/render"
	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

// maxSaveInput bounds what save reads from stdin or --file.
const maxSaveInput = 64 << 20

// =============================================================================
// LIST
// =============================================================================

// Column widths of the list table.
const (
	colIndex    = 4
	colFilename = 28
	colTitle    = 36
	colModel    = 28
)

// HandleList handles "list": every indexed conversation, newest first.
func (a *App) HandleList() error {
	names, err := a.conversations.List()
	if err != nil {
		return err
	}

	data := ListData{Conversations: make([]export.Summary, 0, len(names))}
	for _, name := range names {
		conv, err := a.conversations.Get(name)
		if err != nil {
			if errors.Is(err, storage.ErrRead) {
				data.Missing = append(data.Missing, name)
				data.Conversations = append(data.Conversations, export.Summary{Filename: name})
				continue
			}
			return err
		}
		data.Conversations = append(data.Conversations, export.Summarize(conv))
	}

	if a.args.JSON {
		return a.printJSON("list", data)
	}
	if a.args.Quiet {
		for _, name := range names {
			fmt.Fprintln(a.Stdout, name)
		}
		return nil
	}

	if len(names) == 0 {
		fmt.Fprintln(a.Stdout, DimStyle.Render("No conversations."))
		return nil
	}

	missing := make(map[string]bool, len(data.Missing))
	for _, name := range data.Missing {
		missing[name] = true
	}

	header := util.PadRight("#", colIndex) +
		util.PadRight("FILENAME", colFilename) + "  " +
		util.PadRight("TITLE", colTitle) + "  " +
		util.PadRight("MODEL", colModel) + "  MSGS"
	fmt.Fprintln(a.Stdout, HeaderStyle.Render(header))
	fmt.Fprintln(a.Stdout, RenderSeparator(util.StringWidth(header)))

	for i, s := range data.Conversations {
		title := s.Title
		if missing[s.Filename] {
			title = WarningStyle.Render("(file missing)")
		}
		row := util.PadRight(strconv.Itoa(i+1), colIndex) +
			cell(s.Filename, colFilename) + "  " +
			cell(title, colTitle) + "  " +
			cell(s.Model, colModel) + "  " +
			strconv.Itoa(s.Messages)
		fmt.Fprintln(a.Stdout, row)
	}

	fmt.Fprintln(a.Stdout)
	fmt.Fprintln(a.Stdout, DimStyle.Render(fmt.Sprintf("%d conversations in %s", len(names), a.conversations.Dir())))
	return nil
}

// cell fits s into width columns on a single line.
func cell(s string, width int) string {
	return util.PadRight(util.TruncateWidth(util.OneLine(s), width), width)
}

// =============================================================================
// SHOW
// =============================================================================

// HandleShow handles "show <filename> [--markdown]".
func (a *App) HandleShow() error {
	p := NewArgParser(a.args.Raw)
	filename := p.Positional(0)
	if filename == "" {
		return ErrMissingArgument("filename", "chatstore show 2024-05-06_07-08-09.json")
	}

	conv, err := a.getConversation(filename)
	if err != nil {
		return err
	}

	if a.args.JSON {
		return a.printJSON("show", conv)
	}

	if p.BoolFlag("markdown", "md") {
		md := export.Markdown(conv)
		if a.stdoutIsTerminal() {
			md = render.Markdown(md, terminalWidth(a.Stdout))
		}
		fmt.Fprint(a.Stdout, md)
		return nil
	}

	var out string
	if a.stdoutIsTerminal() {
		out, err = render.HighlightJSON(conv.Content)
	} else {
		out, err = render.PrettyJSON(conv.Content)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Stdout, out)
	return nil
}

// getConversation validates filename and loads it, turning a missing file
// into a NotFoundError.
func (a *App) getConversation(filename string) (*storage.Conversation, error) {
	if err := storage.ValidateFilename(filename); err != nil {
		return nil, ErrInvalidValue("filename", filename, err)
	}
	conv, err := a.conversations.Get(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Resource: "conversation", ID: filename}
		}
		return nil, err
	}
	return conv, nil
}

// =============================================================================
// SAVE / DELETE / CLEAR
// =============================================================================

// HandleSave handles "save <filename> [--file PATH]". The document is read
// from PATH or stdin and must be a single JSON value.
func (a *App) HandleSave() error {
	p := NewArgParser(a.args.Raw, "file", "f")
	filename := p.Positional(0)
	if filename == "" {
		return ErrMissingArgument("filename", "chatstore save chat.json --file ./chat.json")
	}
	if err := storage.ValidateFilename(filename); err != nil {
		return ErrInvalidValue("filename", filename, err)
	}

	var in io.Reader = a.Stdin
	source := p.FlagOrDefault("file", p.Flag("f"))
	if source != "" && source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	content, err := decodeDocument(in)
	if err != nil {
		return err
	}
	if err := a.conversations.Save(filename, content); err != nil {
		return err
	}

	if a.args.JSON {
		return a.printJSON("save", ChangeData{Filename: filename, Action: "saved"})
	}
	a.printf("%s %s\n", SuccessStyle.Render("Saved"), filename)
	return nil
}

// decodeDocument reads exactly one JSON value, keeping numbers exact.
func decodeDocument(r io.Reader) (any, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSaveInput+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) > maxSaveInput {
		return nil, &ValidationError{Field: "input", Reason: fmt.Sprintf("larger than %d bytes", maxSaveInput)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ValidationError{Field: "input", Reason: "empty document"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var content any
	if err := dec.Decode(&content); err != nil {
		return nil, &ValidationError{Field: "input", Reason: "not valid JSON: " + err.Error()}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ValidationError{Field: "input", Reason: "trailing data after JSON document"}
	}
	return content, nil
}

// HandleDelete handles "delete <filename>". Unknown filenames succeed.
func (a *App) HandleDelete() error {
	p := NewArgParser(a.args.Raw)
	filenames := p.PositionalFrom(0)
	if len(filenames) == 0 {
		return ErrMissingArgument("filename", "chatstore delete 2024-05-06_07-08-09.json")
	}

	for _, filename := range filenames {
		if err := storage.ValidateFilename(filename); err != nil {
			return ErrInvalidValue("filename", filename, err)
		}
	}
	for _, filename := range filenames {
		if err := a.conversations.Delete(filename); err != nil {
			return err
		}
	}

	if a.args.JSON {
		changes := make([]ChangeData, len(filenames))
		for i, f := range filenames {
			changes[i] = ChangeData{Filename: f, Action: "deleted"}
		}
		return a.printJSON("delete", changes)
	}
	for _, f := range filenames {
		a.printf("%s %s\n", SuccessStyle.Render("Deleted"), f)
	}
	return nil
}

// HandleClear handles "clear [--confirm]".
func (a *App) HandleClear() error {
	p := NewArgParser(a.args.Raw)

	names, err := a.conversations.List()
	if err != nil {
		return err
	}

	action := fmt.Sprintf("delete all %d conversations", len(names))
	ok, err := requireConfirmation(a.Stdin, a.Stdout, isTerminal(a.Stdin), action, ConfirmationOptions{
		ConfirmFlag: p.BoolFlag("confirm", "yes", "y"),
		JSONMode:    a.args.JSON,
	})
	if err != nil {
		return err
	}
	if !ok {
		a.printf("Cancelled.\n")
		return nil
	}

	if err := a.conversations.ClearAll(); err != nil {
		return err
	}

	if a.args.JSON {
		return a.printJSON("clear", ClearData{Deleted: len(names)})
	}
	a.printf("%s %d conversations\n", SuccessStyle.Render("Cleared"), len(names))
	return nil
}

// =============================================================================
// SEARCH / BROWSE
// =============================================================================

// HandleSearch handles "search <text> [--limit N]".
func (a *App) HandleSearch() error {
	p := NewArgParser(a.args.Raw, "limit", "n")
	query := strings.Join(p.PositionalFrom(0), " ")
	if strings.TrimSpace(query) == "" {
		return ErrMissingArgument("query", `chatstore search "release notes"`)
	}

	limit := 0
	if raw := p.FlagOrDefault("limit", p.Flag("n")); raw != "" {
		n, err := ParsePositiveInt(raw, "limit")
		if err != nil {
			return ErrInvalidValue("limit", raw, err)
		}
		limit = n
	}

	matches, err := search.Search(a.conversations, query, limit)
	if err != nil {
		return err
	}

	if a.args.JSON {
		if matches == nil {
			matches = []search.Match{}
		}
		return a.printJSON("search", SearchData{Query: query, Matches: matches})
	}

	if len(matches) == 0 {
		a.printf("%s\n", DimStyle.Render("No matches."))
		return nil
	}
	for _, m := range matches {
		if a.args.Quiet {
			fmt.Fprintln(a.Stdout, m.Filename)
			continue
		}
		where := m.Field
		if m.Message >= 0 {
			where = fmt.Sprintf("%s #%d", m.Field, m.Message+1)
		}
		fmt.Fprintf(a.Stdout, "%s  %s\n    %s\n",
			TitleStyle.Render(m.Filename), DimStyle.Render(where), HighlightStyle.Render(m.Snippet))
	}
	return nil
}

// HandleBrowse handles "browse": the interactive conversation browser.
func (a *App) HandleBrowse() error {
	if !isTerminal(a.Stdin) || !isTerminal(a.Stdout) {
		return &TTYRequiredError{Operation: "browse conversations"}
	}
	return browse.Run(a.conversations)
}
