// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// backup.go - Export and import commands.
//
// Command: export <path|-> [--format json|sqlite|markdown]
// Command: import <path|-> [--format json|sqlite]
//
// The format defaults from the file extension (.db, .sqlite and .md are
// recognized; anything else is JSON). "-" streams through stdout or stdin
// and is limited to the JSON and markdown formats.
package cli

import (
	"fmt"

	"github.com/jeranaias/rigrun-chatstore/internal/export"
)

const stdioPath = "-"

// backupFormat resolves --format, falling back to the path's extension.
func backupFormat(p *ArgParser, path string) (export.Format, error) {
	if name := p.Flag("format"); name != "" {
		format, err := export.ParseFormat(name)
		if err != nil {
			return "", ErrInvalidValue("format", name, err)
		}
		return format, nil
	}
	if path == stdioPath {
		return export.FormatJSON, nil
	}
	return export.FormatFromPath(path), nil
}

// HandleExport handles "export".
func (a *App) HandleExport() error {
	p := NewArgParser(a.args.Raw, "format")
	path := p.Positional(0)
	if path == "" {
		return ErrMissingArgument("path", "chatstore export backup.db")
	}
	format, err := backupFormat(p, path)
	if err != nil {
		return err
	}

	var result *export.Result
	if path == stdioPath {
		if a.args.JSON {
			return &ValidationError{Field: "path", Value: path, Reason: "cannot stream an export with --json"}
		}
		result, err = export.Export(a.conversations, a.Stdout, format)
	} else {
		result, err = export.ExportFile(a.conversations, path, format)
	}
	if err != nil {
		return err
	}
	a.logger.Printf("EXPORT | format=%s count=%d skipped=%d", result.Format, result.Count, len(result.Skipped))

	if path == stdioPath {
		return nil
	}
	return a.printResult("export", "Exported", result)
}

// HandleImport handles "import". Existing conversations with the same
// filename are replaced.
func (a *App) HandleImport() error {
	p := NewArgParser(a.args.Raw, "format")
	path := p.Positional(0)
	if path == "" {
		return ErrMissingArgument("path", "chatstore import backup.json")
	}
	format, err := backupFormat(p, path)
	if err != nil {
		return err
	}

	var result *export.Result
	if path == stdioPath {
		if format != export.FormatJSON {
			return &ValidationError{Field: "format", Value: string(format), Reason: "only json can be read from stdin"}
		}
		result, err = export.Import(a.conversations, a.Stdin)
	} else {
		result, err = export.ImportFile(a.conversations, path, format)
	}
	if err != nil {
		if result != nil && result.Count > 0 {
			return fmt.Errorf("imported %d conversations before failing: %w", result.Count, err)
		}
		return err
	}
	a.logger.Printf("IMPORT | format=%s count=%d", result.Format, result.Count)

	return a.printResult("import", "Imported", result)
}

func (a *App) printResult(command, verb string, result *export.Result) error {
	if a.args.JSON {
		return a.printJSON(command, result)
	}

	where := ""
	if result.Location != "" {
		where = " " + DimStyle.Render("("+result.Location+")")
	}
	a.printf("%s %s %d conversations as %s%s\n", SuccessStyle.Render("[OK]"), verb, result.Count, result.Format, where)
	for _, name := range result.Skipped {
		a.printf("  %s %s\n", WarningStyle.Render("skipped"), name)
	}
	return nil
}
