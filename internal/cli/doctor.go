// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for chatstore.
//
// Command: doctor [--fix]
//
// Health Checks Performed:
//  1. Data Directory    - conversations directory exists and is writable
//  2. Index             - index.json parses as an array of filenames
//  3. Dangling Entries  - index entries whose file is gone
//  4. Duplicate Entries - filenames listed more than once
//  5. Unindexed Files   - conversation files List cannot see
//  6. Settings          - models.json, appearance.json and prompts.json load
//
// --fix drops dangling and duplicate index entries, or rebuilds an index that
// no longer parses from the files on disk. Files are never touched.
//
// Exit Codes:
//
//	0   No check failed (warnings allowed)
//	1   One or more checks failed
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/rigrun-chatstore/internal/storage"
	"github.com/jeranaias/rigrun-chatstore/internal/util"
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with warnings.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

// String returns the JSON name of the status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // Suggested fix command or instruction
}

// Render returns a formatted line for the check, plus the fix hint when
// the check did not pass.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s %s", RenderStatus(c.Status.String()), HeaderStyle.Render(c.Name+":"), ValueStyle.Render(c.Message))
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n" + DimStyle.Render("    -> "+c.Fix)
	}
	return result
}

// =============================================================================
// HANDLE DOCTOR
// =============================================================================

// HandleDoctor handles "doctor [--fix]".
func (a *App) HandleDoctor() error {
	p := NewArgParser(a.args.Raw)
	fix := p.BoolFlag("fix") || a.args.Subcommand == "fix"

	checks := a.runChecks(fix)

	var summary DoctorSummary
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			summary.Passed++
		case CheckWarn:
			summary.Warned++
		case CheckFail:
			summary.Failed++
		}
	}
	summary.Healthy = summary.Failed == 0

	if a.args.JSON {
		data := DoctorData{Checks: make([]DoctorCheck, len(checks)), Summary: summary}
		for i, c := range checks {
			data.Checks[i] = DoctorCheck{Name: c.Name, Status: c.Status.String(), Message: c.Message, Fix: c.Fix}
		}
		if err := a.printJSON("doctor", data); err != nil {
			return err
		}
	} else {
		a.renderDoctor(checks, summary)
	}

	if summary.Failed > 0 {
		return &ExitError{Code: ExitGeneralError}
	}
	return nil
}

func (a *App) renderDoctor(checks []HealthCheck, summary DoctorSummary) {
	out := a.Stdout
	fmt.Fprintln(out, TitleStyle.Render("chatstore doctor"))
	fmt.Fprintln(out, DimStyle.Render(a.conversations.Dir()))
	fmt.Fprintln(out, RenderSeparator(41))

	for _, c := range checks {
		fmt.Fprintln(out, c.Render())
	}

	fmt.Fprintln(out, RenderSeparator(41))
	parts := []string{fmt.Sprintf("%d passed", summary.Passed)}
	if summary.Warned > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", summary.Warned)))
	}
	if summary.Failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", summary.Failed)))
	}
	fmt.Fprintln(out, strings.Join(parts, ", "))
}

// runChecks runs every check in order. With fix set, the index is
// repaired and the dangling and duplicate checks report what was removed.
func (a *App) runChecks(fix bool) []HealthCheck {
	checks := []HealthCheck{checkDataDir(a.conversations.Dir())}

	var report *storage.Report
	var err error
	if fix {
		report, err = a.conversations.Repair()
	} else {
		report, err = a.conversations.Check()
	}

	switch {
	case err != nil && fix && errors.Is(err, storage.ErrRead):
		checks = append(checks, a.rebuildCheck(err))
	case err != nil:
		checks = append(checks, HealthCheck{
			Name:    "Index",
			Status:  CheckFail,
			Message: err.Error(),
			Fix:     "chatstore doctor --fix rebuilds the index from the files on disk",
		})
	default:
		checks = append(checks,
			HealthCheck{Name: "Index", Status: CheckPass, Message: fmt.Sprintf("%d entries", report.Indexed)},
			driftCheck("Dangling Entries", report.Dangling, fix, "entries without a file"),
			driftCheck("Duplicate Entries", report.Duplicates, fix, "filenames listed twice"),
			unindexedCheck(report.Unindexed),
		)
	}

	return append(checks, a.checkSettings())
}

// rebuildCheck replaces an unreadable index with the files on disk.
func (a *App) rebuildCheck(cause error) HealthCheck {
	index, err := a.conversations.RebuildIndex()
	if err != nil {
		return HealthCheck{Name: "Index", Status: CheckFail, Message: err.Error(), Fix: "check the permissions of " + a.conversations.Dir()}
	}
	a.logger.Printf("INDEX_UNREADABLE | error=%v", cause)
	return HealthCheck{Name: "Index", Status: CheckPass, Message: fmt.Sprintf("rebuilt with %d entries", len(index))}
}

func checkDataDir(dir string) HealthCheck {
	check := HealthCheck{Name: "Data Directory"}
	f, err := os.CreateTemp(dir, util.TempPrefix+"doctor-*")
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("not writable: %v", err)
		check.Fix = "check the permissions of " + dir
		return check
	}
	f.Close()
	os.Remove(f.Name())

	check.Status = CheckPass
	check.Message = "writable"
	return check
}

// driftCheck reports index entries --fix can drop.
func driftCheck(name string, found []string, fixed bool, what string) HealthCheck {
	check := HealthCheck{Name: name}
	switch {
	case len(found) == 0:
		check.Status = CheckPass
		check.Message = "none"
	case fixed:
		check.Status = CheckPass
		check.Message = fmt.Sprintf("removed %d: %s", len(found), listPreview(found))
	default:
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("%d %s: %s", len(found), what, listPreview(found))
		check.Fix = "chatstore doctor --fix"
	}
	return check
}

func unindexedCheck(found []string) HealthCheck {
	if len(found) == 0 {
		return HealthCheck{Name: "Unindexed Files", Status: CheckPass, Message: "none"}
	}
	return HealthCheck{
		Name:    "Unindexed Files",
		Status:  CheckWarn,
		Message: fmt.Sprintf("%d not visible to list: %s", len(found), listPreview(found)),
		Fix:     "save them again with chatstore save <file> --file <path>",
	}
}

func (a *App) checkSettings() HealthCheck {
	check := HealthCheck{Name: "Settings"}
	var problems []string
	if _, err := a.settings.Models(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := a.settings.Appearance(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := a.settings.Prompts(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		check.Status = CheckFail
		check.Message = strings.Join(problems, "; ")
		check.Fix = "fix or delete the file; defaults are recreated on next start"
		return check
	}
	check.Status = CheckPass
	check.Message = "models, appearance and prompts load"
	return check
}

// listPreview joins up to three names.
func listPreview(names []string) string {
	const shown = 3
	if len(names) <= shown {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s, and %d more", strings.Join(names[:shown], ", "), len(names)-shown)
}
