// output.go holds the report types shared by apply and check and the
// helpers that print them as coloured text or JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

// Status line colours. fatih/color disables them automatically when
// NO_COLOR is set or the output is not a terminal.
var (
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed, color.Bold)
)

// File actions reported by apply.
const (
	actionUpdated     = "updated"
	actionUpToDate    = "up-to-date"
	actionWouldUpdate = "would-update"
)

// patchReport is the outcome of one recipe entry.
type patchReport struct {
	// Name is the patch name, or its path when the recipe gives none.
	Name string `json:"name"`

	// Path is the target file relative to the recipe root.
	Path string `json:"path"`

	Status  model.Status `json:"status"`
	Message string       `json:"message"`

	// Region is the located block in the document the patch ran against.
	// Nil when the patch failed.
	Region *model.Region `json:"region,omitempty"`

	// Changed is false when the replacement was already in place.
	Changed bool `json:"changed"`
}

// fileReport is the outcome for one target file after all its patches.
type fileReport struct {
	Path string `json:"path"`

	// Action is one of actionUpdated, actionUpToDate or actionWouldUpdate.
	Action string `json:"action"`

	// Added and Removed count changed lines between the original and the result.
	Added   int `json:"added"`
	Removed int `json:"removed"`

	BackupPath string `json:"backupPath,omitempty"`

	// Warning is set when the file was written while git could not restore it.
	Warning string `json:"warning,omitempty"`

	// Diff is the unified diff, present only with --diff.
	Diff string `json:"diff,omitempty"`
}

// runReport is the JSON document printed by apply and check.
type runReport struct {
	Recipe  string        `json:"recipe"`
	Root    string        `json:"root"`
	DryRun  bool          `json:"dryRun,omitempty"`
	Patches []patchReport `json:"patches"`
	Files   []fileReport  `json:"files,omitempty"`
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(data))
}

// printFileReportText prints the human-readable line for a file.
func printFileReportText(w io.Writer, f fileReport) {
	if f.Diff != "" {
		_, _ = fmt.Fprint(w, f.Diff)
	}

	switch f.Action {
	case actionUpdated:
		_, _ = successColor.Fprintf(w, "Successfully updated %s\n", f.Path)
		if f.BackupPath != "" {
			_, _ = fmt.Fprintf(w, "  backup: %s\n", f.BackupPath)
		}
	case actionWouldUpdate:
		_, _ = infoColor.Fprintf(w, "Would update %s (+%d -%d)\n", f.Path, f.Added, f.Removed)
	case actionUpToDate:
		_, _ = fmt.Fprintf(w, "%s already up to date\n", f.Path)
	}
}

// printPatchReportText prints one row of the check table.
//
//	ok    auth-badge   Views/ServerDetailSheet.swift   lines 12-40
//	FAIL  server-row   Views/ProjectDetailView.swift   anchor "beginDrag(" not found ...
func printPatchReportText(w io.Writer, p patchReport) {
	detail := p.Message
	if p.Region != nil {
		detail = p.Region.String()
		if !p.Changed {
			detail += " (up to date)"
		}
	}

	label := successColor.Sprint("ok  ")
	if p.Status.IsFailure() {
		label = failColor.Sprint("FAIL")
	}
	_, _ = fmt.Fprintf(w, "%s  %-20s %-40s %s\n", label, p.Name, p.Path, detail)
}

// printWarning writes a yellow warning line.
func printWarning(w io.Writer, format string, args ...interface{}) {
	_, _ = warningColor.Fprintf(w, "Warning: "+format+"\n", args...)
}
