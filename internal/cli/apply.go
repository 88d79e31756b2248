// apply.go implements the "blocksplice apply" command.
//
// apply loads the recipe, runs every patch in order against in-memory
// copies of the target files and, if all patches succeed, writes each
// changed file back. The first failing patch stops the run with the exit
// code for its status and no file is written. Writes are prepared for every
// file (checks, backups, temp files) before the first one is committed.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/blocksplice/internal/model"
	"github.com/shinji-kodama/blocksplice/internal/recipe"
	"github.com/shinji-kodama/blocksplice/internal/vcs"
	"github.com/shinji-kodama/blocksplice/internal/writer"
)

// applyFlags holds the flag values for the apply command.
// These are bound to cobra flags in NewApplyCommand.
type applyFlags struct {
	// recipe is the recipe file path. Empty means discover in the working directory.
	recipe string

	// dryRun reports what would change without writing.
	dryRun bool

	// diff prints a unified diff of each changed file.
	diff bool

	// writeMode overrides the recipe's writeMode when set.
	writeMode string

	// backup forces a "<path>.orig" copy even when the recipe does not ask for one.
	backup bool
}

// NewApplyCommand creates the "apply" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewApplyCommand() *cobra.Command {
	flags := &applyFlags{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the recipe's patches to their target files",
		Long: `Apply every patch in the recipe.

Each patch finds the first line equal to its start marker, determines the end
of the block (fixed end marker, anchor scan or balanced delimiters) and
replaces the block with the patch's replacement text. Lines outside the block
are written back byte for byte.

Patches run in recipe order. If any patch fails, or any changed file fails
its write checks (permissions, backup, temp file), no file is written.

Examples:
  blocksplice apply
  blocksplice apply --recipe tools/blocksplice.yaml --diff
  blocksplice apply --dry-run --json
  blocksplice apply --write-mode in-place --backup`,

		// Patches come from the recipe, so no positional arguments.
		Args: cobra.NoArgs,

		// RunE returns an error to the root command's error handler.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, flags)
		},
	}

	// --recipe is shared with check; the short form matches.
	cmd.Flags().StringVarP(&flags.recipe, "recipe", "r", "",
		"Recipe file (default: blocksplice.yaml, blocksplice.yml or blocksplice.json in the working directory)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Report changes without writing")
	cmd.Flags().BoolVar(&flags.diff, "diff", false, "Print a unified diff of each changed file")
	cmd.Flags().StringVar(&flags.writeMode, "write-mode", "",
		"How files are written: atomic or in-place (default: recipe setting, else atomic)")
	cmd.Flags().BoolVar(&flags.backup, "backup", false, "Copy each file to <path>.orig before writing")

	return cmd
}

// runApply is the main logic function for the apply command.
// It loads the recipe, runs every patch in memory, and only when all of
// them succeed stages and commits the changed files.
func runApply(cmd *cobra.Command, flags *applyFlags) error {
	out := cmd.OutOrStdout()

	// Step 1: Load and resolve the recipe.
	r, root, patches, err := loadRecipe(flags.recipe)
	if err != nil {
		return err
	}

	// Step 2: Work out how files will be written. The flag wins over the recipe.
	opts, err := writeOptions(r, flags)
	if err != nil {
		return err
	}
	VerboseLog("Write mode %s, backup %t", opts.Mode, opts.Backup)

	report := runReport{Recipe: r.Path(), Root: root, DryRun: flags.dryRun}

	// Step 3: Run every patch in memory, stopping at the first failure.
	s := newSession()
	for _, p := range patches {
		pr, err := s.apply(p)
		if err != nil {
			return err
		}
		report.Patches = append(report.Patches, pr)

		if pr.Status.IsFailure() {
			if IsJSONOutput() {
				printJSON(out, report)
			}
			return patchFailure(pr)
		}
	}

	// Step 4: Check and stage every changed file before any is modified.
	var staged []stagedFile
	for _, c := range s.changes() {
		sf, err := stage(cmd.ErrOrStderr(), c, opts, flags)
		if err != nil {
			discardAll(staged)
			return err
		}
		staged = append(staged, sf)
	}

	// Step 5: Commit the staged writes.
	var updated []string
	for i := range staged {
		sf := &staged[i]
		if sf.pending != nil {
			res, err := sf.pending.Commit()
			if err != nil {
				discardAll(staged[i+1:])
				return commitFailure(sf.change.RelPath, updated, err)
			}
			VerboseLog("Wrote %d bytes to %s (%s)", res.Bytes, sf.change.Path, res.Mode)
			sf.report.Action = actionUpdated
			sf.report.BackupPath = res.BackupPath
			updated = append(updated, sf.change.RelPath)
		}

		report.Files = append(report.Files, sf.report)
		if !IsJSONOutput() {
			printFileReportText(out, sf.report)
		}
	}

	if IsJSONOutput() {
		printJSON(out, report)
	}
	return nil
}

// writeOptions merges flags and recipe settings into writer options.
func writeOptions(r *recipe.Recipe, flags *applyFlags) (writer.Options, error) {
	raw := r.WriteMode
	if flags.writeMode != "" {
		raw = flags.writeMode
	}

	mode, err := model.ParseWriteMode(raw)
	if err != nil {
		return writer.Options{}, model.WrapCLIError(model.ExitGeneralError, "invalid --write-mode", err)
	}

	return writer.Options{Mode: mode, Backup: flags.backup || r.Backup}, nil
}

// stagedFile is a changed file whose write has been prepared but not
// committed. pending is nil for files that will not be written.
type stagedFile struct {
	change  fileChange
	report  fileReport
	pending *writer.Pending
}

// stage builds the report for one file and, unless this is a dry run or the
// content is unchanged, prepares its write.
func stage(stderr io.Writer, c fileChange, opts writer.Options, flags *applyFlags) (stagedFile, error) {
	sf := stagedFile{change: c, report: c.describe(flags.diff)}
	if !c.Changed() {
		VerboseLog("%s unchanged, skipping write", c.RelPath)
		return sf, nil
	}

	if flags.dryRun {
		sf.report.Action = actionWouldUpdate
		return sf, nil
	}

	// Warn when neither a backup nor git can restore the original.
	if !opts.Backup {
		state, err := vcs.NewManager().FileState(c.Path)
		switch {
		case err != nil:
			VerboseLog("Could not check git state of %s: %v", c.RelPath, err)
		case !state.InRepo:
			VerboseLog("%s is %s", c.RelPath, state)
		case !state.Safe():
			sf.report.Warning = fmt.Sprintf("%s %s; consider --backup", c.RelPath, state)
			if !IsJSONOutput() {
				printWarning(stderr, "%s", sf.report.Warning)
			}
		}
	}

	pending, err := writer.Prepare(c.Path, c.After.Bytes(), opts)
	if err != nil {
		return sf, model.WrapCLIError(model.ExitIOError, fmt.Sprintf("failed to update %s", c.RelPath), err)
	}
	sf.pending = pending
	return sf, nil
}

// discardAll releases every prepared write, leaving the targets untouched.
func discardAll(staged []stagedFile) {
	for _, sf := range staged {
		if sf.pending == nil {
			continue
		}
		if err := sf.pending.Discard(); err != nil {
			VerboseLog("Could not discard staged write for %s: %v", sf.change.RelPath, err)
		}
	}
}

// commitFailure reports a write that failed after staging succeeded. Files
// committed before it are named, since they already hold the new content.
func commitFailure(rel string, updated []string, err error) error {
	msg := fmt.Sprintf("failed to update %s", rel)
	if len(updated) > 0 {
		msg += fmt.Sprintf(" (already updated: %s)", strings.Join(updated, ", "))
	}
	return model.WrapCLIError(model.ExitIOError, msg, err)
}
