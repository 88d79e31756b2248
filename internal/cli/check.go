// check.go implements the "blocksplice check" command.
//
// check runs every patch exactly like apply but never writes. Unlike apply
// it does not stop at the first failure, so one run shows the state of the
// whole recipe. The exit code is that of the first failing patch.
package cli

import (
	"github.com/spf13/cobra"
)

// checkFlags holds the flag values for the check command.
// These are bound to cobra flags in NewCheckCommand.
type checkFlags struct {
	// recipe is the recipe file path. Empty means discover in the working directory.
	recipe string
}

// NewCheckCommand creates the "check" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewCheckCommand() *cobra.Command {
	flags := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether each patch in the recipe would apply",
		Long: `Run every patch in the recipe without writing and report its status.

A patch is "ok" when its block was located. Patches whose replacement is
already in place are marked "up to date". Use this in CI to catch markers
that drifted after an upstream change.

Exit code is 0 when every patch applies, otherwise the code of the first
failure (2 marker not found, 3 anchor not found, 4 end marker not found,
5 unbalanced).

Examples:
  blocksplice check
  blocksplice check --recipe tools/blocksplice.yaml --json`,

		// Patches come from the recipe, so no positional arguments.
		Args: cobra.NoArgs,

		// RunE returns an error to the root command's error handler.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.recipe, "recipe", "r", "",
		"Recipe file (default: blocksplice.yaml, blocksplice.yml or blocksplice.json in the working directory)")

	return cmd
}

// runCheck is the main logic function for the check command.
// It loads the recipe, runs every patch against in-memory documents and
// reports each result. Nothing is written to disk.
func runCheck(cmd *cobra.Command, flags *checkFlags) error {
	out := cmd.OutOrStdout()

	// Step 1: Load and resolve the recipe.
	r, root, patches, err := loadRecipe(flags.recipe)
	if err != nil {
		return err
	}

	report := runReport{Recipe: r.Path(), Root: root, DryRun: true}

	// Step 2: Run every patch, remembering the first failure but not stopping.
	var firstFailure *patchReport
	s := newSession()
	for _, p := range patches {
		pr, err := s.apply(p)
		if err != nil {
			return err
		}
		report.Patches = append(report.Patches, pr)

		if !IsJSONOutput() {
			printPatchReportText(out, pr)
		}
		if pr.Status.IsFailure() && firstFailure == nil {
			failed := pr
			firstFailure = &failed
		}
	}

	// Step 3: Output the report and map the first failure to its exit code.
	if IsJSONOutput() {
		printJSON(out, report)
	}

	if firstFailure != nil {
		return patchFailure(*firstFailure)
	}
	return nil
}
