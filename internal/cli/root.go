// Package cli implements the cobra-based CLI commands for blocksplice.
//
// Each subcommand (apply, check) is defined in its own file within this
// package. This file defines the root command that serves as the parent for
// all subcommands and handles global flags, error output and exit codes.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	jsonOutput bool

	// verbose enables trace output on stderr, including every locator
	// state transition.
	verbose bool
)

// Build information, injected from the main package.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action; it only provides
// help text and global flags.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "blocksplice",
		Short: "Replace marker-delimited blocks in source files",
		Long: `blocksplice replaces blocks of lines in source files with new content.

A block starts at the first line equal to a start marker (trailing whitespace
ignored) and ends at a fixed end marker, one line after an anchor, or where
open and close delimiters balance. Patches are described in a recipe file
(blocksplice.yaml, blocksplice.yml or blocksplice.json).`,

		// We print errors ourselves (text or JSON based on --json).
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewApplyCommand())
	rootCmd.AddCommand(NewCheckCommand())

	return rootCmd
}

// Execute runs the root command and exits the process with the resulting
// exit code. This is the main entry point called from main.go.
func Execute(rootCmd *cobra.Command) {
	os.Exit(Run(rootCmd))
}

// Run executes the root command, prints any error and returns the exit code.
//
// CLIError values carry their own exit codes; other errors map to
// ExitGeneralError.
func Run(rootCmd *cobra.Command) int {
	err := rootCmd.Execute()
	if err == nil {
		return int(model.ExitSuccess)
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(rootCmd.ErrOrStderr(), cliErr.Message, cliErr.Err)
		return int(cliErr.Code)
	}

	printError(rootCmd.ErrOrStderr(), err.Error(), nil)
	return int(model.ExitGeneralError)
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag. Errors always go to
// stderr; stdout is reserved for command output.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		_, _ = fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		_, _ = fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// colorEnabled reports whether fatih/color will emit escape codes.
func colorEnabled() bool {
	return !color.NoColor
}
