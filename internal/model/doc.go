// Package model defines the domain types and value objects for the
// blocksplice CLI.
//
// This package contains pure data structures with no external dependencies.
// A Document is a transient, in-memory representation of one source file:
// it is built by the loader, replaced by the splicer's output, handed to the writer
// and then discarded. Nothing in this package persists across invocations.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
