// Package main is the entry point for the blocksplice CLI.
//
// blocksplice replaces marker-delimited blocks of lines in source files, as
// described by a recipe file. All functionality lives in internal/cli.
//
// Build-time variables (version, commit, date) are injected via ldflags.
// During development they default to "dev", "none" and "unknown".
package main

import (
	"github.com/shinji-kodama/blocksplice/internal/cli"
)

// version, commit, and date are set at build time via ldflags, e.g.
//
//	go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
