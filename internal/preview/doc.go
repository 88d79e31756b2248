// Package preview renders the change a patch makes as a unified diff.
//
// Line matching is done by github.com/sergi/go-diff: both documents are
// mapped to one rune per distinct line, diffed, and mapped back, so the
// diff never splits a line. Output is optionally coloured with
// github.com/fatih/color.
package preview
