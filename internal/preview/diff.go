package preview

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/shinji-kodama/blocksplice/internal/document"
	"github.com/shinji-kodama/blocksplice/internal/model"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

const noNewline = `\ No newline at end of file`

var (
	headerColor = color.New(color.Bold)
	hunkColor   = color.New(color.FgCyan)
	addColor    = color.New(color.FgGreen)
	delColor    = color.New(color.FgRed)
)

// Options controls diff rendering.
type Options struct {
	// Context is the number of unchanged lines around each change.
	// Negative values are treated as zero.
	Context int

	// Color enables ANSI colours. fatih/color still disables them when
	// NO_COLOR is set or stdout is not a terminal.
	Color bool
}

// op is one line of the diff.
type op struct {
	kind byte // ' ', '-' or '+'
	line model.Line
}

// hunk is a contiguous run of ops with 1-based line ranges.
type hunk struct {
	oldStart, oldLen int
	newStart, newLen int
	ops              []op
}

// Unified renders the diff between before and after for path.
// It returns an empty string when the documents are byte-identical.
func Unified(path string, before, after model.Document, opts Options) string {
	if before.Equal(after) {
		return ""
	}

	var b strings.Builder

	// paint applies c only when colour was requested.
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}
		return c.Sprint(s)
	}

	b.WriteString(paint(headerColor, "--- a/"+path) + "\n")
	b.WriteString(paint(headerColor, "+++ b/"+path) + "\n")

	// Each hunk gets a diff -u style header followed by its lines. A line
	// without a terminator can only be the last line of its document.
	for _, h := range hunks(lineOps(before, after), max(opts.Context, 0)) {
		header := fmt.Sprintf("@@ -%s +%s @@", rangeSpec(h.oldStart, h.oldLen), rangeSpec(h.newStart, h.newLen))
		b.WriteString(paint(hunkColor, header) + "\n")

		for _, o := range h.ops {
			text := string(o.kind) + o.line.Text
			switch o.kind {
			case '+':
				text = paint(addColor, text)
			case '-':
				text = paint(delColor, text)
			}
			b.WriteString(text + "\n")
			if o.line.Terminator == "" {
				b.WriteString(noNewline + "\n")
			}
		}
	}

	return b.String()
}

// Stats returns the number of added and removed lines.
func Stats(before, after model.Document) (added, removed int) {
	for _, o := range lineOps(before, after) {
		switch o.kind {
		case '+':
			added++
		case '-':
			removed++
		}
	}
	return added, removed
}

// lineOps diffs two documents line by line. Terminators are part of each
// line, so a "\n" to "\r\n" change shows up as a modified line.
func lineOps(before, after model.Document) []op {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(before.Bytes()), string(after.Bytes()))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []op
	for _, d := range diffs {
		kind := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = '+'
		case diffmatchpatch.DiffDelete:
			kind = '-'
		}
		for _, l := range document.ParseString(d.Text).Lines {
			ops = append(ops, op{kind: kind, line: l})
		}
	}
	return ops
}

// hunks groups ops into hunks with the given amount of context. Changes
// closer than 2*context lines apart share a hunk.
func hunks(ops []op, context int) []hunk {
	// oldNo[i] and newNo[i] count the old and new lines before ops[i].
	oldNo := make([]int, len(ops)+1)
	newNo := make([]int, len(ops)+1)
	var changes []int
	for i, o := range ops {
		oldNo[i+1], newNo[i+1] = oldNo[i], newNo[i]
		if o.kind != '+' {
			oldNo[i+1]++
		}
		if o.kind != '-' {
			newNo[i+1]++
		}
		if o.kind != ' ' {
			changes = append(changes, i)
		}
	}

	var out []hunk
	for k := 0; k < len(changes); {
		start := max(changes[k]-context, 0)
		end := min(changes[k]+context+1, len(ops))
		k++
		for k < len(changes) && changes[k]-context <= end {
			end = min(changes[k]+context+1, len(ops))
			k++
		}

		h := hunk{
			oldLen: oldNo[end] - oldNo[start],
			newLen: newNo[end] - newNo[start],
			ops:    ops[start:end],
		}
		h.oldStart = oldNo[start]
		if h.oldLen > 0 {
			h.oldStart++
		}
		h.newStart = newNo[start]
		if h.newLen > 0 {
			h.newStart++
		}
		out = append(out, h)
	}
	return out
}

// rangeSpec formats a hunk range the way diff -u does: the length is
// omitted when it is 1.
func rangeSpec(start, length int) string {
	if length == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, length)
}
