// Package model defines the domain types for the blocksplice CLI.
//
// All entities in this package are the data passed between the loader,
// locator, splicer and writer. They carry no behaviour beyond validation
// and small helpers for rendering and comparison.
package model

import (
	"bytes"
	"fmt"
	"strings"
)

// Line is a single line of a source file.
//
// Text never contains the terminator. Terminator is "\n", "\r\n" or empty;
// an empty terminator only appears on the final line of a file that does
// not end with a newline.
type Line struct {
	Text       string `json:"text"`
	Terminator string `json:"terminator,omitempty"`
}

// String returns the line exactly as it appears on disk.
func (l Line) String() string {
	return l.Text + l.Terminator
}

// Document is an ordered sequence of lines.
//
// Invariant: concatenating String() of every line reproduces the original
// bytes exactly.
type Document struct {
	Lines []Line `json:"lines"`
}

// Len returns the number of lines in the document.
func (d Document) Len() int {
	return len(d.Lines)
}

// Bytes reassembles the document into its on-disk representation.
func (d Document) Bytes() []byte {
	var buf bytes.Buffer
	for _, l := range d.Lines {
		buf.WriteString(l.Text)
		buf.WriteString(l.Terminator)
	}
	return buf.Bytes()
}

// Texts returns the text of every line without terminators.
// Mostly useful for assertions and human-readable output.
func (d Document) Texts() []string {
	texts := make([]string, len(d.Lines))
	for i, l := range d.Lines {
		texts[i] = l.Text
	}
	return texts
}

// Equal reports whether two documents are byte-identical, terminators included.
func (d Document) Equal(other Document) bool {
	if len(d.Lines) != len(other.Lines) {
		return false
	}
	for i := range d.Lines {
		if d.Lines[i] != other.Lines[i] {
			return false
		}
	}
	return true
}

// Region is the half-open range [Start, End) of line indexes removed by a splice.
type Region struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of lines covered by the region.
func (r Region) Len() int {
	return r.End - r.Start
}

// String renders the region using 1-based inclusive line numbers,
// which is how editors and compilers report positions.
func (r Region) String() string {
	if r.Len() <= 0 {
		return fmt.Sprintf("empty region at line %d", r.Start+1)
	}
	return fmt.Sprintf("lines %d-%d", r.Start+1, r.End)
}

// StrategyKind selects how the locator finds the end of a block.
type StrategyKind string

const (
	// StrategyFixed ends the block at a literal end-marker line, which is
	// retained in the output.
	StrategyFixed StrategyKind = "fixed"

	// StrategyScan ends the block one line after the first line containing
	// an anchor substring. Both lines are removed.
	StrategyScan StrategyKind = "scan"

	// StrategyBalanced ends the block on the line where the nesting depth of
	// open/close delimiters, walked left to right, returns to zero after
	// becoming positive. Closers before the first opener are ignored.
	StrategyBalanced StrategyKind = "balanced"
)

// String returns the string representation of StrategyKind.
func (k StrategyKind) String() string {
	return string(k)
}

// IsValid checks whether the StrategyKind value is one of the predefined kinds.
func (k StrategyKind) IsValid() bool {
	switch k {
	case StrategyFixed, StrategyScan, StrategyBalanced:
		return true
	default:
		return false
	}
}

// Strategy describes how the end of a block is determined.
// Only the fields relevant to Kind are consulted.
type Strategy struct {
	Kind StrategyKind `json:"kind"`

	// EndMarker is compared like the start marker (trailing whitespace trimmed).
	EndMarker string `json:"endMarker,omitempty"`

	// Anchor is a plain substring, not a pattern.
	Anchor string `json:"anchor,omitempty"`

	// Open and Close are the delimiter substrings counted by StrategyBalanced.
	Open  string `json:"open,omitempty"`
	Close string `json:"close,omitempty"`
}

// FixedEnd returns a Strategy that stops at endMarker.
func FixedEnd(endMarker string) Strategy {
	return Strategy{Kind: StrategyFixed, EndMarker: endMarker}
}

// ContentScan returns a Strategy that stops one line after anchor.
func ContentScan(anchor string) Strategy {
	return Strategy{Kind: StrategyScan, Anchor: anchor}
}

// Balanced returns a Strategy that tracks nesting depth of open/close.
func Balanced(open, close string) Strategy {
	return Strategy{Kind: StrategyBalanced, Open: open, Close: close}
}

// Validate checks that the fields required by Kind are present.
func (s Strategy) Validate() error {
	switch s.Kind {
	case StrategyFixed:
		if strings.TrimSpace(s.EndMarker) == "" {
			return fmt.Errorf("fixed strategy: end marker must not be empty")
		}
	case StrategyScan:
		if s.Anchor == "" {
			return fmt.Errorf("scan strategy: anchor must not be empty")
		}
	case StrategyBalanced:
		if s.Open == "" || s.Close == "" {
			return fmt.Errorf("balanced strategy: open and close delimiters must not be empty")
		}
		if s.Open == s.Close {
			return fmt.Errorf("balanced strategy: open and close delimiters must differ (both %q)", s.Open)
		}
	default:
		return fmt.Errorf("invalid strategy kind: %q (valid: fixed, scan, balanced)", s.Kind)
	}
	return nil
}

// String returns a short description used in verbose output.
func (s Strategy) String() string {
	switch s.Kind {
	case StrategyFixed:
		return fmt.Sprintf("fixed end marker %q", s.EndMarker)
	case StrategyScan:
		return fmt.Sprintf("content scan for %q", s.Anchor)
	case StrategyBalanced:
		return fmt.Sprintf("balanced %q/%q", s.Open, s.Close)
	default:
		return string(s.Kind)
	}
}

// Status is the outcome of one engine pass.
type Status string

const (
	// StatusApplied means the region was found and replaced.
	StatusApplied Status = "applied"

	// StatusMarkerNotFound means no line matched the start marker.
	// This is expected when the file is already patched or the marker drifted.
	StatusMarkerNotFound Status = "marker-not-found"

	// StatusAnchorNotFound means content scan reached end of document
	// without seeing the anchor.
	StatusAnchorNotFound Status = "anchor-not-found"

	// StatusEndMarkerNotFound means the fixed strategy reached end of
	// document without seeing the end marker.
	StatusEndMarkerNotFound Status = "end-marker-not-found"

	// StatusUnbalanced means the balanced strategy reached end of document
	// before the delimiter depth returned to zero.
	StatusUnbalanced Status = "unbalanced"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsFailure reports whether the status prevents a write.
func (s Status) IsFailure() bool {
	return s != StatusApplied
}

// PatchResult is returned by the engine for every invocation.
//
// On any status other than StatusApplied, Document is the unmodified input
// and Region is the zero value.
type PatchResult struct {
	Status   Status   `json:"status"`
	Document Document `json:"-"`
	Message  string   `json:"message"`
	Region   Region   `json:"region"`

	// Changed is false when the spliced output is byte-identical to the
	// input, e.g. when a patch is re-applied to its own output.
	Changed bool `json:"changed"`
}

// WriteMode selects how the writer persists a document.
type WriteMode string

const (
	// WriteAtomic writes to a temporary file and renames it over the target.
	WriteAtomic WriteMode = "atomic"

	// WriteInPlace truncates and rewrites the target directly. A failure
	// part way through can leave the file truncated.
	WriteInPlace WriteMode = "in-place"
)

// String returns the string representation of WriteMode.
func (m WriteMode) String() string {
	return string(m)
}

// IsValid checks whether the WriteMode value is known.
func (m WriteMode) IsValid() bool {
	return m == WriteAtomic || m == WriteInPlace
}

// ParseWriteMode converts a string to a WriteMode. Empty means atomic.
func ParseWriteMode(s string) (WriteMode, error) {
	if s == "" {
		return WriteAtomic, nil
	}
	mode := WriteMode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid write mode: %q (valid: atomic, in-place)", s)
	}
	return mode, nil
}

// ExitCode defines standard CLI exit codes.
// These codes allow scripts and CI systems to programmatically determine
// the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitMarkerNotFound indicates the start marker was not found.
	ExitMarkerNotFound ExitCode = 2

	// ExitAnchorNotFound indicates content scan did not find its anchor.
	ExitAnchorNotFound ExitCode = 3

	// ExitEndMarkerNotFound indicates the fixed end marker was not found.
	ExitEndMarkerNotFound ExitCode = 4

	// ExitUnbalanced indicates balanced delimiters never closed.
	ExitUnbalanced ExitCode = 5

	// ExitIOError indicates a read or write failure at the filesystem boundary.
	ExitIOError ExitCode = 6

	// ExitRecipeInvalid indicates the recipe file failed validation.
	ExitRecipeInvalid ExitCode = 7

	// ExitRecipeNotFound indicates no recipe file could be located.
	ExitRecipeNotFound ExitCode = 8

	// ExitGitError indicates a git command failed.
	ExitGitError ExitCode = 9
)

// ExitCodeForStatus maps an engine status to its process exit code.
func ExitCodeForStatus(s Status) ExitCode {
	switch s {
	case StatusApplied:
		return ExitSuccess
	case StatusMarkerNotFound:
		return ExitMarkerNotFound
	case StatusAnchorNotFound:
		return ExitAnchorNotFound
	case StatusEndMarkerNotFound:
		return ExitEndMarkerNotFound
	case StatusUnbalanced:
		return ExitUnbalanced
	default:
		return ExitGeneralError
	}
}

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
