package vcs

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

// FileState describes a file as git sees it.
type FileState struct {
	// Path is the file path as given by the caller.
	Path string `json:"path"`

	// InRepo is false when the file is outside any git work tree.
	InRepo bool `json:"inRepo"`

	// Tracked is true when the file is in the index.
	Tracked bool `json:"tracked"`

	// Modified is true when the file has staged or unstaged changes.
	Modified bool `json:"modified"`
}

// Safe reports whether rewriting the file can be undone through git,
// i.e. the file is tracked and has no pending changes.
func (s FileState) Safe() bool {
	return s.InRepo && s.Tracked && !s.Modified
}

// String returns a short description for warnings.
func (s FileState) String() string {
	switch {
	case !s.InRepo:
		return "not in a git repository"
	case !s.Tracked:
		return "untracked"
	case s.Modified:
		return "has uncommitted changes"
	default:
		return "clean"
	}
}

// Manager runs git commands.
type Manager struct {
	// gitPath is the git binary to execute.
	gitPath string
}

// NewManager creates a Manager that uses the git binary on PATH.
func NewManager() *Manager {
	return &Manager{gitPath: "git"}
}

// RepoRoot returns the top-level directory of the git work tree that
// contains path, using the default Manager.
func RepoRoot(path string) (string, error) {
	return NewManager().RepoRoot(path)
}

// RepoRoot returns the absolute path to the top-level directory of the
// work tree containing path (`git rev-parse --show-toplevel`).
func (m *Manager) RepoRoot(path string) (string, error) {
	output, err := m.run(path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(strings.TrimSpace(output)), nil
}

// IsInsideWorkTree reports whether path is inside a git work tree.
func (m *Manager) IsInsideWorkTree(path string) bool {
	output, err := m.run(path, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(output) == "true"
}

// FileState inspects a single file. git is run from the file's directory,
// so the file may live in any repository. A file outside any work tree
// returns InRepo false and no error.
func (m *Manager) FileState(path string) (FileState, error) {
	state := FileState{Path: path}
	dir, base := filepath.Dir(path), filepath.Base(path)

	if !m.IsInsideWorkTree(dir) {
		return state, nil
	}
	state.InRepo = true

	// --error-unmatch exits non-zero for paths not in the index.
	if _, err := m.run(dir, "ls-files", "--error-unmatch", "--", base); err == nil {
		state.Tracked = true
	}

	output, err := m.run(dir, "status", "--porcelain=v1", "--", base)
	if err != nil {
		return state, err
	}
	for _, entry := range parseStatusPorcelain(output) {
		if entry.Untracked() {
			state.Tracked = false
			continue
		}
		state.Modified = true
	}

	return state, nil
}

// statusEntry is one line of `git status --porcelain=v1`.
type statusEntry struct {
	// Index and Worktree are the two status letters (X and Y).
	Index    byte
	Worktree byte
	Path     string
}

// Untracked reports the "??" status.
func (e statusEntry) Untracked() bool {
	return e.Index == '?' && e.Worktree == '?'
}

// parseStatusPorcelain parses `git status --porcelain=v1` output.
//
// Each line is "XY PATH" or, for renames, "XY ORIG -> PATH":
//
//	 M internal/app.go
//	?? notes.txt
//	R  old.go -> new.go
func parseStatusPorcelain(output string) []statusEntry {
	var entries []statusEntry

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		// Shortest valid line is "XY P".
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		if _, to, ok := strings.Cut(path, " -> "); ok {
			path = to
		}
		entries = append(entries, statusEntry{
			Index:    line[0],
			Worktree: line[1],
			Path:     strings.Trim(path, `"`),
		})
	}

	return entries
}

// run executes git with -C dir and returns stdout.
//
// Failures are returned as a model.CLIError with ExitGitError, including
// git's stderr for diagnostics.
func (m *Manager) run(dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- args are constructed internally
	cmd := exec.Command(m.gitPath, fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}
