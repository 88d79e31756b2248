// cli_test.go exercises the apply and check commands end to end against
// temporary directories.
package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// execute runs the root command with args and returns stdout, stderr and
// the exit code.
func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	code := Run(root)
	return stdout.String(), stderr.String(), code
}

// writeFile creates path (and parents) with content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const fixedRecipe = `patches:
  - name: block
    path: src/a.txt
    start: START
    end: END
    replacement: |
      NEW1
      NEW2
`

// setupProject creates a directory with a recipe and the fixed-marker
// target file used by most tests.
func setupProject(t *testing.T, recipe string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "blocksplice.yaml"), recipe)
	writeFile(t, filepath.Join(dir, "src", "a.txt"), "A\nSTART\nold1\nold2\nEND\nB\n")
	return dir
}

// --- apply ---

func TestApply(t *testing.T) {
	dir := setupProject(t, fixedRecipe)

	stdout, stderr, code := execute(t, "apply", "--recipe", filepath.Join(dir, "blocksplice.yaml"))
	require.Equal(t, int(model.ExitSuccess), code, stderr)

	assert.Equal(t, "A\nNEW1\nNEW2\nEND\nB\n", readFile(t, filepath.Join(dir, "src", "a.txt")))
	assert.Contains(t, stdout, "Successfully updated "+filepath.Join("src", "a.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "src", "a.txt.orig"))
}

// TestApply_Discovery finds the recipe in the working directory.
func TestApply_Discovery(t *testing.T) {
	dir := setupProject(t, fixedRecipe)
	chdir(t, dir)

	_, stderr, code := execute(t, "apply")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "A\nNEW1\nNEW2\nEND\nB\n", readFile(t, filepath.Join(dir, "src", "a.txt")))
}

// TestApply_Rerun verifies a second run leaves the file alone when the
// start marker is gone.
func TestApply_Rerun(t *testing.T) {
	dir := setupProject(t, fixedRecipe)
	recipePath := filepath.Join(dir, "blocksplice.yaml")

	_, _, code := execute(t, "apply", "-r", recipePath)
	require.Equal(t, 0, code)

	_, stderr, code := execute(t, "apply", "-r", recipePath)
	assert.Equal(t, int(model.ExitMarkerNotFound), code)
	assert.Contains(t, stderr, `Error: patch "block"`)
	assert.Contains(t, stderr, `start marker "START" not found`)
	assert.Equal(t, "A\nNEW1\nNEW2\nEND\nB\n", readFile(t, filepath.Join(dir, "src", "a.txt")))
}

// TestApply_UpToDate verifies an idempotent replacement is not rewritten.
func TestApply_UpToDate(t *testing.T) {
	dir := setupProject(t, `patches:
  - name: block
    path: src/a.txt
    start: START
    end: END
    replacement: "START\nnew\n"
`)
	recipePath := filepath.Join(dir, "blocksplice.yaml")
	target := filepath.Join(dir, "src", "a.txt")

	_, _, code := execute(t, "apply", "-r", recipePath)
	require.Equal(t, 0, code)
	assert.Equal(t, "A\nSTART\nnew\nEND\nB\n", readFile(t, target))

	info, err := os.Stat(target)
	require.NoError(t, err)

	stdout, _, code := execute(t, "apply", "-r", recipePath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, filepath.Join("src", "a.txt")+" already up to date")

	after, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime(), "unchanged file should not be rewritten")
}

func TestApply_DryRunWithDiff(t *testing.T) {
	dir := setupProject(t, fixedRecipe)

	stdout, _, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"), "--dry-run", "--diff")
	require.Equal(t, 0, code)

	assert.Contains(t, stdout, "-START\n")
	assert.Contains(t, stdout, "+NEW1\n")
	assert.Contains(t, stdout, "Would update "+filepath.Join("src", "a.txt")+" (+2 -3)")
	assert.Equal(t, "A\nSTART\nold1\nold2\nEND\nB\n", readFile(t, filepath.Join(dir, "src", "a.txt")))
}

func TestApply_BackupAndInPlace(t *testing.T) {
	dir := setupProject(t, fixedRecipe)
	target := filepath.Join(dir, "src", "a.txt")

	stdout, _, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"),
		"--backup", "--write-mode", "in-place")
	require.Equal(t, 0, code)

	assert.Equal(t, "A\nNEW1\nNEW2\nEND\nB\n", readFile(t, target))
	assert.Equal(t, "A\nSTART\nold1\nold2\nEND\nB\n", readFile(t, target+".orig"))
	assert.Contains(t, stdout, "backup: "+target+".orig")
}

func TestApply_InvalidWriteMode(t *testing.T) {
	dir := setupProject(t, fixedRecipe)

	_, stderr, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"), "--write-mode", "copy")
	assert.Equal(t, int(model.ExitGeneralError), code)
	assert.Contains(t, stderr, "invalid --write-mode")
}

// TestApply_CRLF verifies untouched bytes survive, including a missing
// final newline.
func TestApply_CRLF(t *testing.T) {
	dir := setupProject(t, `patches:
  - path: win.txt
    start: START
    end: END
    replacement: "NEW\r\n"
`)
	target := filepath.Join(dir, "win.txt")
	writeFile(t, target, "A\r\nSTART\r\nold\r\nEND\r\nB")

	_, stderr, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"))
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "A\r\nNEW\r\nEND\r\nB", readFile(t, target))
}

// TestApply_FailureWritesNothing verifies that an earlier successful patch
// is not persisted when a later one fails.
func TestApply_FailureWritesNothing(t *testing.T) {
	dir := setupProject(t, `patches:
  - name: first
    path: src/a.txt
    start: START
    end: END
    replacement: "X\n"
  - name: second
    path: src/b.txt
    start: case .server
    anchor: beginDrag(
    replacement: "Y\n"
`)
	writeFile(t, filepath.Join(dir, "src", "b.txt"), "case .server\n  mid\n}\n")

	_, stderr, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"))
	assert.Equal(t, int(model.ExitAnchorNotFound), code)
	assert.Contains(t, stderr, `patch "second"`)
	assert.Equal(t, "A\nSTART\nold1\nold2\nEND\nB\n", readFile(t, filepath.Join(dir, "src", "a.txt")))
}

// TestApply_WriteFailureWritesNothing verifies that when one file cannot be
// written, files earlier in the recipe keep their original content.
func TestApply_WriteFailureWritesNothing(t *testing.T) {
	for _, mode := range []string{"atomic", "in-place"} {
		t.Run(mode, func(t *testing.T) {
			dir := setupProject(t, `patches:
  - name: first
    path: src/a.txt
    start: START
    end: END
    replacement: "X\n"
  - name: second
    path: src/b.txt
    start: START
    end: END
    replacement: "Y\n"
`)
			writeFile(t, filepath.Join(dir, "src", "b.txt"), "START\nold\nEND\n")
			// A directory where the backup copy should go makes the second file fail.
			require.NoError(t, os.Mkdir(filepath.Join(dir, "src", "b.txt.orig"), 0o755))

			stdout, stderr, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"),
				"--backup", "--write-mode", mode)
			assert.Equal(t, int(model.ExitIOError), code)
			assert.Contains(t, stderr, "failed to update src/b.txt")
			assert.NotContains(t, stdout, "Successfully updated")

			assert.Equal(t, "A\nSTART\nold1\nold2\nEND\nB\n", readFile(t, filepath.Join(dir, "src", "a.txt")))
			assert.Equal(t, "START\nold\nEND\n", readFile(t, filepath.Join(dir, "src", "b.txt")))

			entries, err := os.ReadDir(filepath.Join(dir, "src"))
			require.NoError(t, err)
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			assert.ElementsMatch(t, []string{"a.txt", "a.txt.orig", "b.txt", "b.txt.orig"}, names,
				"no temp files left behind")
		})
	}
}

// TestApply_Symlink verifies that a target reached through a symbolic link
// is updated and the link is kept.
func TestApply_Symlink(t *testing.T) {
	dir := setupProject(t, `patches:
  - path: link.txt
    start: START
    end: END
    replacement: "X\n"
`)
	realPath := filepath.Join(dir, "src", "a.txt")
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(realPath, link))

	stdout, stderr, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"))
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Successfully updated link.txt")

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)
	assert.Equal(t, "A\nX\nEND\nB\n", readFile(t, realPath))
}

// TestApply_SameFileSequential verifies later patches see earlier output.
func TestApply_SameFileSequential(t *testing.T) {
	dir := setupProject(t, `patches:
  - name: rename-start
    path: src/a.txt
    start: START
    end: END
    replacement: "BEGIN\nmiddle\n"
  - name: use-new-marker
    path: src/a.txt
    start: BEGIN
    end: END
    replacement: "BEGIN\nfinal\n"
`)

	stdout, stderr, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"))
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "A\nBEGIN\nfinal\nEND\nB\n", readFile(t, filepath.Join(dir, "src", "a.txt")))
	assert.Equal(t, 1, bytes.Count([]byte(stdout), []byte("Successfully updated")), "file written once")
}

func TestApply_JSON(t *testing.T) {
	dir := setupProject(t, fixedRecipe)

	stdout, _, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"), "--json")
	require.Equal(t, 0, code)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Patches, 1)
	assert.Equal(t, model.StatusApplied, report.Patches[0].Status)
	require.NotNil(t, report.Patches[0].Region)
	assert.Equal(t, model.Region{Start: 1, End: 4}, *report.Patches[0].Region)

	require.Len(t, report.Files, 1)
	assert.Equal(t, actionUpdated, report.Files[0].Action)
	assert.Equal(t, 2, report.Files[0].Added)
	assert.Equal(t, 3, report.Files[0].Removed)
}

func TestApply_JSONError(t *testing.T) {
	_, stderr, code := execute(t, "apply", "-r", filepath.Join(t.TempDir(), "missing.yaml"), "--json")
	assert.Equal(t, int(model.ExitRecipeNotFound), code)

	var errObj struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stderr), &errObj))
	assert.Contains(t, errObj.Error.Message, "recipe not found")
	assert.NotEmpty(t, errObj.Error.Detail)
}

func TestApply_RecipeErrors(t *testing.T) {
	t.Run("no recipe in directory", func(t *testing.T) {
		chdir(t, t.TempDir())
		_, stderr, code := execute(t, "apply")
		assert.Equal(t, int(model.ExitRecipeNotFound), code)
		assert.Contains(t, stderr, "no recipe found")
	})

	t.Run("invalid recipe", func(t *testing.T) {
		dir := setupProject(t, "patches:\n  - path: a.txt\n    start: START\n")
		_, stderr, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"))
		assert.Equal(t, int(model.ExitRecipeInvalid), code)
		assert.Contains(t, stderr, "patches[0].end")
		assert.Contains(t, stderr, "patches[0].replacement")
	})

	t.Run("missing target file", func(t *testing.T) {
		dir := setupProject(t, `patches:
  - path: nope.txt
    start: START
    end: END
    replacement: x
`)
		_, stderr, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"))
		assert.Equal(t, int(model.ExitIOError), code)
		assert.Contains(t, stderr, "cannot read target")
	})
}

// TestApply_GitWarning warns before rewriting an untracked file without a
// backup.
func TestApply_GitWarning(t *testing.T) {
	dir := setupProject(t, fixedRecipe)
	out, err := exec.Command("git", "-C", dir, "init").CombinedOutput()
	require.NoError(t, err, string(out))

	_, stderr, code := execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"))
	require.Equal(t, 0, code)
	assert.Contains(t, stderr, "Warning: "+filepath.Join("src", "a.txt")+" untracked")

	// A backup suppresses the warning.
	writeFile(t, filepath.Join(dir, "src", "a.txt"), "START\nEND\n")
	_, stderr, code = execute(t, "apply", "-r", filepath.Join(dir, "blocksplice.yaml"), "--backup")
	require.Equal(t, 0, code)
	assert.NotContains(t, stderr, "Warning")
}

// --- check ---

func TestCheck(t *testing.T) {
	dir := setupProject(t, `patches:
  - name: good
    path: src/a.txt
    start: START
    end: END
    replacement: "X\n"
  - name: missing-end
    path: src/a.txt
    start: A
    end: NOPE
    replacement: "Y\n"
  - name: missing-start
    path: src/a.txt
    start: ZZZ
    end: END
    replacement: "Z\n"
`)
	target := filepath.Join(dir, "src", "a.txt")

	stdout, stderr, code := execute(t, "check", "-r", filepath.Join(dir, "blocksplice.yaml"))
	assert.Equal(t, int(model.ExitEndMarkerNotFound), code, "first failure decides the exit code")
	assert.Contains(t, stderr, `patch "missing-end"`)

	assert.Contains(t, stdout, "ok")
	assert.Contains(t, stdout, "lines 2-4")
	assert.Contains(t, stdout, `end marker "NOPE" not found`)
	assert.Contains(t, stdout, `start marker "ZZZ" not found`, "check continues after a failure")

	assert.Equal(t, "A\nSTART\nold1\nold2\nEND\nB\n", readFile(t, target), "check never writes")
}

func TestCheck_UpToDateJSON(t *testing.T) {
	dir := setupProject(t, `patches:
  - name: block
    path: src/a.txt
    start: START
    end: END
    replacement: "START\nold1\nold2\n"
`)

	stdout, _, code := execute(t, "check", "-r", filepath.Join(dir, "blocksplice.yaml"), "--json")
	require.Equal(t, 0, code)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Patches, 1)
	assert.Equal(t, model.StatusApplied, report.Patches[0].Status)
	assert.False(t, report.Patches[0].Changed)
	assert.True(t, report.DryRun)
}

func TestCheck_Text_UpToDate(t *testing.T) {
	var buf bytes.Buffer
	region := model.Region{Start: 0, End: 2}
	printPatchReportText(&buf, patchReport{
		Name:    "p",
		Path:    "a.txt",
		Status:  model.StatusApplied,
		Region:  &region,
		Changed: false,
	})
	assert.Contains(t, buf.String(), "lines 1-2 (up to date)")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
