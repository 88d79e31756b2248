// session.go runs recipe patches against in-memory documents.
//
// Patches are applied in recipe order. Each target file is read once; a
// later patch on the same file sees the output of the earlier ones. Nothing
// is written here; apply persists files only after every patch succeeded.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/shinji-kodama/blocksplice/internal/document"
	"github.com/shinji-kodama/blocksplice/internal/model"
	"github.com/shinji-kodama/blocksplice/internal/preview"
	"github.com/shinji-kodama/blocksplice/internal/recipe"
	"github.com/shinji-kodama/blocksplice/internal/splice"
)

// session tracks the original and current document of every file touched.
type session struct {
	originals map[string]model.Document
	current   map[string]model.Document

	// order lists absolute paths in first-use order.
	order []string
	rel   map[string]string
}

func newSession() *session {
	return &session{
		originals: make(map[string]model.Document),
		current:   make(map[string]model.Document),
		rel:       make(map[string]string),
	}
}

// document returns the current document for the patch target, loading it
// on first use.
func (s *session) document(p recipe.Patch) (model.Document, error) {
	if doc, ok := s.current[p.Path]; ok {
		return doc, nil
	}

	doc, err := document.Load(p.Path)
	if err != nil {
		return model.Document{}, model.WrapCLIError(
			model.ExitIOError,
			fmt.Sprintf("patch %q: cannot read target", p.Name),
			err,
		)
	}
	VerboseLog("Loaded %s (%d lines)", p.RelPath, doc.Len())

	s.originals[p.Path] = doc
	s.current[p.Path] = doc
	s.order = append(s.order, p.Path)
	s.rel[p.Path] = p.RelPath
	return doc, nil
}

// apply runs one patch. A located-but-failed patch is reported through the
// returned patchReport; the error is reserved for I/O and argument problems.
func (s *session) apply(p recipe.Patch) (patchReport, error) {
	report := patchReport{Name: p.Name, Path: p.RelPath}

	doc, err := s.document(p)
	if err != nil {
		return report, err
	}

	VerboseLog("Applying %q to %s using %s", p.Name, p.RelPath, p.Strategy)
	res, trace, err := splice.ApplyTraced(doc, p.StartMarker, p.Strategy, p.Replacement)
	if err != nil {
		return report, model.WrapCLIError(model.ExitRecipeInvalid, fmt.Sprintf("patch %q", p.Name), err)
	}
	for _, tr := range trace {
		VerboseLog("  line %d: %s -> %s (%s)", tr.Line+1, tr.From, tr.To, tr.Event)
	}

	report.Status = res.Status
	report.Message = res.Message
	report.Changed = res.Changed
	if res.Status.IsFailure() {
		return report, nil
	}

	region := res.Region
	report.Region = &region
	s.current[p.Path] = res.Document
	return report, nil
}

// fileChange is the net effect of all patches on one file.
type fileChange struct {
	Path    string
	RelPath string
	Before  model.Document
	After   model.Document
}

// Changed reports whether the file content differs from what was read.
func (c fileChange) Changed() bool {
	return !c.Before.Equal(c.After)
}

// changes returns one entry per touched file, in first-use order.
func (s *session) changes() []fileChange {
	out := make([]fileChange, 0, len(s.order))
	for _, path := range s.order {
		out = append(out, fileChange{
			Path:    path,
			RelPath: s.rel[path],
			Before:  s.originals[path],
			After:   s.current[path],
		})
	}
	return out
}

// describe builds the file report fields that do not depend on writing.
func (c fileChange) describe(withDiff bool) fileReport {
	f := fileReport{Path: c.RelPath, Action: actionUpToDate}
	if !c.Changed() {
		return f
	}
	f.Added, f.Removed = preview.Stats(c.Before, c.After)
	if withDiff {
		f.Diff = preview.Unified(c.RelPath, c.Before, c.After, preview.Options{
			Context: preview.DefaultContext,
			Color:   !IsJSONOutput() && colorEnabled(),
		})
	}
	return f
}

// recipeError converts a recipe-level failure for the CLI, passing
// CLIErrors through unchanged.
func recipeError(err error) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	return model.WrapCLIError(model.ExitRecipeInvalid, "invalid recipe", err)
}

// loadRecipe loads the recipe at path, or discovers one in the working
// directory when path is empty, and resolves its patches.
func loadRecipe(path string) (*recipe.Recipe, string, []recipe.Patch, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", nil, model.WrapCLIError(model.ExitIOError, "failed to get working directory", err)
		}
		found, err := recipe.Find(wd)
		if err != nil {
			return nil, "", nil, err
		}
		path = found
	}
	VerboseLog("Using recipe %s", path)

	r, err := recipe.Load(path)
	if err != nil {
		return nil, "", nil, recipeError(err)
	}

	root, err := r.ResolveRoot()
	if err != nil {
		return nil, "", nil, recipeError(err)
	}
	VerboseLog("Resolved root %s", root)

	patches, err := r.Resolve(root)
	if err != nil {
		return nil, "", nil, recipeError(err)
	}
	VerboseLog("Recipe has %d patch(es)", len(patches))

	return r, root, patches, nil
}

// patchFailure builds the CLIError for a patch whose status is a failure.
func patchFailure(report patchReport) error {
	return model.NewCLIError(
		model.ExitCodeForStatus(report.Status),
		fmt.Sprintf("patch %q (%s): %s", report.Name, report.Path, report.Message),
	)
}
