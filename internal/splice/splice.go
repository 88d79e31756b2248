package splice

import (
	"fmt"

	"github.com/shinji-kodama/blocksplice/internal/locate"
	"github.com/shinji-kodama/blocksplice/internal/model"
)

// Splice returns lines[:Start] + replacement + lines[End:].
//
// Lines outside the region are copied as-is, terminators included, and
// replacement lines keep their own terminators. The input document is not
// modified.
func Splice(doc model.Document, region model.Region, replacement model.Document) (model.Document, error) {
	if region.Start < 0 || region.End < region.Start || region.End > doc.Len() {
		return model.Document{}, fmt.Errorf("region [%d, %d) out of range for %d lines", region.Start, region.End, doc.Len())
	}

	lines := make([]model.Line, 0, doc.Len()-region.Len()+replacement.Len())
	lines = append(lines, doc.Lines[:region.Start]...)
	lines = append(lines, replacement.Lines...)
	lines = append(lines, doc.Lines[region.End:]...)
	return model.Document{Lines: lines}, nil
}

// Apply locates the block starting at startMarker and replaces it.
//
// On any failure status the returned Document is the input, unmodified.
// An error is returned only for unusable arguments.
func Apply(doc model.Document, startMarker string, strategy model.Strategy, replacement model.Document) (model.PatchResult, error) {
	res, _, err := ApplyTraced(doc, startMarker, strategy, replacement)
	return res, err
}

// ApplyTraced is Apply that also returns the locator's state transitions,
// for verbose output.
func ApplyTraced(doc model.Document, startMarker string, strategy model.Strategy, replacement model.Document) (model.PatchResult, []locate.Transition, error) {
	// Step 1: Locate the block. Bad arguments are errors, a missing block is a status.
	loc, err := locate.Locate(doc, startMarker, strategy)
	if err != nil {
		return model.PatchResult{}, nil, err
	}

	if loc.Status.IsFailure() {
		return model.PatchResult{
			Status:   loc.Status,
			Document: doc,
			Message:  loc.Message,
		}, loc.Trace, nil
	}

	// Step 2: Splice the replacement in and compare with the input.
	out, err := Splice(doc, loc.Region, replacement)
	if err != nil {
		return model.PatchResult{}, loc.Trace, err
	}

	return model.PatchResult{
		Status:   model.StatusApplied,
		Document: out,
		Message:  loc.Message,
		Region:   loc.Region,
		Changed:  !out.Equal(doc),
	}, loc.Trace, nil
}
