package recipe

import (
	"fmt"
	"strings"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

// ValidationError represents a specific validation failure in a recipe.
type ValidationError struct {
	// Field is the path of the offending key (e.g., "patches[1].anchor").
	Field string `json:"field"`

	// Message describes what's wrong with the field value.
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in a recipe.
type ValidationErrors []ValidationError

// Error joins all validation errors, one per line.
func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Validate checks the recipe and returns every problem found
// (empty = valid).
//
// Checks performed:
//   - writeMode, when set, is a known mode
//   - at least one patch is present
//   - path and start are required, and start is not blank
//   - exactly one of end, anchor and balanced is set
//   - balanced delimiters are non-empty and distinct
//   - exactly one of replacement and replacementFile is set
//   - patch names are unique
func (r *Recipe) Validate() ValidationErrors {
	var errs ValidationErrors

	if r.WriteMode != "" {
		if _, err := model.ParseWriteMode(r.WriteMode); err != nil {
			errs = append(errs, ValidationError{Field: "writeMode", Message: err.Error()})
		}
	}

	if len(r.Patches) == 0 {
		errs = append(errs, ValidationError{Field: "patches", Message: "at least one patch is required"})
	}

	seen := make(map[string]int)
	for i, p := range r.Patches {
		field := func(name string) string {
			return fmt.Sprintf("patches[%d].%s", i, name)
		}

		if p.Path == "" {
			errs = append(errs, ValidationError{Field: field("path"), Message: "path is required"})
		}
		if strings.TrimSpace(p.Start) == "" {
			errs = append(errs, ValidationError{Field: field("start"), Message: "start marker is required"})
		}

		errs = append(errs, validateStrategy(p, field)...)

		hasText := p.Replacement != nil
		hasFile := p.ReplacementFile != ""
		switch {
		case hasText && hasFile:
			errs = append(errs, ValidationError{
				Field:   field("replacement"),
				Message: "replacement and replacementFile are mutually exclusive",
			})
		case !hasText && !hasFile:
			errs = append(errs, ValidationError{
				Field:   field("replacement"),
				Message: "one of replacement or replacementFile is required",
			})
		}

		if p.Name != "" {
			if prev, dup := seen[p.Name]; dup {
				errs = append(errs, ValidationError{
					Field:   field("name"),
					Message: fmt.Sprintf("duplicate name %q (also patches[%d])", p.Name, prev),
				})
			} else {
				seen[p.Name] = i
			}
		}
	}

	return errs
}

func validateStrategy(p PatchSpec, field func(string) string) []ValidationError {
	var set []string
	if p.End != "" {
		set = append(set, "end")
	}
	if p.Anchor != "" {
		set = append(set, "anchor")
	}
	if p.Balanced != nil {
		set = append(set, "balanced")
	}

	switch len(set) {
	case 0:
		return []ValidationError{{
			Field:   field("end"),
			Message: "one of end, anchor or balanced is required",
		}}
	case 1:
	default:
		return []ValidationError{{
			Field:   field(set[1]),
			Message: fmt.Sprintf("%s are mutually exclusive", strings.Join(set, ", ")),
		}}
	}

	// Field-level checks are shared with the engine.
	if err := p.Strategy().Validate(); err != nil {
		return []ValidationError{{Field: field(set[0]), Message: err.Error()}}
	}
	return nil
}
