package recipe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/blocksplice/internal/document"
	"github.com/shinji-kodama/blocksplice/internal/model"
	"github.com/shinji-kodama/blocksplice/internal/vcs"
)

// DefaultNames are the file names searched by Find, in priority order.
var DefaultNames = []string{
	"blocksplice.yaml",
	"blocksplice.yml",
	"blocksplice.json",
}

// RootGit selects the enclosing git repository's top-level directory as the
// base for patch paths.
const RootGit = "git"

// Recipe is the parsed contents of a recipe file.
type Recipe struct {
	// Root is the base directory for patch paths: "git" for the repository
	// root, a path (relative to the recipe file), or empty for the recipe's
	// own directory.
	Root string `yaml:"root,omitempty" json:"root,omitempty"`

	// WriteMode is "atomic" (default) or "in-place".
	WriteMode string `yaml:"writeMode,omitempty" json:"writeMode,omitempty"`

	// Backup copies each file to "<path>.orig" before it is rewritten.
	Backup bool `yaml:"backup,omitempty" json:"backup,omitempty"`

	Patches []PatchSpec `yaml:"patches" json:"patches"`

	// path is the file the recipe was loaded from. Empty for recipes built
	// in memory, in which case relative paths resolve against the working
	// directory.
	path string
}

// PatchSpec is one entry of the patches list as written in the recipe.
type PatchSpec struct {
	// Name identifies the patch in output. Defaults to Path.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Path is the target file, relative to the resolved root.
	Path string `yaml:"path" json:"path"`

	// Start is the start marker line.
	Start string `yaml:"start" json:"start"`

	// Exactly one of End, Anchor and Balanced selects the end strategy.
	End      string        `yaml:"end,omitempty" json:"end,omitempty"`
	Anchor   string        `yaml:"anchor,omitempty" json:"anchor,omitempty"`
	Balanced *BalancedSpec `yaml:"balanced,omitempty" json:"balanced,omitempty"`

	// Exactly one of Replacement and ReplacementFile supplies the new block.
	// A pointer distinguishes an explicit empty replacement (delete the
	// block) from an absent one.
	Replacement     *string `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	ReplacementFile string  `yaml:"replacementFile,omitempty" json:"replacementFile,omitempty"`
}

// BalancedSpec holds the delimiters for the balanced strategy.
type BalancedSpec struct {
	Open  string `yaml:"open" json:"open"`
	Close string `yaml:"close" json:"close"`
}

// DisplayName returns Name, falling back to Path.
func (p PatchSpec) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Path
}

// Strategy builds the engine strategy selected by the patch entry.
// The entry is assumed to be valid.
func (p PatchSpec) Strategy() model.Strategy {
	switch {
	case p.Balanced != nil:
		return model.Balanced(p.Balanced.Open, p.Balanced.Close)
	case p.Anchor != "":
		return model.ContentScan(p.Anchor)
	default:
		return model.FixedEnd(p.End)
	}
}

// Path returns the file the recipe was loaded from.
func (r *Recipe) Path() string {
	return r.path
}

// Dir returns the directory containing the recipe file, or "." for
// in-memory recipes.
func (r *Recipe) Dir() string {
	if r.path == "" {
		return "."
	}
	return filepath.Dir(r.path)
}

// Find searches dir for the first of DefaultNames that exists.
//
// Returns a CLIError with ExitRecipeNotFound when none is present.
func Find(dir string) (string, error) {
	for _, name := range DefaultNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	return "", model.NewCLIError(
		model.ExitRecipeNotFound,
		fmt.Sprintf("no recipe found in %s (searched %s)", dir, strings.Join(DefaultNames, ", ")),
	)
}

// Load reads and parses the recipe at path. The format is chosen by file
// extension: .json and .jsonc are JSON with comments, anything else is YAML.
//
// Unknown keys are rejected so that a misspelled "anchor" does not silently
// turn a patch into a different strategy. Load does not validate; call
// Validate on the result.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitRecipeNotFound,
				fmt.Sprintf("recipe not found: %s", path),
				err,
			)
		}
		return nil, model.WrapCLIError(model.ExitIOError, fmt.Sprintf("failed to read recipe %s", path), err)
	}

	r, err := Parse(data, formatFor(path))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitRecipeInvalid, fmt.Sprintf("failed to parse recipe %s", path), err)
	}
	r.path = path

	return r, nil
}

// Format is a recipe serialization format.
type Format string

const (
	// FormatYAML is YAML, the default.
	FormatYAML Format = "yaml"
	// FormatJSON is JSON with optional comments and trailing commas.
	FormatJSON Format = "json"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Parse decodes recipe bytes in the given format.
func Parse(data []byte, format Format) (*Recipe, error) {
	var r Recipe

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&r); err != nil {
			return nil, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty file decodes to io.EOF; treat it as an empty recipe and
		// let validation report the missing patches.
		if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	return &r, nil
}

// ResolveRoot returns the absolute base directory for patch paths.
//
// "git" resolves to the top level of the repository containing the recipe.
// A relative root is taken relative to the recipe directory.
func (r *Recipe) ResolveRoot() (string, error) {
	var root string
	switch r.Root {
	case "":
		root = r.Dir()
	case RootGit:
		top, err := vcs.RepoRoot(r.Dir())
		if err != nil {
			return "", model.WrapCLIError(model.ExitGitError, "failed to resolve git root", err)
		}
		root = top
	default:
		root = r.Root
		if !filepath.IsAbs(root) {
			root = filepath.Join(r.Dir(), root)
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", model.WrapCLIError(model.ExitIOError, fmt.Sprintf("root directory not accessible: %s", abs), err)
	}
	if !info.IsDir() {
		return "", model.NewCLIError(model.ExitRecipeInvalid, fmt.Sprintf("root is not a directory: %s", abs))
	}

	return abs, nil
}

// Patch is a fully resolved patch ready for the engine.
type Patch struct {
	Name string

	// Path is the absolute path of the target file.
	Path string

	// RelPath is Path relative to the root, for display.
	RelPath string

	StartMarker string
	Strategy    model.Strategy
	Replacement model.Document
}

// Resolve validates the recipe and turns every entry into a Patch rooted
// at root. Replacement files are read relative to the recipe directory.
//
// Validation failures are returned as a CLIError with ExitRecipeInvalid
// wrapping ValidationErrors.
func (r *Recipe) Resolve(root string) ([]Patch, error) {
	if errs := r.Validate(); len(errs) > 0 {
		return nil, model.WrapCLIError(model.ExitRecipeInvalid, "invalid recipe", errs)
	}

	patches := make([]Patch, 0, len(r.Patches))
	for i, spec := range r.Patches {
		text, err := r.replacementText(spec)
		if err != nil {
			return nil, model.WrapCLIError(
				model.ExitIOError,
				fmt.Sprintf("patches[%d] (%s): failed to read replacement", i, spec.DisplayName()),
				err,
			)
		}

		path := spec.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		patches = append(patches, Patch{
			Name:        spec.DisplayName(),
			Path:        path,
			RelPath:     rel,
			StartMarker: spec.Start,
			Strategy:    spec.Strategy(),
			Replacement: document.ParseString(NormalizeReplacement(text)),
		})
	}

	return patches, nil
}

func (r *Recipe) replacementText(spec PatchSpec) (string, error) {
	if spec.Replacement != nil {
		return *spec.Replacement, nil
	}

	path := spec.ReplacementFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.Dir(), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NormalizeReplacement appends a newline to non-empty replacement text
// that lacks one, so the next retained line is not joined onto the last
// replacement line. The terminator matches the first one used in the text.
func NormalizeReplacement(text string) string {
	if text == "" || strings.HasSuffix(text, "\n") {
		return text
	}
	return text + document.DominantTerminator(document.ParseString(text))
}

// WriteModeValue parses the recipe's write mode.
func (r *Recipe) WriteModeValue() (model.WriteMode, error) {
	return model.ParseWriteMode(r.WriteMode)
}
