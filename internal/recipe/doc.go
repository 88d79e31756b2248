// Package recipe loads and validates blocksplice recipe files.
//
// A recipe lists the patches to apply: which file, which start marker,
// how the end of the block is found, and what replaces it. Recipes are
// YAML (blocksplice.yaml / blocksplice.yml) or JSON with comments
// (blocksplice.json). JSON input goes through github.com/tidwall/jsonc so
// comments and trailing commas are accepted.
//
// Key responsibilities:
//   - Locate the default recipe file in a directory
//   - Parse YAML and JSONC into Recipe
//   - Validate every patch and report all problems at once
//   - Resolve the root directory and turn patch entries into engine inputs
package recipe
