// Package vcs provides the git queries blocksplice needs.
//
// All git operations are performed via os/exec calls to the git binary,
// rather than using a Git library like go-git. This keeps behavior
// identical to what the user sees in their terminal and avoids CGO.
//
// blocksplice uses git for two things:
//   - resolving the repository root when a recipe sets `root: git`
//   - checking whether a target file is tracked and clean before it is
//     rewritten, since git is then the only way back if a patch goes wrong
package vcs
