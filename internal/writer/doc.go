// Package writer persists spliced documents back to disk.
//
// Two modes are supported:
//
//   - atomic (default): the new content is written to a temporary file in
//     the same directory and renamed over the target, so readers see either
//     the old or the new file and never a partial one.
//   - in-place: the target is truncated and rewritten directly. No temporary
//     file and no rename. A failure part way through can leave the file
//     truncated.
//
// In both modes the permission bits of the existing file are kept. When
// Options.Backup is set, the original bytes are copied to "<path>.orig"
// before anything is written. A symbolic link is followed: the file it points
// to is replaced and the link itself is left in place.
//
// Write does everything in one step. Prepare splits it: every check, the
// backup copy and the temp file (or open handle) happen up front, and
// Pending.Commit later swaps in the new content. Writing a set of files
// prepares all of them before committing any.
package writer
