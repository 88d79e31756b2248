// Package splice replaces a located region of a document with a
// replacement block.
//
// Apply is the engine entry point: it runs the locator, splices on success
// and reports a model.PatchResult. It never touches the filesystem; the
// caller decides whether and how to persist the result.
package splice
