// Package locate finds the region of a document that a splice replaces.
//
// A region starts at the first line whose text, with trailing whitespace
// trimmed, equals the start marker. Its end depends on the strategy:
//
//   - fixed: the first later line equal to the end marker; that line is kept.
//   - scan: the first line containing the anchor substring, plus exactly one
//     more line assumed to close the construct. Both are removed. Nothing
//     checks that the extra line really is a closer.
//   - balanced: the line on which the count of open minus close delimiters
//     returns to zero. This is an opt-in extension, not a parser: delimiters
//     inside strings or comments are counted like any other text.
//
// The scan is a single linear state machine (see State). Each line produces
// one Event and the transition table decides the next state.
package locate
