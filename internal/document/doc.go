// Package document loads source files into line sequences.
//
// The loader is the first stage of the splice pipeline. It splits a file on
// "\n" and keeps every line's original terminator ("\n" or "\r\n"), so that
// reassembling the lines reproduces the input byte for byte. A final line
// without a newline keeps an empty terminator.
package document
