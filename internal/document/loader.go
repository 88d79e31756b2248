package document

import (
	"fmt"
	"os"
	"strings"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

// Parse splits raw file contents into lines, preserving terminators.
//
// "\r\n" is kept as a single terminator. A lone "\r" is ordinary text.
// Empty input yields an empty document (zero lines), and input ending in a
// newline does not produce a trailing empty line.
func Parse(data []byte) model.Document {
	return ParseString(string(data))
}

// ParseString is Parse for string input. Replacement blocks supplied as text
// go through the same splitting rules as files.
func ParseString(s string) model.Document {
	var lines []model.Line
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, model.Line{Text: s})
			break
		}
		text, term := s[:i], "\n"
		if strings.HasSuffix(text, "\r") {
			text, term = text[:len(text)-1], "\r\n"
		}
		lines = append(lines, model.Line{Text: text, Terminator: term})
		s = s[i+1:]
	}
	return model.Document{Lines: lines}
}

// Load reads the file at path fully and parses it.
// The file handle is closed before Load returns.
func Load(path string) (model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data), nil
}

// DominantTerminator returns the terminator used by the first terminated line,
// or "\n" when the document has none.
func DominantTerminator(doc model.Document) string {
	for _, l := range doc.Lines {
		if l.Terminator != "" {
			return l.Terminator
		}
	}
	return "\n"
}
