package document

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/blocksplice/internal/model"
)

// TestParse verifies line splitting and terminator preservation.
func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []model.Line
	}{
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "single line without newline",
			input: "only",
			want:  []model.Line{{Text: "only"}},
		},
		{
			name:  "trailing newline does not add an empty line",
			input: "a\nb\n",
			want: []model.Line{
				{Text: "a", Terminator: "\n"},
				{Text: "b", Terminator: "\n"},
			},
		},
		{
			name:  "crlf terminators",
			input: "a\r\nb\r\n",
			want: []model.Line{
				{Text: "a", Terminator: "\r\n"},
				{Text: "b", Terminator: "\r\n"},
			},
		},
		{
			name:  "mixed terminators and missing final newline",
			input: "a\nb\r\nc",
			want: []model.Line{
				{Text: "a", Terminator: "\n"},
				{Text: "b", Terminator: "\r\n"},
				{Text: "c"},
			},
		},
		{
			name:  "lone carriage return is text",
			input: "a\rb\n",
			want:  []model.Line{{Text: "a\rb", Terminator: "\n"}},
		},
		{
			name:  "blank lines are kept",
			input: "\n\n",
			want: []model.Line{
				{Text: "", Terminator: "\n"},
				{Text: "", Terminator: "\n"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ParseString(tt.input)
			assert.Equal(t, tt.want, doc.Lines)
			// Round trip: the loader invariant.
			assert.Equal(t, tt.input, string(doc.Bytes()))
		})
	}
}

// TestLoad reads a fixture from disk and checks the round trip.
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "view.swift")
	content := "struct V {\r\n    var x: Int\r\n}"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Len())
	assert.Equal(t, content, string(doc.Bytes()))
}

// TestLoad_Missing checks that read errors are wrapped, not swallowed.
func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

// TestDominantTerminator picks the first terminator seen.
func TestDominantTerminator(t *testing.T) {
	assert.Equal(t, "\r\n", DominantTerminator(ParseString("a\r\nb\n")))
	assert.Equal(t, "\n", DominantTerminator(ParseString("no newline")))
	assert.Equal(t, "\n", DominantTerminator(model.Document{}))
}
