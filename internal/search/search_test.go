package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompile_RejectsEmptyPattern(t *testing.T) {
	_, err := Compile(scanmodel.SearchSpec{})
	require.Error(t, err)
}

func TestCompile_RejectsInvalidRegex(t *testing.T) {
	_, err := Compile(scanmodel.SearchSpec{Pattern: "(unterminated", Regex: true})
	require.Error(t, err)
}

func TestSearch_LiteralMatch(t *testing.T) {
	path := writeTemp(t, "line one\nTODO fix this\nline three\n")
	m, err := Compile(scanmodel.SearchSpec{Pattern: "TODO"})
	require.NoError(t, err)

	matches, err := m.Search(path)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Line)
}

func TestSearch_RegexMatch(t *testing.T) {
	path := writeTemp(t, "func Foo() {}\nvar x = 1\nfunc Bar() {}\n")
	m, err := Compile(scanmodel.SearchSpec{Pattern: `func \w+\(`, Regex: true})
	require.NoError(t, err)

	matches, err := m.Search(path)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestSearch_RespectsMaxMatchesPerFile(t *testing.T) {
	content := ""
	for i := 0; i < 10; i++ {
		content += "needle\n"
	}
	path := writeTemp(t, content)

	m, err := Compile(scanmodel.SearchSpec{Pattern: "needle", MaxMatchesPerFile: 3})
	require.NoError(t, err)

	matches, err := m.Search(path)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestSearch_SkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin.dat")
	data := append([]byte("needle"), 0x00, 0x01, 0x02)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := Compile(scanmodel.SearchSpec{Pattern: "needle"})
	require.NoError(t, err)

	matches, err := m.Search(path)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestSearch_IncludeLineContentTruncates(t *testing.T) {
	longLine := ""
	for i := 0; i < 600; i++ {
		longLine += "x"
	}
	path := writeTemp(t, "needle "+longLine+"\n")

	m, err := Compile(scanmodel.SearchSpec{Pattern: "needle", IncludeLineContent: true})
	require.NoError(t, err)

	matches, err := m.Search(path)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Truncated)
	assert.LessOrEqual(t, len(matches[0].LineContent), maxLineContentBytes)
}

func TestSearch_ContextLinesCapturesSurroundingLines(t *testing.T) {
	path := writeTemp(t, "before\nneedle\nafter\n")
	m, err := Compile(scanmodel.SearchSpec{Pattern: "needle", IncludeLineContent: true, ContextLines: 1})
	require.NoError(t, err)

	matches, err := m.Search(path)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].LineContent, "before")
	assert.Contains(t, matches[0].LineContent, "needle")
	assert.Contains(t, matches[0].LineContent, "after")
}
