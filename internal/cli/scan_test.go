package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/stree"
)

// resetScanFlags restores the shared flag struct between tests; cobra
// command state is package-global.
func resetScanFlags() {
	scanOpts = scanFlags{}
}

func TestBuildRequestDefaults(t *testing.T) {
	resetScanFlags()
	req, err := buildRequest("/tmp/x")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x", req.Root)
	assert.Equal(t, "classic", req.Encoder)
	assert.Equal(t, scanmodel.SortDirsFirst, req.Sort)
	assert.Equal(t, scanmodel.PathName, req.PathDisplay)
	assert.Nil(t, req.Search)
}

func TestBuildRequestAIToolsDefault(t *testing.T) {
	resetScanFlags()
	t.Setenv("AI_TOOLS", "1")
	req, err := buildRequest(".")
	require.NoError(t, err)
	assert.Equal(t, "ai", req.Encoder)
}

func TestBuildRequestSearchAndFilters(t *testing.T) {
	resetScanFlags()
	scanOpts.search = "TODO"
	scanOpts.searchRegex = true
	scanOpts.lineContent = true
	scanOpts.extensions = []string{"go", "rs"}
	scanOpts.minSize = "1k"
	scanOpts.maxSize = "2M"
	scanOpts.kinds = []string{"file"}

	req, err := buildRequest(".")
	require.NoError(t, err)

	require.NotNil(t, req.Search)
	assert.True(t, req.Search.Regex)
	assert.True(t, req.Search.IncludeLineContent)
	assert.Equal(t, int64(1024), req.Filter.Size.Min)
	assert.Equal(t, int64(2<<20), req.Filter.Size.Max)
	assert.Equal(t, []scanmodel.EntryKind{scanmodel.KindFile}, req.Filter.Kinds)
}

func TestParseSizeSpecErrors(t *testing.T) {
	resetScanFlags()
	scanOpts.minSize = "lots"
	_, err := buildRequest(".")
	var se *stree.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stree.CodeInvalidSizeSpec, se.Code)
}

func TestParseDateSpecErrors(t *testing.T) {
	resetScanFlags()
	scanOpts.newerThan = "January 1st"
	_, err := buildRequest(".")
	var se *stree.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stree.CodeInvalidDateSpec, se.Code)
}

func TestParseDateRangeInclusive(t *testing.T) {
	r, err := parseDateRange("2025-03-01", "2025-03-02")
	require.NoError(t, err)
	assert.Less(t, r.Min, r.Max)
	assert.Equal(t, int64(86400*2-1), r.Max-r.Min)
}

func TestScanCommandEndToEnd(t *testing.T) {
	resetScanFlags()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))

	var out bytes.Buffer
	cmd := RootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"scan", root, "--encoder", "stats"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "F:1 D:1")
}

func TestExtractExitCode(t *testing.T) {
	assert.Equal(t, 0, extractExitCode(nil))
	assert.Equal(t, 1, extractExitCode(assert.AnError))
	assert.Equal(t, 2, extractExitCode(stree.New(stree.CodeCapExceeded, "cap", nil)))
	assert.Equal(t, 1, extractExitCode(stree.New(stree.CodeInvalidPath, "nope", nil)))
}
