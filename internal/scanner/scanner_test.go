package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/filter"
	"github.com/smarttree/smarttree/internal/ignore"
	"github.com/smarttree/smarttree/internal/scanmodel"
)

func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "left-pad"), 0o755))

	files := map[string]string{
		"main.go":                       "package main\n\nfunc main() {}\n",
		"README.md":                     "# hello\n",
		"src/app.go":                    "package src\n\nfunc App() {}\n",
		"node_modules/left-pad/index.js": "module.exports = leftPad\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	return root
}

func countEvents(events []scanmodel.ScanEvent, kind scanmodel.EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestScanner_EmitsEnterExitSummary(t *testing.T) {
	root := buildTree(t)
	req := scanmodel.ScanRequest{Root: root}

	s, err := New(req, nil, nil, ModeDirect)
	require.NoError(t, err)

	events, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, countEvents(events, scanmodel.EventSummary))
	assert.Greater(t, countEvents(events, scanmodel.EventEnterDir), 0)
	assert.Greater(t, countEvents(events, scanmodel.EventExitDir), 0)
	assert.Greater(t, countEvents(events, scanmodel.EventFile), 0)

	last := events[len(events)-1]
	require.Equal(t, scanmodel.EventSummary, last.Kind)
	assert.Equal(t, 4, last.Stats.FileCount)
}

func TestScanner_BuiltinIgnoreExcludesNodeModules(t *testing.T) {
	root := buildTree(t)
	req := scanmodel.ScanRequest{Root: root}

	ignorer := ignore.NewCompositeIgnorer(ignore.NewBuiltinMatcher(), nil, nil)
	s, err := New(req, nil, ignorer, ModeDirect)
	require.NoError(t, err)

	events, err := s.Scan(context.Background())
	require.NoError(t, err)

	for _, ev := range events {
		if ev.Kind == scanmodel.EventFile || ev.Kind == scanmodel.EventEnterDir {
			assert.NotContains(t, ev.Node.AbsPath, "node_modules")
		}
	}
}

func TestScanner_ShowIgnoredEmitsMarker(t *testing.T) {
	root := buildTree(t)
	req := scanmodel.ScanRequest{Root: root, Filter: scanmodel.FilterSpec{ShowIgnored: true}}

	filterSet, err := filter.Compile(req.Filter)
	require.NoError(t, err)
	ignorer := ignore.NewCompositeIgnorer(ignore.NewBuiltinMatcher(), nil, nil)

	s, err := New(req, filterSet, ignorer, ModeDirect)
	require.NoError(t, err)

	events, err := s.Scan(context.Background())
	require.NoError(t, err)

	found := false
	for _, ev := range events {
		if ev.Node.IgnoredMarker {
			found = true
			assert.Equal(t, "builtin", ev.Node.IgnoreSource)
		}
	}
	assert.True(t, found, "expected at least one IgnoredMarker leaf for node_modules")
}

func TestScanner_MaxDepthLimitsRecursion(t *testing.T) {
	root := buildTree(t)
	req := scanmodel.ScanRequest{Root: root, MaxDepth: 1}

	s, err := New(req, nil, nil, ModeDirect)
	require.NoError(t, err)

	events, err := s.Scan(context.Background())
	require.NoError(t, err)

	for _, ev := range events {
		if ev.Kind == scanmodel.EventFile || ev.Kind == scanmodel.EventEnterDir {
			assert.LessOrEqual(t, ev.Node.Depth, 1)
		}
	}
}

func TestScanner_InaccessibleDirEmitted(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission denial is not enforced when running as root")
	}
	root := t.TempDir()
	blocked := filepath.Join(root, "blocked")
	require.NoError(t, os.MkdirAll(blocked, 0o000))
	defer os.Chmod(blocked, 0o755)

	req := scanmodel.ScanRequest{Root: root}
	s, err := New(req, nil, nil, ModeDirect)
	require.NoError(t, err)

	events, err := s.Scan(context.Background())
	require.NoError(t, err)

	found := false
	for _, ev := range events {
		if ev.Kind == scanmodel.EventInaccessibleDir {
			found = true
			assert.Equal(t, "permission-denied", ev.Reason)
		}
	}
	assert.True(t, found)
}

func TestScanner_RejectsNonDirectoryRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := New(scanmodel.ScanRequest{Root: file}, nil, nil, ModeDirect)
	require.Error(t, err)
}

func TestScanner_CapExceededReturnsPartial(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, filepathName(i)), []byte("x"), 0o644))
	}

	req := scanmodel.ScanRequest{Root: root, MaxEntries: 3}
	s, err := New(req, nil, nil, ModeDirect)
	require.NoError(t, err)

	_, err = s.Scan(context.Background())
	require.Error(t, err)
}

func filepathName(i int) string {
	return "file" + string(rune('a'+i)) + ".txt"
}
