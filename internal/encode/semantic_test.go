package encode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

func TestSemanticEncoderScoresGoFiles(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "svc.go")
	require.NoError(t, os.WriteFile(src, []byte(`package svc

// Open is the exported entry point.
func Open() {}

func hidden() {}
`), 0o644))

	events := []scanmodel.ScanEvent{
		{Kind: scanmodel.EventEnterDir, Node: scanmodel.FileNode{AbsPath: root, Kind: scanmodel.KindDir}},
		{Kind: scanmodel.EventFile, Node: scanmodel.FileNode{AbsPath: src, Depth: 1, Kind: scanmodel.KindFile, Size: 10}},
		{Kind: scanmodel.EventExitDir, Path: "."},
	}

	out, err := Run("semantic", Options{Root: root}, events)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "QUANTUM_SEMANTIC_V1")
	assert.Contains(t, text, "FILE: svc.go")
	assert.Contains(t, text, "exported func Open score=5")
	assert.Contains(t, text, "(1 collapsed)")
	assert.Contains(t, text, "QUANTUM_NATIVE_V1")
	assert.Contains(t, text, "=Open\n", "surviving symbols extend the quantum token table")
	assert.NotContains(t, text[:len(text)/2], "hidden", "private symbols are collapsed, not listed")
}

func TestRelationsEncoderRendersGraph(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package p\n\nfunc Shared() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package p\n\nfunc use() { Shared() }\n"), 0o644))

	events := []scanmodel.ScanEvent{
		{Kind: scanmodel.EventEnterDir, Node: scanmodel.FileNode{AbsPath: root, Kind: scanmodel.KindDir}},
		{Kind: scanmodel.EventFile, Node: scanmodel.FileNode{AbsPath: filepath.Join(root, "a.go"), Depth: 1, Kind: scanmodel.KindFile}},
		{Kind: scanmodel.EventFile, Node: scanmodel.FileNode{AbsPath: filepath.Join(root, "b.go"), Depth: 1, Kind: scanmodel.KindFile}},
		{Kind: scanmodel.EventExitDir, Path: "."},
	}

	out, err := Run("relations", Options{Root: root}, events)
	require.NoError(t, err)
	assert.Contains(t, string(out), "RELATIONS")
	assert.Contains(t, string(out), "b.go -> a.go")
	assert.Contains(t, string(out), "```mermaid")
}
