package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

func TestDetectProject_Go(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/foo\n\ngo 1.24\n"), 0o644))

	ctx := DetectProject(root)
	assert.Equal(t, scanmodel.ProjectGo, ctx.Kind)
	assert.Equal(t, "example.com/foo", ctx.Description)
	assert.Equal(t, "go.mod", ctx.MarkerFile)
}

func TestDetectProject_Node(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"name": "my-pkg", "version": "1.0.0"}`), 0o644))

	ctx := DetectProject(root)
	assert.Equal(t, scanmodel.ProjectNode, ctx.Kind)
	assert.Equal(t, "my-pkg", ctx.Description)
}

func TestDetectProject_PrefersManifestOverGit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	cargoToml := "name = \"mycrate\"\nversion = \"0.1.0\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte(cargoToml), 0o644))

	ctx := DetectProject(root)
	assert.Equal(t, scanmodel.ProjectRust, ctx.Kind)
}

func TestDetectProject_Unknown(t *testing.T) {
	root := t.TempDir()
	ctx := DetectProject(root)
	assert.Equal(t, scanmodel.ProjectUnknown, ctx.Kind)
}
