package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve_Defaults(t *testing.T) {
	dir := t.TempDir()
	rc, err := Resolve(ResolveOptions{
		TargetDir:         dir,
		UserConfigPath:    filepath.Join(dir, "nope-user.toml"),
		SystemConfigPath:  filepath.Join(dir, "nope-system.toml"),
	})
	require.NoError(t, err)
	require.Equal(t, 20000, rc.Config.MaxTokensPerResponse)
	require.Equal(t, SourceDefault, rc.Sources["max_tokens_per_response"])
}

func TestResolve_LocalOverridesUser(t *testing.T) {
	dir := t.TempDir()
	userPath := filepath.Join(dir, "user.toml")
	localPath := filepath.Join(dir, "smarttree.toml")

	require.NoError(t, os.WriteFile(userPath, []byte("max_tokens_per_response = 5000\n"), 0o644))
	require.NoError(t, os.WriteFile(localPath, []byte("max_tokens_per_response = 9000\n"), 0o644))

	rc, err := Resolve(ResolveOptions{
		TargetDir:        dir,
		UserConfigPath:   userPath,
		SystemConfigPath: filepath.Join(dir, "nope.toml"),
	})
	require.NoError(t, err)
	require.Equal(t, 9000, rc.Config.MaxTokensPerResponse)
	require.Equal(t, SourceLocal, rc.Sources["max_tokens_per_response"])
}

func TestResolve_EnvOverridesLocal(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "smarttree.toml")
	require.NoError(t, os.WriteFile(localPath, []byte("max_tokens_per_response = 9000\n"), 0o644))

	t.Setenv(EnvMaxTokens, "42")

	rc, err := Resolve(ResolveOptions{
		TargetDir:        dir,
		UserConfigPath:   filepath.Join(dir, "nope-user.toml"),
		SystemConfigPath: filepath.Join(dir, "nope-system.toml"),
	})
	require.NoError(t, err)
	require.Equal(t, 42, rc.Config.MaxTokensPerResponse)
	require.Equal(t, SourceEnv, rc.Sources["max_tokens_per_response"])
}

func TestResolve_CLIOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvMaxTokens, "42")

	rc, err := Resolve(ResolveOptions{
		TargetDir:        dir,
		UserConfigPath:   filepath.Join(dir, "nope-user.toml"),
		SystemConfigPath: filepath.Join(dir, "nope-system.toml"),
		CLIOverrides:     map[string]any{"max_tokens_per_response": 7},
	})
	require.NoError(t, err)
	require.Equal(t, 7, rc.Config.MaxTokensPerResponse)
	require.Equal(t, SourceFlag, rc.Sources["max_tokens_per_response"])
}
