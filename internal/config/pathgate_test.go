package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttree/smarttree/internal/stree"
)

func TestCheckPathAllowThenDeny(t *testing.T) {
	cfg := &DaemonConfig{
		AllowedPaths: []string{"/srv/projects"},
		BlockedPaths: []string{"/srv/projects/secret"},
	}

	assert.NoError(t, cfg.CheckPath("/srv/projects/app"))
	assert.NoError(t, cfg.CheckPath("/srv/projects"))

	err := cfg.CheckPath("/etc/passwd")
	var se *stree.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stree.CodePermissionDenied, se.Code)

	err = cfg.CheckPath("/srv/projects/secret/keys")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stree.CodePermissionDenied, se.Code)
}

func TestCheckPathEmptyAllowListPermits(t *testing.T) {
	cfg := &DaemonConfig{BlockedPaths: []string{"/blocked"}}
	assert.NoError(t, cfg.CheckPath("/anywhere/else"))
	assert.Error(t, cfg.CheckPath("/blocked/sub"))
}

func TestCheckPathComponentAware(t *testing.T) {
	cfg := &DaemonConfig{AllowedPaths: []string{"/srv/app"}}
	assert.Error(t, cfg.CheckPath("/srv/application"), "prefix match is per component")
}
