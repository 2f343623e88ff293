package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuiltinMatcher_IgnoresKnownDirs(t *testing.T) {
	m := NewBuiltinMatcher()

	assert.True(t, m.IsIgnored("node_modules", true))
	assert.True(t, m.IsIgnored(".git", true))
	assert.True(t, m.IsIgnored("vendor/pkg", true))
	assert.True(t, m.IsIgnored(".DS_Store", false))
}

func TestBuiltinMatcher_AllowsOrdinarySourceFiles(t *testing.T) {
	m := NewBuiltinMatcher()

	assert.False(t, m.IsIgnored("main.go", false))
	assert.False(t, m.IsIgnored("src/app.go", false))
}

func TestBuiltinMatcher_EmptyAndDotPathNeverIgnored(t *testing.T) {
	m := NewBuiltinMatcher()
	assert.False(t, m.IsIgnored("", true))
	assert.False(t, m.IsIgnored(".", true))
}
