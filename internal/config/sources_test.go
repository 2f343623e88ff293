package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source Source
		want   string
	}{
		{SourceDefault, "default"},
		{SourceSystem, "system"},
		{SourceUser, "user"},
		{SourceLocal, "local"},
		{SourceEnv, "env"},
		{SourceFlag, "flag"},
		{Source(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.source.String())
		})
	}
}

// TestSource_Precedence verifies the Source iota ordering matches the §4.8
// resolution order: env > local > user > system > defaults.
func TestSource_Precedence(t *testing.T) {
	t.Parallel()

	assert.Less(t, int(SourceDefault), int(SourceSystem))
	assert.Less(t, int(SourceSystem), int(SourceUser))
	assert.Less(t, int(SourceUser), int(SourceLocal))
	assert.Less(t, int(SourceLocal), int(SourceEnv))
	assert.Less(t, int(SourceEnv), int(SourceFlag))
}

func TestSourceMap_KeyAssignment(t *testing.T) {
	t.Parallel()

	sm := make(SourceMap)
	sm["strict"] = SourceFlag
	sm["compliance"] = SourceEnv
	sm["privacy_mode"] = SourceDefault

	assert.Equal(t, SourceFlag, sm["strict"])
	assert.Equal(t, SourceEnv, sm["compliance"])
	assert.Equal(t, SourceDefault, sm["privacy_mode"])
}
