package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"app only", "app-only", ModeAppOnly, false},
		{"app plus sidecar", "app+sidecar", ModeAppSidecar, false},
		{"full", "full", ModeFull, false},
		{"empty defaults", "", DefaultMode, false},
		{"unknown", "everything", "", true},
		{"case sensitive", "Full", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestMode_RequiresSidecar(t *testing.T) {
	assert.False(t, ModeAppOnly.RequiresSidecar())
	assert.True(t, ModeAppSidecar.RequiresSidecar())
	assert.True(t, ModeFull.RequiresSidecar())
}

func TestMode_IncludesSecondaries(t *testing.T) {
	assert.False(t, ModeAppOnly.IncludesSecondaries())
	assert.False(t, ModeAppSidecar.IncludesSecondaries())
	assert.True(t, ModeFull.IncludesSecondaries())
}
