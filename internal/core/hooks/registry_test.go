package hooks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/shipway/internal/core/deploy"
)

func TestRegistryRegisterAndLoad(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("sizing", Hooks{
		BuildDeployPlan: func(*deploy.Context, *deploy.Plan) error { return nil },
	}))

	h, err := reg.Load("sizing")
	require.NoError(t, err)
	assert.NotNil(t, h.BuildDeployPlan)
	assert.Equal(t, []string{"sizing"}, reg.Names())
}

func TestRegistryRejectsDuplicateAndEmptyNames(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", Hooks{}))
	require.Error(t, reg.Register("a", Hooks{}))
	require.Error(t, reg.Register("  ", Hooks{}))
}

func TestRegistryUnknownNameIsLoadError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("known", Hooks{}))

	_, err := reg.Load("typo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHookLoad))

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "typo", loadErr.Ref)
	assert.Contains(t, err.Error(), "known")
}

func TestRegistryEmptyRefMeansNoHooks(t *testing.T) {
	reg := NewRegistry()
	h, err := reg.Load("")
	require.NoError(t, err)
	assert.True(t, h.Empty())
}
