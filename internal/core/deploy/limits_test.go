package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/shipway/internal/core/manifest"
)

func limitsPlan() *Plan {
	plan := &Plan{
		Naming: Naming{Base: "shipway-app", DNSLabel: "shipway-app"},
		App: ServicePlan{
			Service:  "web",
			Role:     manifest.RoleApp,
			CPUCores: 2.0,
			MemoryGB: 4.0,
			Ports:    []int{8080},
		},
		Sidecar: &ServicePlan{
			Service:  "tls-proxy",
			Role:     manifest.RoleSidecar,
			CPUCores: 0.5,
			MemoryGB: 0.5,
			Ports:    []int{80, 443},
		},
		PortBudget: DefaultPublicPortBudget,
	}
	return plan
}

func TestValidatePlan_WithinLimits(t *testing.T) {
	plan := limitsPlan()
	require.NoError(t, AssignUnits(plan))

	result := ValidatePlan(plan)
	assert.True(t, result.Ok())
	assert.NoError(t, result.Error())
}

func TestValidatePlan_UnitCPUSumOverLimit(t *testing.T) {
	plan := limitsPlan()
	plan.App.CPUCores = 3.8
	require.NoError(t, AssignUnits(plan))

	result := ValidatePlan(plan)
	require.False(t, result.Ok())
	assert.Contains(t, result.Reason, "CPU limit would be exceeded: 4.3/4.0 cores")
}

func TestValidatePlan_UnitMemorySumOverLimit(t *testing.T) {
	plan := limitsPlan()
	plan.App.MemoryGB = 15.8
	require.NoError(t, AssignUnits(plan))

	result := ValidatePlan(plan)
	require.False(t, result.Ok())
	assert.Contains(t, result.Reason, "memory limit would be exceeded")
}

func TestValidatePlan_SplitUnitsCheckedSeparately(t *testing.T) {
	// Two services that together exceed the CPU ceiling pass once a port
	// collision forces them into separate units.
	plan := limitsPlan()
	plan.App.CPUCores = 3.5
	plan.Secondaries = []ServicePlan{{
		Service:  "mirror",
		Role:     manifest.RoleSecondary,
		CPUCores: 3.5,
		MemoryGB: 1.0,
		Ports:    []int{443},
	}}
	require.NoError(t, AssignUnits(plan))
	require.Len(t, plan.Units, 2)

	result := ValidatePlan(plan)
	assert.True(t, result.Ok())
}

func TestValidatePlan_NonPositiveCPU(t *testing.T) {
	plan := limitsPlan()
	plan.Sidecar.CPUCores = 0
	require.NoError(t, AssignUnits(plan))

	result := ValidatePlan(plan)
	require.False(t, result.Ok())
	assert.Contains(t, result.Reason, "cpu must be positive")
}

func TestValidatePlan_NonPositiveMemory(t *testing.T) {
	plan := limitsPlan()
	plan.App.MemoryGB = -1
	require.NoError(t, AssignUnits(plan))

	result := ValidatePlan(plan)
	require.False(t, result.Ok())
	assert.Contains(t, result.Reason, "memory must be positive")
}

func TestValidatePlan_BadUnitName(t *testing.T) {
	plan := limitsPlan()
	plan.Naming.Base = "Shipway App"
	require.NoError(t, AssignUnits(plan))

	result := ValidatePlan(plan)
	require.False(t, result.Ok())
	assert.Contains(t, result.Reason, "lowercase alphanumerics and hyphens")
}

func TestValidatePlan_NameTooLong(t *testing.T) {
	plan := limitsPlan()
	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	plan.Naming.Base = string(long)
	require.NoError(t, AssignUnits(plan))

	result := ValidatePlan(plan)
	require.False(t, result.Ok())
	assert.Contains(t, result.Reason, "exceeds 63 characters")
}

func TestValidationResult_ErrorCarriesReason(t *testing.T) {
	result := ValidationResult{Reason: "unit x: too big"}
	require.Error(t, result.Error())
	assert.Contains(t, result.Error().Error(), "too big")
}
