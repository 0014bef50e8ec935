package deploy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/shipway/internal/core/manifest"
)

// =============================================================================
// Fixtures
// =============================================================================

// splitPlan returns a sidecar-fronted plan with no secondaries, packing under
// the default budget of 5 public ports.
func splitPlan() *Plan {
	return &Plan{
		Mode:   ModeFull,
		Naming: Naming{Base: "shipway-app", DNSLabel: "shipway-app"},
		App: ServicePlan{
			Service: "web",
			Role:    manifest.RoleApp,
			Ports:   []int{8080},
		},
		Sidecar: &ServicePlan{
			Service: "tls-proxy",
			Role:    manifest.RoleSidecar,
			Ports:   []int{80, 443},
		},
		PortBudget: DefaultPublicPortBudget,
	}
}

func secondary(name string, ports ...int) ServicePlan {
	return ServicePlan{Service: name, Role: manifest.RoleSecondary, Ports: ports}
}

// =============================================================================
// Single Unit Packing
// =============================================================================

func TestAssignUnits_SidecarPortsArePublic(t *testing.T) {
	plan := splitPlan()

	require.NoError(t, AssignUnits(plan))

	require.Len(t, plan.Units, 1)
	assert.Equal(t, "shipway-app", plan.Units[0].Name)
	assert.Equal(t, []string{"web", "tls-proxy"}, plan.Units[0].Services)
	// The app's 8080 stays private behind the proxy.
	assert.Equal(t, []int{80, 443}, plan.Units[0].Ports)
}

func TestAssignUnits_AppPortsPublicWithoutSidecar(t *testing.T) {
	plan := splitPlan()
	plan.Sidecar = nil

	require.NoError(t, AssignUnits(plan))

	require.Len(t, plan.Units, 1)
	assert.Equal(t, []string{"web"}, plan.Units[0].Services)
	assert.Equal(t, []int{8080}, plan.Units[0].Ports)
}

func TestAssignUnits_SmallSecondaryJoinsPrimary(t *testing.T) {
	plan := splitPlan()
	plan.Secondaries = []ServicePlan{secondary("ftp", 21)}

	require.NoError(t, AssignUnits(plan))

	require.Len(t, plan.Units, 1)
	assert.Equal(t, []string{"web", "tls-proxy", "ftp"}, plan.Units[0].Services)
	assert.Equal(t, []int{80, 443, 21}, plan.Units[0].Ports)
}

// =============================================================================
// Splitting
// =============================================================================

func TestAssignUnits_WideSecondarySplitsOut(t *testing.T) {
	plan := splitPlan()
	plan.Secondaries = []ServicePlan{secondary("media", 5000, 5001, 5002, 5003)}

	require.NoError(t, AssignUnits(plan))

	// Primary first, split-off unit after.
	require.Len(t, plan.Units, 2)
	assert.Equal(t, "shipway-app", plan.Units[0].Name)
	assert.Equal(t, []string{"web", "tls-proxy"}, plan.Units[0].Services)
	assert.Equal(t, "shipway-app-media", plan.Units[1].Name)
	assert.Equal(t, "shipway-app-media", plan.Units[1].DNSLabel)
	assert.Equal(t, []string{"media"}, plan.Units[1].Services)
	assert.Equal(t, []int{5000, 5001, 5002, 5003}, plan.Units[1].Ports)
}

func TestAssignUnits_PortCollisionForcesSplit(t *testing.T) {
	plan := splitPlan()
	// 443 is already bound by the sidecar; members share one network
	// namespace, so the secondary cannot join even though budget remains.
	plan.Secondaries = []ServicePlan{secondary("mirror", 443)}

	require.NoError(t, AssignUnits(plan))

	require.Len(t, plan.Units, 2)
	assert.Equal(t, []string{"mirror"}, plan.Units[1].Services)
}

func TestAssignUnits_CollisionWithPrivateAppPortForcesSplit(t *testing.T) {
	plan := splitPlan()
	// 8080 is private to the unit but still bound inside it.
	plan.Secondaries = []ServicePlan{secondary("shadow", 8080)}

	require.NoError(t, AssignUnits(plan))

	require.Len(t, plan.Units, 2)
	assert.Equal(t, []string{"shadow"}, plan.Units[1].Services)
}

func TestAssignUnits_SecondaryOverBudgetAloneFails(t *testing.T) {
	plan := splitPlan()
	plan.Secondaries = []ServicePlan{secondary("hoard", 9000, 9001, 9002, 9003, 9004, 9005)}

	err := AssignUnits(plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPortBudget)

	var perr *PortBudgetError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "shipway-app-hoard", perr.Unit)
	assert.Equal(t, 6, perr.Ports)
	assert.Equal(t, DefaultPublicPortBudget, perr.Budget)
}

func TestAssignUnits_PrimaryOverBudgetFails(t *testing.T) {
	plan := splitPlan()
	plan.Sidecar.Ports = []int{80, 443, 8443, 9443, 10443, 11443}

	err := AssignUnits(plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPortBudget)
}

func TestAssignUnits_RecomputeReplacesUnits(t *testing.T) {
	plan := splitPlan()
	plan.Secondaries = []ServicePlan{secondary("ftp", 21)}
	require.NoError(t, AssignUnits(plan))
	require.Len(t, plan.Units, 1)

	// A hook widening the secondary's ports changes the packing on the
	// next pass.
	plan.Secondaries[0].Ports = []int{21, 2121, 2122, 2123}
	require.NoError(t, AssignUnits(plan))
	require.Len(t, plan.Units, 2)
}

// =============================================================================
// FTP Passive Range
// =============================================================================

func TestAssignUnits_PassiveRangeRidesWithControlPort(t *testing.T) {
	plan := splitPlan()
	plan.PortBudget = 10
	plan.FTPPassiveRange = &PortRange{Lo: 21000, Hi: 21003}
	plan.Secondaries = []ServicePlan{
		secondary("ftp", 21),
		secondary("cache", 6379),
	}

	require.NoError(t, AssignUnits(plan))

	// 2 sidecar + 1 control + 4 passive + 1 cache = 8 public ports.
	require.Len(t, plan.Units, 1)
	assert.Equal(t, []int{80, 443, 21, 21000, 21001, 21002, 21003, 6379}, plan.Units[0].Ports)
}

func TestAssignUnits_PassiveRangeCountsAgainstBudget(t *testing.T) {
	plan := splitPlan()
	plan.FTPPassiveRange = &PortRange{Lo: 21000, Hi: 21009}
	plan.Secondaries = []ServicePlan{secondary("ftp", 21)}

	// 11 ports cannot fit the primary's remaining budget of 3, nor a unit
	// of its own under the default budget of 5.
	err := AssignUnits(plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPortBudget)
}

func TestAssignUnits_PassiveRangeIgnoredWithoutControlPort(t *testing.T) {
	plan := splitPlan()
	plan.FTPPassiveRange = &PortRange{Lo: 21000, Hi: 21009}
	plan.Secondaries = []ServicePlan{secondary("cache", 6379)}

	require.NoError(t, AssignUnits(plan))

	require.Len(t, plan.Units, 1)
	assert.Equal(t, []int{80, 443, 6379}, plan.Units[0].Ports)
}
