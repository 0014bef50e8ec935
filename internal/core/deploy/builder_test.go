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

// testEnv returns a resolved environment satisfying both schemas, with
// overrides applied on top.
func testEnv(overrides map[string]string) *EnvView {
	values := map[string]string{
		"AZURE_LOCATION":       "westeurope",
		"AZURE_RESOURCE_GROUP": "shipway-rg",
		"AZURE_CONTAINER_NAME": "shipway-app",
		"AZURE_DNS_LABEL":      "shipway-app",
		"PUBLIC_DOMAIN":        "app.example.com",
		"ACME_EMAIL":           "ops@example.com",
		"CONTAINER_IMAGE":      "ghcr.io/acme/web:1.0.0",
		"BASIC_AUTH_USER":      "admin",
		"BASIC_AUTH_HASH":      "$2b$14$0123456789012345678901",
		"DEFAULT_CPU_CORES":    "1.0",
		"DEFAULT_MEMORY_GB":    "2.0",
	}
	for k, v := range overrides {
		if v == "" {
			delete(values, k)
			continue
		}
		values[k] = v
	}
	return NewEnvView(values)
}

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Services: []manifest.Service{
			{
				Name:  "web",
				Role:  manifest.RoleApp,
				Image: "acme/web-from-manifest:2",
				Ports: []manifest.Port{{Target: 8080, Published: 8081}},
				Command: []string{
					"sh", "-lc", "serve --port 8080",
				},
				Environment: map[string]string{"WEB_PORT": "3000"},
				Volumes: []manifest.VolumeMount{
					{Type: manifest.VolumeMountTypeVolume, Source: "workspace", Target: "/srv/work"},
					{Type: manifest.VolumeMountTypeBind, Source: "./local", Target: "/srv/local"},
				},
			},
			{
				Name: "tls-proxy",
				Role: manifest.RoleSidecar,
			},
			{
				Name:  "ftp",
				Role:  manifest.RoleSecondary,
				Image: "acme/ftp:1",
				Ports: []manifest.Port{{Target: 21}},
			},
		},
	}
}

func testRoles(t *testing.T, m *manifest.Manifest) manifest.RoleMap {
	t.Helper()
	roles, err := m.Roles(manifest.RoleOverrides{})
	require.NoError(t, err)
	return roles
}

func testContext(env *EnvView, inv Invocation) *Context {
	return &Context{RepoRoot: "/tmp/repo", Env: env, Invocation: inv}
}

// =============================================================================
// Image Precedence
// =============================================================================

func TestBuild_ImagePrecedence(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	// Invocation override wins over everything.
	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppSidecar, Image: "override/web:9"})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, "override/web:9", plan.App.Image)

	// Without an override, the environment wins over the manifest.
	ctx = testContext(testEnv(nil), Invocation{Mode: ModeAppSidecar})
	plan, err = Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, "ghcr.io/acme/web:1.0.0", plan.App.Image)

	// Without either, the manifest value is used.
	ctx = testContext(testEnv(map[string]string{"CONTAINER_IMAGE": ""}), Invocation{Mode: ModeAppSidecar})
	plan, err = Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, "acme/web-from-manifest:2", plan.App.Image)
}

func TestBuild_NoImageAnywhereFails(t *testing.T) {
	m := testManifest()
	m.Services[0].Image = ""
	m.Services[0].Build = &manifest.BuildConfig{Context: "."}
	roles := testRoles(t, m)

	ctx := testContext(testEnv(map[string]string{"CONTAINER_IMAGE": ""}), Invocation{Mode: ModeAppOnly})
	_, err := Build(ctx, m, roles)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanIncomplete)
}

// =============================================================================
// Sizing Precedence
// =============================================================================

func TestBuild_CPUAndMemoryPrecedence(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	// Invocation override first.
	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppOnly, CPUCores: 3, MemoryGB: 7})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, plan.App.CPUCores, 0.001)
	assert.InDelta(t, 7.0, plan.App.MemoryGB, 0.001)

	// Manifest limits next.
	m.Services[0].Resources = manifest.ServiceResources{CPULimit: 2, MemoryBytes: 1024 * 1024 * 1024}
	ctx = testContext(testEnv(nil), Invocation{Mode: ModeAppOnly})
	plan, err = Build(ctx, m, roles)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, plan.App.CPUCores, 0.001)
	assert.InDelta(t, 1.0, plan.App.MemoryGB, 0.001)

	// Environment defaults last.
	m.Services[0].Resources = manifest.ServiceResources{}
	ctx = testContext(testEnv(map[string]string{"DEFAULT_CPU_CORES": "1.5", "DEFAULT_MEMORY_GB": "3.5"}), Invocation{Mode: ModeAppOnly})
	plan, err = Build(ctx, m, roles)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, plan.App.CPUCores, 0.001)
	assert.InDelta(t, 3.5, plan.App.MemoryGB, 0.001)
}

func TestBuild_BadDefaultCPUFails(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(map[string]string{"DEFAULT_CPU_CORES": "lots"}), Invocation{Mode: ModeAppOnly})
	_, err := Build(ctx, m, roles)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadValue)
}

// =============================================================================
// Port Resolution
// =============================================================================

func TestBuild_AppPortPrecedence(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	// Override first.
	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppOnly, Port: 9999})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, 9999, plan.AppPort)
	assert.Contains(t, plan.App.Ports, 9999)

	// Manifest target port next.
	ctx = testContext(testEnv(nil), Invocation{Mode: ModeAppOnly})
	plan, err = Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, 8080, plan.AppPort)
	assert.Equal(t, []int{8080}, plan.App.Ports)

	// WEB_PORT from the service environment next.
	m.Services[0].Ports = nil
	plan, err = Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, 3000, plan.AppPort)
	assert.Equal(t, []int{3000}, plan.App.Ports)

	// Built-in default last.
	m.Services[0].Environment = nil
	plan, err = Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, DefaultAppPort, plan.AppPort)
	assert.Equal(t, []int{DefaultAppPort}, plan.App.Ports)
}

// =============================================================================
// Sidecar Shaping
// =============================================================================

func TestBuild_SidecarDefaults(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppSidecar})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)

	require.NotNil(t, plan.Sidecar)
	assert.Equal(t, DefaultSidecarImage, plan.Sidecar.Image)
	assert.Equal(t, []int{80, 443}, plan.Sidecar.Ports)
	assert.InDelta(t, DefaultSidecarCPUCores, plan.Sidecar.CPUCores, 0.001)
	assert.InDelta(t, DefaultSidecarMemoryGB, plan.Sidecar.MemoryGB, 0.001)
	assert.Equal(t, []VolumeIntent{
		{Volume: SidecarDataVolume, MountPath: "/data"},
		{Volume: SidecarConfigVolume, MountPath: "/config"},
	}, plan.Sidecar.Volumes)
}

func TestBuild_SidecarImageOverride(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppSidecar, SidecarImage: "ghcr.io/acme/web-caddy:mirror"})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	require.NotNil(t, plan.Sidecar)
	assert.Equal(t, "ghcr.io/acme/web-caddy:mirror", plan.Sidecar.Image)
}

func TestBuild_FileShares(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppSidecar})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"shipway-app-workspace",
		"shipway-app-caddy-data",
		"shipway-app-caddy-config",
	}, plan.FileShares())
}

func TestBuild_SidecarRequiredButMissing(t *testing.T) {
	m := testManifest()
	m.Services[1].Role = manifest.RoleUnassigned
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppSidecar})
	_, err := Build(ctx, m, roles)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanIncomplete)

	var ierr *IncompleteError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, manifest.RoleSidecar, ierr.Role)
}

func TestBuild_OmitSidecarProceeds(t *testing.T) {
	m := testManifest()
	m.Services[1].Role = manifest.RoleUnassigned
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppSidecar, OmitSidecar: true})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Nil(t, plan.Sidecar)
}

// =============================================================================
// Secondaries
// =============================================================================

func TestBuild_SecondariesOnlyInFullMode(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppSidecar})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Empty(t, plan.Secondaries)

	ctx = testContext(testEnv(nil), Invocation{Mode: ModeFull})
	plan, err = Build(ctx, m, roles)
	require.NoError(t, err)
	require.Len(t, plan.Secondaries, 1)
	assert.Equal(t, "ftp", plan.Secondaries[0].Service)
	assert.Equal(t, manifest.RoleSecondary, plan.Secondaries[0].Role)
}

func TestBuild_SecondaryWithoutImageFails(t *testing.T) {
	m := testManifest()
	m.Services[2].Image = ""
	m.Services[2].Build = &manifest.BuildConfig{Context: "./ftp"}
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeFull})
	_, err := Build(ctx, m, roles)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanIncomplete)
}

// =============================================================================
// Registry, Naming, Volumes
// =============================================================================

func TestBuild_RegistryAuthOnlyWhenPrivate(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppOnly})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Nil(t, plan.Registry)

	ctx = testContext(testEnv(map[string]string{
		"GHCR_PRIVATE": "true",
		"GHCR_TOKEN":   "tok",
	}), Invocation{Mode: ModeAppOnly})
	plan, err = Build(ctx, m, roles)
	require.NoError(t, err)
	require.NotNil(t, plan.Registry)
	assert.Equal(t, "ghcr.io", plan.Registry.Server)
	// Username falls back to the image path owner.
	assert.Equal(t, "acme", plan.Registry.Username)
	assert.Equal(t, "tok", plan.Registry.Password)
}

func TestBuild_NamingAndVaultURI(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(map[string]string{"AZURE_DNS_LABEL": "My App"}), Invocation{Mode: ModeAppOnly})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, "shipway-app", plan.Naming.Base)
	assert.Equal(t, "my-app", plan.Naming.DNSLabel)
	assert.Equal(t, "https://shipwayrgkv.vault.azure.net/", plan.KeyVaultURI)
}

func TestBuild_DNSLabelDefaultsToBaseName(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(map[string]string{"AZURE_DNS_LABEL": ""}), Invocation{Mode: ModeAppOnly})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	assert.Equal(t, "shipway-app", plan.Naming.DNSLabel)
}

func TestBuild_OnlyDurableVolumesCarried(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeAppOnly})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)
	require.Len(t, plan.App.Volumes, 1)
	assert.Equal(t, "workspace", plan.App.Volumes[0].Volume)
	assert.Equal(t, "/srv/work", plan.App.Volumes[0].MountPath)
}

func TestBuild_MissingContainerNameFails(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(map[string]string{"AZURE_CONTAINER_NAME": "", "AZURE_DNS_LABEL": ""}), Invocation{Mode: ModeAppOnly})
	_, err := Build(ctx, m, roles)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanIncomplete)
}

func TestBuild_UnknownModeFails(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: Mode("sideways")})
	_, err := Build(ctx, m, roles)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadMode)
}

// =============================================================================
// Plan Cloning
// =============================================================================

func TestPlanClone_IsDeep(t *testing.T) {
	m := testManifest()
	roles := testRoles(t, m)

	ctx := testContext(testEnv(nil), Invocation{Mode: ModeFull})
	plan, err := Build(ctx, m, roles)
	require.NoError(t, err)

	snap := plan.Clone()
	plan.App.Image = "mutated:1"
	plan.App.Ports[0] = 1
	plan.Sidecar.Image = "mutated:2"
	plan.Secondaries[0].Ports[0] = 2
	plan.Extra["k"] = "v"
	plan.Units[0].Services[0] = "mutated"

	assert.Equal(t, "ghcr.io/acme/web:1.0.0", snap.App.Image)
	assert.Equal(t, 8080, snap.App.Ports[0])
	assert.Equal(t, DefaultSidecarImage, snap.Sidecar.Image)
	assert.Equal(t, 21, snap.Secondaries[0].Ports[0])
	assert.NotContains(t, snap.Extra, "k")
	assert.Equal(t, "web", snap.Units[0].Services[0])
}
