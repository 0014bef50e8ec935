package portainer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/core/manifest"
)

// =============================================================================
// Fixtures
// =============================================================================

func stackManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Services: []manifest.Service{
			{
				Name:  "web",
				Role:  manifest.RoleApp,
				Build: &manifest.BuildConfig{Context: "/home/dev/checkout/docker"},
				Ports: []manifest.Port{{Target: 8080, Published: 8081}},
				Environment: map[string]string{
					"WEB_PORT": "8080",
				},
				Volumes: []manifest.VolumeMount{
					{Type: manifest.VolumeMountTypeBind, Source: "/home/dev/checkout/data", Target: "/srv/data", ReadOnly: true},
					{Type: manifest.VolumeMountTypeVolume, Source: "workspace", Target: "/srv/work"},
					{Type: manifest.VolumeMountTypeTmpfs, Target: "/tmp/scratch"},
				},
			},
			{
				Name:       "tls-proxy",
				Role:       manifest.RoleSidecar,
				Image:      "caddy:2-alpine",
				Entrypoint: []string{"caddy", "run"},
				Ports: []manifest.Port{
					{Target: 80, Published: 80},
					{Target: 443, Published: 443},
					{Target: 443, Published: 443, Protocol: "udp"},
				},
				Labels: map[string]string{"role": "edge"},
			},
			{
				Name:    "ftp",
				Role:    manifest.RoleSecondary,
				Image:   "acme/ftp:1",
				Command: []string{"ftpd", "--anon-off"},
				Ports:   []manifest.Port{{Target: 21, Published: 21}},
			},
		},
		Volumes: []manifest.Volume{
			{Name: "workspace"},
			{Name: "shared-cache", External: true},
		},
	}
}

func stackPlan() *deploy.Plan {
	return &deploy.Plan{
		Naming: deploy.Naming{Base: "acme-web", DNSLabel: "acme-web"},
		App: deploy.ServicePlan{
			Service: "web",
			Image:   "ghcr.io/acme/web:1.2.3",
			Env:     map[string]string{"WEB_PORT": "8080", "FEATURE_FLAG": "on"},
		},
		Sidecar: &deploy.ServicePlan{
			Service: "tls-proxy",
			Image:   "caddy:2-alpine",
		},
		Secondaries: []deploy.ServicePlan{
			{Service: "ftp", Image: "acme/ftp:1"},
		},
	}
}

// parseStack unmarshals generated stack YAML for structural assertions.
func parseStack(t *testing.T, content string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(content), &doc))
	return doc
}

func stackService(t *testing.T, doc map[string]any, name string) map[string]any {
	t.Helper()
	services, ok := doc["services"].(map[string]any)
	require.True(t, ok, "stack has no services section")
	svc, ok := services[name].(map[string]any)
	require.True(t, ok, "service %s missing from stack", name)
	return svc
}

// =============================================================================
// Stack Content
// =============================================================================

func TestStackContentSwapsAppBuildForPlanImage(t *testing.T) {
	content, err := StackContent(stackManifest(), stackPlan())
	require.NoError(t, err)

	doc := parseStack(t, content)
	web := stackService(t, doc, "web")

	assert.Equal(t, "ghcr.io/acme/web:1.2.3", web["image"])
	assert.NotContains(t, web, "build")
	assert.Equal(t, "unless-stopped", web["restart"])
}

func TestStackContentRejectsBuildOnNonAppServices(t *testing.T) {
	m := stackManifest()
	m.Services[2].Image = "acme/ftp:1"
	m.Services[2].Build = &manifest.BuildConfig{Context: "./ftp"}

	_, err := StackContent(m, stackPlan())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBuildContexts)
	assert.Contains(t, err.Error(), "ftp")
}

func TestStackContentRejectsAppBuildWithoutImage(t *testing.T) {
	plan := stackPlan()
	plan.App.Image = ""

	_, err := StackContent(stackManifest(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBuildContexts)
	assert.Contains(t, err.Error(), "web")
}

func TestStackContentPrefersPlanEnvAndCommand(t *testing.T) {
	plan := stackPlan()
	plan.Secondaries[0].Command = []string{"ftpd", "--anon-on"}

	content, err := StackContent(stackManifest(), plan)
	require.NoError(t, err)
	doc := parseStack(t, content)

	web := stackService(t, doc, "web")
	env, ok := web["environment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "on", env["FEATURE_FLAG"])

	ftp := stackService(t, doc, "ftp")
	assert.Equal(t, []any{"ftpd", "--anon-on"}, ftp["command"])
}

func TestStackContentRendersShortSyntax(t *testing.T) {
	content, err := StackContent(stackManifest(), stackPlan())
	require.NoError(t, err)
	doc := parseStack(t, content)

	web := stackService(t, doc, "web")
	assert.Equal(t, []any{"8081:8080"}, web["ports"])
	assert.Equal(t,
		[]any{"/home/dev/checkout/data:/srv/data:ro", "workspace:/srv/work"},
		web["volumes"], "tmpfs mounts must not survive")

	proxy := stackService(t, doc, "tls-proxy")
	assert.Equal(t, []any{"80:80", "443:443", "443:443/udp"}, proxy["ports"])
	assert.Equal(t, []any{"caddy", "run"}, proxy["entrypoint"])

	vols, ok := doc["volumes"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, vols, "workspace")
	external, ok := vols["shared-cache"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, external["external"])
}

func TestStackContentKeepsManifestValuesWhenPlanIsSilent(t *testing.T) {
	plan := stackPlan()
	plan.Sidecar = nil
	plan.Secondaries = nil

	content, err := StackContent(stackManifest(), plan)
	require.NoError(t, err)
	doc := parseStack(t, content)

	proxy := stackService(t, doc, "tls-proxy")
	assert.Equal(t, "caddy:2-alpine", proxy["image"])

	ftp := stackService(t, doc, "ftp")
	assert.Equal(t, "acme/ftp:1", ftp["image"])
	assert.Equal(t, []any{"ftpd", "--anon-off"}, ftp["command"])
}

// =============================================================================
// Path Rewriting
// =============================================================================

func TestRewritePaths(t *testing.T) {
	content, err := StackContent(stackManifest(), stackPlan())
	require.NoError(t, err)

	rewritten := RewritePaths(content, "/home/dev/checkout", "/opt/acme-web")
	assert.Contains(t, rewritten, "/opt/acme-web/data:/srv/data:ro")
	assert.NotContains(t, rewritten, "/home/dev/checkout")

	assert.Equal(t, content, RewritePaths(content, "", "/opt/acme-web"))
	assert.Equal(t, content, RewritePaths(content, "/home/dev/checkout", ""))
	assert.Equal(t, content, RewritePaths(content, "/same", "/same"))
}

func TestStackContentIsValidYAML(t *testing.T) {
	content, err := StackContent(stackManifest(), stackPlan())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content, "services:") || strings.Contains(content, "\nservices:"))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(content), &doc))
}
