package deploy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/shipway/internal/core/envschema"
	"github.com/artpar/shipway/internal/core/manifest"
)

// =============================================================================
// Plan Defaults
// =============================================================================

const (
	// DefaultAppPort is assumed when neither override, manifest nor service
	// environment names a port.
	DefaultAppPort = 8080

	// DefaultSidecarImage runs the TLS-terminating reverse proxy.
	DefaultSidecarImage = "caddy:2-alpine"

	// DefaultSidecarCPUCores and DefaultSidecarMemoryGB size the sidecar.
	DefaultSidecarCPUCores = 0.5
	DefaultSidecarMemoryGB = 0.5

	// SidecarDataVolume and SidecarConfigVolume back the proxy's certificate
	// store and generated config when the manifest declares no volumes for it.
	SidecarDataVolume   = "caddy-data"
	SidecarConfigVolume = "caddy-config"

	// DefaultPublicPortBudget is the platform's public ports per unit.
	DefaultPublicPortBudget = 5
)

// keyVaultURIFormat turns a vault name into its addressable URI.
const keyVaultURIFormat = "https://%s.vault.azure.net/"

// =============================================================================
// Plan Building
// =============================================================================

// Build combines the resolved environment, the interpreted manifest and the
// caller's invocation into a canonical Plan.
//
// Per-field precedence is: invocation override > environment > manifest >
// built-in default. The environment itself was already merged by source
// precedence, so a deploy-file value and a process-env value never tie here.
func Build(ctx *Context, m *manifest.Manifest, roles manifest.RoleMap) (*Plan, error) {
	mode := ctx.Invocation.Mode
	if mode == "" {
		mode = DefaultMode
	}
	switch mode {
	case ModeAppOnly, ModeAppSidecar, ModeFull:
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadMode, mode)
	}

	env := ctx.Env
	if env == nil {
		env = NewEnvView(nil)
	}

	plan := &Plan{
		Mode:          mode,
		Location:      env.Get(envschema.KeyAzureLocation),
		ResourceGroup: env.Get(envschema.KeyAzureResourceGroup),
		PublicDomain:  env.Get(envschema.KeyPublicDomain),
		ACMEEmail:     env.Get(envschema.KeyACMEEmail),
		Auth: BasicAuth{
			User: env.Get(envschema.KeyBasicAuthUser),
			Hash: env.Get(envschema.KeyBasicAuthHash),
		},
		PortBudget: ctx.Invocation.PortBudget,
		Extra:      map[string]any{},
	}
	if plan.PortBudget <= 0 {
		plan.PortBudget = DefaultPublicPortBudget
	}
	if plan.ResourceGroup != "" {
		plan.KeyVaultURI = fmt.Sprintf(keyVaultURIFormat, KeyVaultName(plan.ResourceGroup))
	}

	base := env.Get(envschema.KeyAzureContainerName)
	if base == "" {
		return nil, NewIncompleteError("", "no deployment name configured")
	}
	label := env.Get(envschema.KeyAzureDNSLabel)
	if label == "" {
		label = base
	}
	plan.Naming = Naming{Base: base, DNSLabel: SanitizeDNSLabel(label)}

	appName := roles.App()
	if appName == "" {
		return nil, NewIncompleteError(manifest.RoleApp, "role map has no app service")
	}
	app, appPort, err := buildAppPlan(ctx, m, appName)
	if err != nil {
		return nil, err
	}
	plan.App = app
	plan.AppPort = appPort

	if mode.RequiresSidecar() {
		sidecarName, ok := roles.Sidecar()
		switch {
		case ok:
			sidecar, err := buildSidecarPlan(ctx, m, sidecarName)
			if err != nil {
				return nil, err
			}
			plan.Sidecar = &sidecar
		case ctx.Invocation.OmitSidecar:
			// Intentionally absent; the app is exposed directly.
		default:
			return nil, NewIncompleteError(manifest.RoleSidecar,
				fmt.Sprintf("mode %s requires a sidecar service", mode))
		}
	}

	if mode.IncludesSecondaries() {
		for _, name := range roles.Secondaries() {
			secondary, err := buildSecondaryPlan(ctx, m, name)
			if err != nil {
				return nil, err
			}
			plan.Secondaries = append(plan.Secondaries, secondary)
		}
	}

	if env.Truthy(envschema.KeyGHCRPrivate) {
		plan.Registry = buildRegistryAuth(env, plan.App.Image)
	}

	if err := AssignUnits(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// buildAppPlan resolves the app descriptor and the app's primary port.
func buildAppPlan(ctx *Context, m *manifest.Manifest, name string) (ServicePlan, int, error) {
	svc, ok := m.Service(name)
	if !ok {
		return ServicePlan{}, 0, NewIncompleteError(manifest.RoleApp, "service "+name+" not in manifest")
	}
	env := ctx.Env

	image := firstNonEmpty(ctx.Invocation.Image, env.Get(envschema.KeyContainerImage), svc.Image)
	if image == "" {
		return ServicePlan{}, 0, NewIncompleteError(manifest.RoleApp,
			"no image from override, environment or manifest")
	}

	cpu, err := resolveCPU(ctx.Invocation.CPUCores, svc.Resources.CPULimit, env)
	if err != nil {
		return ServicePlan{}, 0, err
	}
	mem, err := resolveMemory(ctx.Invocation.MemoryGB, svc.Resources.MemoryBytes, env)
	if err != nil {
		return ServicePlan{}, 0, err
	}

	port, err := resolveAppPort(ctx.Invocation.Port, svc)
	if err != nil {
		return ServicePlan{}, 0, err
	}

	return ServicePlan{
		Service:  name,
		Role:     manifest.RoleApp,
		Image:    image,
		CPUCores: cpu,
		MemoryGB: mem,
		Ports:    mergePorts(svc.TargetPorts(), []int{port}),
		Command:  svc.Command,
		Volumes:  volumeIntents(svc),
		Env:      svc.Environment,
	}, port, nil
}

// buildSidecarPlan resolves the sidecar descriptor. Sizing comes from the
// manifest when declared, otherwise from the fixed sidecar defaults - the
// proxy's footprint does not scale with the app's.
func buildSidecarPlan(ctx *Context, m *manifest.Manifest, name string) (ServicePlan, error) {
	svc, ok := m.Service(name)
	if !ok {
		return ServicePlan{}, NewIncompleteError(manifest.RoleSidecar, "service "+name+" not in manifest")
	}

	image := firstNonEmpty(ctx.Invocation.SidecarImage, svc.Image, DefaultSidecarImage)
	cpu := svc.Resources.CPULimit
	if cpu <= 0 {
		cpu = DefaultSidecarCPUCores
	}
	mem := bytesToGB(svc.Resources.MemoryBytes)
	if mem <= 0 {
		mem = DefaultSidecarMemoryGB
	}
	ports := svc.TargetPorts()
	if len(ports) == 0 {
		ports = []int{80, 443}
	}
	volumes := volumeIntents(svc)
	if len(volumes) == 0 {
		volumes = []VolumeIntent{
			{Volume: SidecarDataVolume, MountPath: "/data"},
			{Volume: SidecarConfigVolume, MountPath: "/config"},
		}
	}

	return ServicePlan{
		Service:  name,
		Role:     manifest.RoleSidecar,
		Image:    image,
		CPUCores: cpu,
		MemoryGB: mem,
		Ports:    ports,
		Command:  svc.Command,
		Volumes:  volumes,
		Env:      svc.Environment,
	}, nil
}

// buildSecondaryPlan resolves one secondary descriptor.
func buildSecondaryPlan(ctx *Context, m *manifest.Manifest, name string) (ServicePlan, error) {
	svc, ok := m.Service(name)
	if !ok {
		return ServicePlan{}, NewIncompleteError(manifest.RoleSecondary, "service "+name+" not in manifest")
	}
	if svc.Image == "" {
		return ServicePlan{}, NewIncompleteError(manifest.RoleSecondary,
			"service "+name+" has a build reference but no image to deploy")
	}

	cpu, err := resolveCPU(0, svc.Resources.CPULimit, ctx.Env)
	if err != nil {
		return ServicePlan{}, err
	}
	mem, err := resolveMemory(0, svc.Resources.MemoryBytes, ctx.Env)
	if err != nil {
		return ServicePlan{}, err
	}

	return ServicePlan{
		Service:  name,
		Role:     manifest.RoleSecondary,
		Image:    svc.Image,
		CPUCores: cpu,
		MemoryGB: mem,
		Ports:    svc.TargetPorts(),
		Command:  svc.Command,
		Volumes:  volumeIntents(svc),
		Env:      svc.Environment,
	}, nil
}

// buildRegistryAuth assembles pull credentials for a private registry.
// The username falls back to the image path's owner segment, matching the
// common registry layout {server}/{owner}/{name}.
func buildRegistryAuth(env *EnvView, image string) *RegistryAuth {
	auth := &RegistryAuth{
		Server:   imageRegistry(image),
		Username: env.Get(envschema.KeyGHCRUsername),
		Password: env.Get(envschema.KeyGHCRToken),
	}
	if auth.Username == "" {
		auth.Username = imageOwner(image)
	}
	return auth
}

// =============================================================================
// Field Resolution
// =============================================================================

func resolveCPU(override, fromManifest float64, env *EnvView) (float64, error) {
	if override > 0 {
		return override, nil
	}
	if fromManifest > 0 {
		return fromManifest, nil
	}
	return envFloat(env, envschema.KeyDefaultCPUCores, 1.0)
}

func resolveMemory(overrideGB float64, manifestBytes int64, env *EnvView) (float64, error) {
	if overrideGB > 0 {
		return overrideGB, nil
	}
	if manifestBytes > 0 {
		return bytesToGB(manifestBytes), nil
	}
	return envFloat(env, envschema.KeyDefaultMemoryGB, 2.0)
}

// resolveAppPort picks the app's primary port: override > first manifest
// target port > WEB_PORT from the service environment > DefaultAppPort.
func resolveAppPort(override int, svc manifest.Service) (int, error) {
	if override > 0 {
		return override, nil
	}
	if ports := svc.TargetPorts(); len(ports) > 0 {
		return ports[0], nil
	}
	if raw, ok := svc.Environment["WEB_PORT"]; ok && strings.TrimSpace(raw) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || port < 1 || port > 65535 {
			return 0, NewValueError("WEB_PORT", raw, "not a valid port")
		}
		return port, nil
	}
	return DefaultAppPort, nil
}

func envFloat(env *EnvView, key string, fallback float64) (float64, error) {
	raw, ok := env.Lookup(key)
	if !ok {
		return fallback, nil
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || val <= 0 {
		return 0, NewValueError(key, raw, "not a positive number")
	}
	return val, nil
}

func volumeIntents(svc manifest.Service) []VolumeIntent {
	durable := svc.DurableVolumes()
	if len(durable) == 0 {
		return nil
	}
	out := make([]VolumeIntent, 0, len(durable))
	for _, v := range durable {
		out = append(out, VolumeIntent{
			Volume:    v.Source,
			MountPath: v.Target,
			ReadOnly:  v.ReadOnly,
		})
	}
	return out
}

func bytesToGB(b int64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// imageRegistry extracts the registry host from an image reference,
// defaulting to ghcr.io when the reference has no host segment.
func imageRegistry(image string) string {
	first, _, ok := strings.Cut(image, "/")
	if ok && (strings.Contains(first, ".") || strings.Contains(first, ":")) {
		return first
	}
	return "ghcr.io"
}

// imageOwner extracts the owner segment from {server}/{owner}/{name}.
func imageOwner(image string) string {
	parts := strings.Split(image, "/")
	if len(parts) >= 3 {
		return parts[len(parts)-2]
	}
	if len(parts) == 2 {
		return parts[0]
	}
	return ""
}
