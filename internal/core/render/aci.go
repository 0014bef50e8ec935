package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/artpar/shipway/internal/core/deploy"
)

// aciAPIVersion is the container-group schema the descriptors target.
const aciAPIVersion = "2023-05-01"

// =============================================================================
// Container Group Rendering
// =============================================================================

// renderGroup builds the container-group descriptor for one deployment unit.
// Containers appear app first, secondaries next, TLS proxy last, so the
// proxy comes up after everything it fronts.
func renderGroup(plan *deploy.Plan, unit deploy.Unit) (string, error) {
	app, sidecar, secondaries, err := unitMembers(plan, unit)
	if err != nil {
		return "", err
	}

	var b lineBuilder
	b.add(0, "apiVersion: '"+aciAPIVersion+"'")
	b.add(0, "location: "+plan.Location)
	b.add(0, "name: "+unit.Name)
	if plan.Infra.IdentityID != "" {
		b.add(0, "identity:")
		b.add(2, "type: UserAssigned")
		b.add(2, "userAssignedIdentities:")
		b.add(4, fmt.Sprintf("'%s': {}", plan.Infra.IdentityID))
	}
	b.add(0, "properties:")

	if plan.Registry != nil {
		if plan.Registry.Server == "" || plan.Registry.Username == "" || plan.Registry.Password == "" {
			return "", NewRenderError(unit.Name,
				"registry server, username and password must all be set when pull credentials are used")
		}
		b.add(2, "imageRegistryCredentials:")
		b.add(4, "- server: "+plan.Registry.Server)
		b.add(6, "username: "+plan.Registry.Username)
		b.add(6, "password: "+squote(plan.Registry.Password))
	}

	b.add(2, "containers:")
	if app != nil {
		if err := renderAppContainer(&b, plan, unit, *app); err != nil {
			return "", err
		}
		b.blank()
	}
	for _, svc := range secondaries {
		if err := renderPlainContainer(&b, unit, svc); err != nil {
			return "", err
		}
		b.blank()
	}
	if sidecar != nil {
		if err := renderSidecarContainer(&b, plan, unit, *sidecar); err != nil {
			return "", err
		}
		b.blank()
	}

	b.add(2, "osType: Linux")
	b.add(2, "restartPolicy: Always")
	if len(unit.Ports) > 0 {
		b.add(2, "ipAddress:")
		b.add(4, "type: Public")
		b.add(4, "dnsNameLabel: "+unit.DNSLabel)
		b.add(4, "ports:")
		for _, p := range sortedPorts(unit.Ports) {
			b.add(6, "- port: "+strconv.Itoa(p))
		}
	}

	volumes := unitVolumes(plan, app, secondaries, sidecar)
	if len(volumes) > 0 {
		b.blank()
		b.add(2, "volumes:")
		for _, v := range volumes {
			b.add(4, "- name: "+v.name)
			b.add(6, "azureFile:")
			b.add(8, "shareName: "+v.share)
			b.add(8, "storageAccountName: "+plan.Infra.StorageAccount)
			b.add(8, "storageAccountKey: "+plan.Infra.StorageKey)
		}
	}

	return b.String(), nil
}

// unitMembers resolves a unit's service names against the plan and buckets
// them by role.
func unitMembers(plan *deploy.Plan, unit deploy.Unit) (*deploy.ServicePlan, *deploy.ServicePlan, []deploy.ServicePlan, error) {
	var app, sidecar *deploy.ServicePlan
	var secondaries []deploy.ServicePlan

	for _, name := range unit.Services {
		svc, ok := plan.ServiceByName(name)
		if !ok {
			return nil, nil, nil, NewRenderError(unit.Name, "unit references unknown service "+name)
		}
		switch {
		case name == plan.App.Service:
			s := svc
			app = &s
		case plan.Sidecar != nil && name == plan.Sidecar.Service:
			s := svc
			sidecar = &s
		default:
			secondaries = append(secondaries, svc)
		}
	}
	return app, sidecar, secondaries, nil
}

// =============================================================================
// Container Blocks
// =============================================================================

// renderAppContainer emits the app container. It carries the unit's name,
// the vault URI, the legacy CODE_SERVER_PORT variable when nothing declares
// WEB_PORT, and the identity coordinates when a managed identity is bound.
func renderAppContainer(b *lineBuilder, plan *deploy.Plan, unit deploy.Unit, svc deploy.ServicePlan) error {
	memory, err := NormalizeMemoryGB(svc.MemoryGB)
	if err != nil {
		return NewRenderError(unit.Name, fmt.Sprintf("container %s: %v", svc.Service, err))
	}

	b.add(4, "- name: "+unit.Name)
	b.add(6, "properties:")
	b.add(8, "image: "+svc.Image)
	renderPorts(b, svc.Ports)
	renderResources(b, svc.CPUCores, memory)
	renderEnv(b, appEnvEntries(plan, svc))
	renderCommand(b, svc.Command)
	renderVolumeMounts(b, svc.Volumes)
	return nil
}

// renderSidecarContainer emits the TLS proxy. Unless the manifest declared
// its own command, the container boots with a generated script that writes
// the Caddyfile and execs caddy.
func renderSidecarContainer(b *lineBuilder, plan *deploy.Plan, unit deploy.Unit, svc deploy.ServicePlan) error {
	memory, err := NormalizeMemoryGB(svc.MemoryGB)
	if err != nil {
		return NewRenderError(unit.Name, fmt.Sprintf("container %s: %v", svc.Service, err))
	}

	b.add(4, "- name: "+svc.Service)
	b.add(6, "properties:")
	b.add(8, "image: "+svc.Image)
	renderPorts(b, svc.Ports)
	renderResources(b, svc.CPUCores, memory)
	renderEnv(b, sidecarEnvEntries(plan, unit, svc))

	if len(svc.Command) > 0 {
		renderCommand(b, svc.Command)
	} else {
		b.add(8, "command:")
		b.add(10, "- sh")
		b.add(10, "- -lc")
		b.add(10, "- |")
		for _, line := range strings.Split(CaddyBootstrap(plan.PublicDomain, plan.AppPort), "\n") {
			b.add(12, line)
		}
	}

	renderVolumeMounts(b, svc.Volumes)
	return nil
}

// renderPlainContainer emits a secondary service container.
func renderPlainContainer(b *lineBuilder, unit deploy.Unit, svc deploy.ServicePlan) error {
	memory, err := NormalizeMemoryGB(svc.MemoryGB)
	if err != nil {
		return NewRenderError(unit.Name, fmt.Sprintf("container %s: %v", svc.Service, err))
	}

	b.add(4, "- name: "+svc.Service)
	b.add(6, "properties:")
	b.add(8, "image: "+svc.Image)
	renderPorts(b, svc.Ports)
	renderResources(b, svc.CPUCores, memory)
	renderEnv(b, envEntriesFromMap(svc.Env))
	renderCommand(b, svc.Command)
	renderVolumeMounts(b, svc.Volumes)
	return nil
}

// =============================================================================
// Environment Variables
// =============================================================================

type envEntry struct {
	name   string
	value  string
	secure bool
}

// appEnvEntries assembles the app container's environment: the vault URI,
// the legacy port variable, manifest environment merged under ExtraEnv, and
// the identity coordinates.
func appEnvEntries(plan *deploy.Plan, svc deploy.ServicePlan) []envEntry {
	merged := make(map[string]string, len(svc.Env)+len(plan.ExtraEnv))
	for k, v := range svc.Env {
		merged[k] = v
	}
	for k, v := range plan.ExtraEnv {
		merged[k] = v
	}

	var entries []envEntry
	if plan.KeyVaultURI != "" {
		entries = append(entries, envEntry{name: "AZURE_KEYVAULT_URI", value: plan.KeyVaultURI})
	}
	// Older app images read CODE_SERVER_PORT; WEB_PORT supersedes it.
	if _, ok := merged["WEB_PORT"]; !ok && plan.AppPort > 0 {
		entries = append(entries, envEntry{name: "CODE_SERVER_PORT", value: strconv.Itoa(plan.AppPort)})
	}
	entries = append(entries, envEntriesFromMap(merged)...)
	if plan.Infra.IdentityClientID != "" {
		entries = append(entries, envEntry{name: "AZURE_CLIENT_ID", value: plan.Infra.IdentityClientID})
	}
	if plan.Infra.IdentityTenantID != "" {
		entries = append(entries, envEntry{name: "AZURE_TENANT_ID", value: plan.Infra.IdentityTenantID})
	}
	return entries
}

// sidecarEnvEntries assembles the TLS proxy's environment. The basic-auth
// hash is the one secureValue in the descriptor; everything else is plain.
func sidecarEnvEntries(plan *deploy.Plan, unit deploy.Unit, svc deploy.ServicePlan) []envEntry {
	entries := []envEntry{
		{name: "PUBLIC_DOMAIN", value: plan.PublicDomain},
		{name: "ACME_EMAIL", value: plan.ACMEEmail},
		{name: "FALLBACK_DOMAIN", value: fmt.Sprintf("%s.%s.azurecontainer.io", unit.DNSLabel, plan.Location)},
		{name: "BASIC_AUTH_USER", value: plan.Auth.User},
		{name: "BASIC_AUTH_HASH", value: plan.Auth.Hash, secure: true},
	}
	reserved := make(map[string]bool, len(entries))
	for _, e := range entries {
		reserved[e.name] = true
	}
	for _, e := range envEntriesFromMap(svc.Env) {
		if !reserved[e.name] {
			entries = append(entries, e)
		}
	}
	return entries
}

// envEntriesFromMap turns a map into entries sorted by name.
func envEntriesFromMap(env map[string]string) []envEntry {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]envEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, envEntry{name: k, value: env[k]})
	}
	return entries
}

// =============================================================================
// Shared Blocks
// =============================================================================

func renderPorts(b *lineBuilder, ports []int) {
	if len(ports) == 0 {
		return
	}
	b.add(8, "ports:")
	for _, p := range sortedPorts(ports) {
		b.add(10, "- port: "+strconv.Itoa(p))
		b.add(12, "protocol: TCP")
	}
}

func renderResources(b *lineBuilder, cpu, memoryGB float64) {
	b.add(8, "resources:")
	b.add(10, "requests:")
	b.add(12, "cpu: "+formatFloat(cpu))
	b.add(12, "memoryInGB: "+formatFloat(memoryGB))
}

func renderEnv(b *lineBuilder, entries []envEntry) {
	if len(entries) == 0 {
		return
	}
	b.add(8, "environmentVariables:")
	for _, e := range entries {
		b.add(10, "- name: "+e.name)
		if e.secure {
			b.add(12, "secureValue: "+squote(e.value))
		} else {
			b.add(12, "value: "+squote(e.value))
		}
	}
}

func renderCommand(b *lineBuilder, command []string) {
	if len(command) == 0 {
		return
	}
	b.add(8, "command:")
	for _, arg := range command {
		b.add(10, "- "+yamlScalar(arg))
	}
}

func renderVolumeMounts(b *lineBuilder, volumes []deploy.VolumeIntent) {
	if len(volumes) == 0 {
		return
	}
	b.add(8, "volumeMounts:")
	for _, v := range volumes {
		b.add(10, "- name: "+v.Volume)
		b.add(12, "mountPath: "+v.MountPath)
		if v.ReadOnly {
			b.add(12, "readOnly: true")
		}
	}
}

// =============================================================================
// Volume Collection
// =============================================================================

type groupVolume struct {
	name  string
	share string
}

// unitVolumes collects every named volume the unit's containers mount, in
// container order, deduplicated. Shares derive from the plan's base name so
// split-off units still reach the same storage.
func unitVolumes(plan *deploy.Plan, app *deploy.ServicePlan, secondaries []deploy.ServicePlan, sidecar *deploy.ServicePlan) []groupVolume {
	seen := map[string]bool{}
	var out []groupVolume

	collect := func(svc *deploy.ServicePlan) {
		if svc == nil {
			return
		}
		for _, v := range svc.Volumes {
			if seen[v.Volume] {
				continue
			}
			seen[v.Volume] = true
			out = append(out, groupVolume{
				name:  v.Volume,
				share: deploy.FileShareName(plan.Naming.Base, v.Volume),
			})
		}
	}

	collect(app)
	for i := range secondaries {
		collect(&secondaries[i])
	}
	collect(sidecar)
	return out
}

// =============================================================================
// Formatting Helpers
// =============================================================================

// lineBuilder accumulates indented lines for a descriptor.
type lineBuilder struct {
	lines []string
}

func (b *lineBuilder) add(level int, text string) {
	b.lines = append(b.lines, strings.Repeat(" ", level)+text)
}

func (b *lineBuilder) blank() {
	b.lines = append(b.lines, "")
}

func (b *lineBuilder) String() string {
	return strings.Join(b.lines, "\n") + "\n"
}

func sortedPorts(ports []int) []int {
	out := make([]int, 0, len(ports))
	seen := map[int]bool{}
	for _, p := range ports {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// formatFloat renders sizing values with an explicit decimal part, the
// platform's conventional form (1.0 rather than 1).
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// squote single-quotes a value, doubling any embedded quote.
func squote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// yamlScalar quotes a command argument only when a bare scalar would be
// misread.
func yamlScalar(s string) string {
	if s == "" || strings.TrimSpace(s) != s || strings.ContainsAny(s, ":#'\"") {
		return squote(s)
	}
	return s
}
