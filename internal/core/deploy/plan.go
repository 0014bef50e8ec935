package deploy

import "github.com/artpar/shipway/internal/core/manifest"

// =============================================================================
// Deploy Plan
// =============================================================================

// Plan is the canonical, platform-agnostic description of one deployment.
// It is mutable with a single owner - the lifecycle run that built it - and
// hooks receive it by pointer to reshape it in place before rendering.
type Plan struct {
	Mode   Mode   `json:"mode"`
	Naming Naming `json:"naming"`

	// Target placement.
	Location      string `json:"location"`
	ResourceGroup string `json:"resource_group"`

	// Public entry.
	PublicDomain string `json:"public_domain,omitempty"`
	ACMEEmail    string `json:"acme_email,omitempty"`

	// Role descriptors. App is always present; Sidecar only in sidecar
	// modes; Secondaries only in full mode.
	App         ServicePlan   `json:"app"`
	Sidecar     *ServicePlan  `json:"sidecar,omitempty"`
	Secondaries []ServicePlan `json:"secondaries,omitempty"`

	// AppPort is the app's primary port, the one the sidecar proxies to.
	// Always also present in App.Ports.
	AppPort int `json:"app_port"`

	// Registry holds image pull credentials. Rendering treats the three
	// fields as all-or-none.
	Registry *RegistryAuth `json:"registry,omitempty"`

	// Auth protects the public entry behind basic auth at the sidecar.
	Auth BasicAuth `json:"auth"`

	// Infra carries platform facts collected by the infrastructure step
	// before rendering: the managed identity and the storage account whose
	// file shares back the plan's volumes.
	Infra Infra `json:"infra"`

	// KeyVaultURI is surfaced to the app container when set.
	KeyVaultURI string `json:"key_vault_uri,omitempty"`

	// ExtraEnv is additional app container environment, merged over the
	// manifest-declared service environment.
	ExtraEnv map[string]string `json:"extra_env,omitempty"`

	// FTPPassiveRange, when set, is exposed alongside the owning secondary
	// service's ports.
	FTPPassiveRange *PortRange `json:"ftp_passive_range,omitempty"`

	// Units is the derived packing of services into deployment units.
	// Recomputed by AssignUnits when the plan is finalized; edit ports or
	// the budget, not this slice.
	Units []Unit `json:"units,omitempty"`

	// PortBudget is the per-unit public port allowance used for packing.
	PortBudget int `json:"port_budget"`

	// Extra is the free-form extension bag hooks may use to pass data
	// forward between extension points.
	Extra map[string]any `json:"extra,omitempty"`
}

// ServicePlan is one role's resolved service descriptor.
type ServicePlan struct {
	Service  string            `json:"service"`
	Role     manifest.Role     `json:"role"`
	Image    string            `json:"image"`
	CPUCores float64           `json:"cpu_cores"`
	MemoryGB float64           `json:"memory_gb"`
	Ports    []int             `json:"ports,omitempty"`
	Command  []string          `json:"command,omitempty"`
	Volumes  []VolumeIntent    `json:"volumes,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
}

// VolumeIntent is a durable volume mount carried into rendering.
type VolumeIntent struct {
	Volume    string `json:"volume"`
	MountPath string `json:"mount_path"`
	ReadOnly  bool   `json:"read_only,omitempty"`
}

// RegistryAuth is the image registry credential set.
type RegistryAuth struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// BasicAuth is the credential pair guarding the public entry.
type BasicAuth struct {
	User string `json:"user"`
	Hash string `json:"-"`
}

// Infra is the platform-side state a rendered artifact references. Zero
// values render as omitted sections, which keeps plan rendering usable for
// dry runs before any infrastructure exists.
type Infra struct {
	IdentityID       string `json:"identity_id,omitempty"`
	IdentityClientID string `json:"identity_client_id,omitempty"`
	IdentityTenantID string `json:"identity_tenant_id,omitempty"`
	StorageAccount   string `json:"storage_account,omitempty"`
	StorageKey       string `json:"-"`
}

// Unit is one deployment unit: the services it carries and the names it
// goes by on the target platform.
type Unit struct {
	Name     string   `json:"name"`
	DNSLabel string   `json:"dns_label"`
	Services []string `json:"services"`
	Ports    []int    `json:"ports"`
}

// Primary reports whether this is the app-carrying unit.
func (u Unit) Primary(plan *Plan) bool {
	for _, s := range u.Services {
		if s == plan.App.Service {
			return true
		}
	}
	return false
}

// ApplyResult records what applying one deployment unit produced on the
// target platform.
type ApplyResult struct {
	Unit  string `json:"unit"`
	FQDN  string `json:"fqdn,omitempty"`
	IP    string `json:"ip,omitempty"`
	State string `json:"state,omitempty"`
}

// =============================================================================
// Plan Cloning
// =============================================================================

// Clone deep-copies the plan. The lifecycle engine snapshots the plan before
// every mutating hook call so soft-fail can roll back to the pre-hook state.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p

	out.App = p.App.clone()
	if p.Sidecar != nil {
		s := p.Sidecar.clone()
		out.Sidecar = &s
	}
	if p.Secondaries != nil {
		out.Secondaries = make([]ServicePlan, len(p.Secondaries))
		for i := range p.Secondaries {
			out.Secondaries[i] = p.Secondaries[i].clone()
		}
	}
	if p.Registry != nil {
		r := *p.Registry
		out.Registry = &r
	}
	if p.FTPPassiveRange != nil {
		r := *p.FTPPassiveRange
		out.FTPPassiveRange = &r
	}
	out.ExtraEnv = cloneStringMap(p.ExtraEnv)
	if p.Units != nil {
		out.Units = make([]Unit, len(p.Units))
		for i, u := range p.Units {
			out.Units[i] = Unit{
				Name:     u.Name,
				DNSLabel: u.DNSLabel,
				Services: append([]string(nil), u.Services...),
				Ports:    append([]int(nil), u.Ports...),
			}
		}
	}
	out.Extra = cloneAnyMap(p.Extra)

	return &out
}

func (s ServicePlan) clone() ServicePlan {
	out := s
	out.Ports = append([]int(nil), s.Ports...)
	out.Command = append([]string(nil), s.Command...)
	out.Volumes = append([]VolumeIntent(nil), s.Volumes...)
	out.Env = cloneStringMap(s.Env)
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneAnyMap copies the extension bag one level deep. Hooks own the values
// they store; nested mutable values they share across snapshots are theirs
// to manage.
func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AllServices returns every service descriptor in the plan, app first,
// sidecar second, secondaries after in plan order.
func (p *Plan) AllServices() []ServicePlan {
	out := make([]ServicePlan, 0, 2+len(p.Secondaries))
	out = append(out, p.App)
	if p.Sidecar != nil {
		out = append(out, *p.Sidecar)
	}
	out = append(out, p.Secondaries...)
	return out
}

// ServiceByName looks up a descriptor by manifest service name.
func (p *Plan) ServiceByName(name string) (ServicePlan, bool) {
	for _, s := range p.AllServices() {
		if s.Service == name {
			return s, true
		}
	}
	return ServicePlan{}, false
}

// FileShares returns the file shares backing every named volume any service
// in the plan mounts, derived as {base}-{volume}, deduplicated in first-use
// order. The infrastructure step creates exactly these shares.
func (p *Plan) FileShares() []string {
	seen := map[string]bool{}
	var out []string
	for _, svc := range p.AllServices() {
		for _, v := range svc.Volumes {
			share := FileShareName(p.Naming.Base, v.Volume)
			if seen[share] {
				continue
			}
			seen[share] = true
			out = append(out, share)
		}
	}
	return out
}
