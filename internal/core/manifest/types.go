package manifest

// =============================================================================
// Manifest - Main Output Type
// =============================================================================

// Manifest represents a fully parsed deployment manifest.
// Services keep the order they appear in the document, which also fixes the
// order of any derived deployment units.
type Manifest struct {
	Services []Service `json:"services"`
	Volumes  []Volume  `json:"volumes,omitempty"`
}

// Service looks up a service by name.
func (m *Manifest) Service(name string) (Service, bool) {
	for _, svc := range m.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return Service{}, false
}

// =============================================================================
// Service Types
// =============================================================================

// Service represents a single service definition with its resolved role.
type Service struct {
	Name        string            `json:"name"`
	Role        Role              `json:"role"`
	Image       string            `json:"image,omitempty"`
	Build       *BuildConfig      `json:"build,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Entrypoint  []string          `json:"entrypoint,omitempty"`
	Ports       []Port            `json:"ports,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Volumes     []VolumeMount     `json:"volumes,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Resources   ServiceResources  `json:"resources"`
}

// TargetPorts returns the unique container-side ports of the service's port
// mappings, in order of appearance.
func (s Service) TargetPorts() []int {
	seen := make(map[int]bool, len(s.Ports))
	var out []int
	for _, p := range s.Ports {
		t := int(p.Target)
		if t == 0 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// DurableVolumes returns only the mounts that survive a redeploy. Host
// bind-mounts and tmpfs never reach a rendered artifact.
func (s Service) DurableVolumes() []VolumeMount {
	var out []VolumeMount
	for _, v := range s.Volumes {
		if v.Durable() {
			out = append(out, v)
		}
	}
	return out
}

// BuildConfig represents build configuration (optional).
type BuildConfig struct {
	Context    string `json:"context"`
	Dockerfile string `json:"dockerfile,omitempty"`
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 `json:"target"`              // Container port
	Published uint32 `json:"published,omitempty"` // Host port (0 = dynamic)
	Protocol  string `json:"protocol,omitempty"`  // tcp, udp
}

// VolumeMount represents a volume mount in a service.
type VolumeMount struct {
	Type     VolumeMountType `json:"type"`   // bind, volume, tmpfs
	Source   string          `json:"source"` // Path or volume name
	Target   string          `json:"target"` // Container path
	ReadOnly bool            `json:"readonly"`
}

// Durable reports whether the mount is backed by a named volume, the only
// kind that carries over into rendered artifacts.
func (v VolumeMount) Durable() bool {
	return v.Type == VolumeMountTypeVolume
}

// VolumeMountType represents the type of volume mount.
type VolumeMountType string

const (
	VolumeMountTypeBind   VolumeMountType = "bind"
	VolumeMountTypeVolume VolumeMountType = "volume"
	VolumeMountTypeTmpfs  VolumeMountType = "tmpfs"
)

// ServiceResources represents resource limits declared in the manifest.
// Zero values mean "not declared", letting schema defaults apply.
type ServiceResources struct {
	CPULimit    float64 `json:"cpu_limit"`
	MemoryBytes int64   `json:"memory_bytes"`
}

// =============================================================================
// Volume Types
// =============================================================================

// Volume represents a named top-level volume definition.
type Volume struct {
	Name     string `json:"name"`
	External bool   `json:"external"`
}
