package manifest

// =============================================================================
// Role Model
// =============================================================================

// Role is the functional tag a manifest service resolves to. Services declare
// roles through the RoleExtensionKey service extension; unknown or absent
// tags resolve to RoleUnassigned.
type Role string

const (
	RoleApp        Role = "app"
	RoleSidecar    Role = "sidecar"
	RoleSecondary  Role = "secondary"
	RoleUnassigned Role = "unassigned"
)

// RoleExtensionKey is the service extension carrying the role tag.
const RoleExtensionKey = "x-deploy-role"

// parseRole maps a raw extension value to a Role.
func parseRole(raw any) Role {
	s, ok := raw.(string)
	if !ok {
		return RoleUnassigned
	}
	switch Role(s) {
	case RoleApp, RoleSidecar, RoleSecondary:
		return Role(s)
	}
	return RoleUnassigned
}

// =============================================================================
// Role Resolution
// =============================================================================

// RoleMap maps each claimed role to the names of the services claiming it,
// in manifest order. Unassigned services never appear in the map.
type RoleMap map[Role][]string

// App returns the single app service name. Valid on maps produced by Roles,
// which guarantees exactly one.
func (rm RoleMap) App() string {
	names := rm[RoleApp]
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Sidecar returns the sidecar service name, if one is assigned.
func (rm RoleMap) Sidecar() (string, bool) {
	names := rm[RoleSidecar]
	if len(names) == 0 {
		return "", false
	}
	return names[0], true
}

// Secondaries returns the secondary service names in manifest order.
func (rm RoleMap) Secondaries() []string {
	return rm[RoleSecondary]
}

// RoleOverrides names specific services for the exclusive roles, taking
// precedence over any roles the manifest declares for those roles.
type RoleOverrides struct {
	App     string
	Sidecar string
}

// Roles resolves every service to a role and validates exclusivity:
// exactly one app, at most one sidecar, any number of secondaries.
//
// An override replaces the manifest's entire claim on that role - services
// tagged with the overridden role are ignored rather than reported as
// ambiguous. Overrides naming unknown services fail with ErrUnknownService.
func (m *Manifest) Roles(overrides RoleOverrides) (RoleMap, error) {
	claimed := map[Role][]string{}
	for _, svc := range m.Services {
		if svc.Role == RoleUnassigned {
			continue
		}
		claimed[svc.Role] = append(claimed[svc.Role], svc.Name)
	}

	if overrides.App != "" {
		if _, ok := m.Service(overrides.App); !ok {
			return nil, NewRoleError(RoleApp, []string{overrides.App}, ErrUnknownService)
		}
		claimed[RoleApp] = []string{overrides.App}
	}
	if overrides.Sidecar != "" {
		if _, ok := m.Service(overrides.Sidecar); !ok {
			return nil, NewRoleError(RoleSidecar, []string{overrides.Sidecar}, ErrUnknownService)
		}
		claimed[RoleSidecar] = []string{overrides.Sidecar}
	}

	switch n := len(claimed[RoleApp]); {
	case n == 0:
		return nil, NewRoleError(RoleApp, nil, ErrRoleMissing)
	case n > 1:
		return nil, NewRoleError(RoleApp, claimed[RoleApp], ErrRoleAmbiguous)
	}
	if len(claimed[RoleSidecar]) > 1 {
		return nil, NewRoleError(RoleSidecar, claimed[RoleSidecar], ErrRoleAmbiguous)
	}

	out := RoleMap{}
	for role, names := range claimed {
		if len(names) > 0 {
			out[role] = names
		}
	}
	return out, nil
}
