package deploy

import "fmt"

// =============================================================================
// Platform Limits
// =============================================================================

// Per-unit ceilings on the target platform.
const (
	MaxUnitCPUCores = 4.0
	MaxUnitMemoryGB = 16.0
	MaxNameLength   = 63
)

// ValidationResult represents the outcome of a plan limit check.
type ValidationResult struct {
	// Allowed indicates whether the plan fits the platform limits
	Allowed bool

	// Reason explains why the plan was rejected (empty if Allowed is true)
	Reason string
}

// Ok returns true if the validation passed.
func (r ValidationResult) Ok() bool {
	return r.Allowed
}

// Error returns the reason as an error if validation failed, nil otherwise.
func (r ValidationResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("plan limit exceeded: %s", r.Reason)
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidatePlan checks a finalized plan against the platform's per-unit
// limits. It runs after the last mutation hook, so hook edits are covered.
func ValidatePlan(plan *Plan) ValidationResult {
	if err := validateName(plan.Naming.Base); err != "" {
		return ValidationResult{Reason: err}
	}

	for _, svc := range plan.AllServices() {
		if svc.CPUCores <= 0 {
			return ValidationResult{
				Reason: fmt.Sprintf("service %s: cpu must be positive, got %.2f", svc.Service, svc.CPUCores),
			}
		}
		if svc.MemoryGB <= 0 {
			return ValidationResult{
				Reason: fmt.Sprintf("service %s: memory must be positive, got %.2f", svc.Service, svc.MemoryGB),
			}
		}
	}

	for _, unit := range plan.Units {
		if err := validateName(unit.Name); err != "" {
			return ValidationResult{Reason: err}
		}

		var cpu, mem float64
		for _, name := range unit.Services {
			svc, ok := plan.ServiceByName(name)
			if !ok {
				return ValidationResult{
					Reason: fmt.Sprintf("unit %s references unknown service %s", unit.Name, name),
				}
			}
			cpu += svc.CPUCores
			mem += svc.MemoryGB
		}
		if cpu > MaxUnitCPUCores {
			return ValidationResult{
				Reason: fmt.Sprintf("unit %s: CPU limit would be exceeded: %.1f/%.1f cores", unit.Name, cpu, MaxUnitCPUCores),
			}
		}
		if mem > MaxUnitMemoryGB {
			return ValidationResult{
				Reason: fmt.Sprintf("unit %s: memory limit would be exceeded: %.1f/%.1f GB", unit.Name, mem, MaxUnitMemoryGB),
			}
		}
	}

	return ValidationResult{Allowed: true}
}

// validateName checks a unit name against platform naming rules.
// Returns a reason string, empty when valid.
func validateName(name string) string {
	if name == "" {
		return "unit name is empty"
	}
	if len(name) > MaxNameLength {
		return fmt.Sprintf("unit name %q exceeds %d characters", name, MaxNameLength)
	}
	if SanitizeDNSLabel(name) != name {
		return fmt.Sprintf("unit name %q must be lowercase alphanumerics and hyphens", name)
	}
	return ""
}
