package deploy

// =============================================================================
// Unit Packing
// =============================================================================

// AssignUnits packs the plan's services into deployment units under the
// per-unit public port budget and derives each unit's name and DNS label.
//
// The primary unit always carries the app and, when present, the sidecar.
// With a sidecar in front, the app's own ports stay private inside the unit
// and only the sidecar's ports count as public; without one, the app's ports
// are the public set. Each secondary joins the primary unit when its ports
// fit the remaining budget and collide with nothing already inside;
// otherwise it gets a unit of its own. A secondary that cannot fit the
// budget even alone fails with a PortBudgetError.
//
// Units is derived state: this function runs again when the plan is
// finalized, so hooks adjust ports or the budget rather than the slice.
func AssignUnits(plan *Plan) error {
	budget := plan.PortBudget
	if budget <= 0 {
		budget = DefaultPublicPortBudget
	}

	primary := newUnitState(plan.Naming.Base, plan.Naming.DNSLabel)
	primary.add(plan.App.Service, plan.App.Ports, plan.Sidecar == nil)
	if plan.Sidecar != nil {
		primary.add(plan.Sidecar.Service, plan.Sidecar.Ports, true)
	}
	if len(primary.public) > budget {
		return NewPortBudgetError(primary.name, len(primary.public), budget)
	}

	var extra []*unitState
	for i := range plan.Secondaries {
		svc := &plan.Secondaries[i]
		ports := effectivePorts(plan, svc)

		if primary.fits(ports, budget) {
			primary.add(svc.Service, ports, true)
			continue
		}

		own := newUnitState(plan.Naming.UnitName(svc.Service), plan.Naming.UnitDNSLabel(svc.Service))
		own.add(svc.Service, ports, true)
		if len(own.public) > budget {
			return NewPortBudgetError(own.name, len(own.public), budget)
		}
		extra = append(extra, own)
	}

	units := make([]Unit, 0, 1+len(extra))
	units = append(units, primary.unit())
	for _, u := range extra {
		units = append(units, u.unit())
	}
	plan.Units = units
	return nil
}

// effectivePorts returns a secondary's public ports, folding in the FTP
// passive range when the service exposes the FTP control port.
func effectivePorts(plan *Plan, svc *ServicePlan) []int {
	if plan.FTPPassiveRange == nil || !containsPort(svc.Ports, 21) {
		return svc.Ports
	}
	return mergePorts(svc.Ports, plan.FTPPassiveRange.Ports())
}

func containsPort(ports []int, port int) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

// =============================================================================
// Packing State
// =============================================================================

type unitState struct {
	name      string
	dnsLabel  string
	services  []string
	public    []int
	container map[int]bool
}

func newUnitState(name, dnsLabel string) *unitState {
	return &unitState{name: name, dnsLabel: dnsLabel, container: map[int]bool{}}
}

// add appends a member service. Ports always join the container-level set;
// they join the public set only when exposed is true.
func (u *unitState) add(service string, ports []int, exposed bool) {
	u.services = append(u.services, service)
	for _, p := range ports {
		u.container[p] = true
	}
	if exposed {
		u.public = mergePorts(u.public, ports)
	}
}

// fits reports whether ports can join this unit: within budget and no
// collision with a port some member already binds - members share one
// network namespace, so a duplicate bind would fail at runtime.
func (u *unitState) fits(ports []int, budget int) bool {
	fresh := 0
	for _, p := range ports {
		if u.container[p] {
			return false
		}
		fresh++
	}
	return len(u.public)+fresh <= budget
}

func (u *unitState) unit() Unit {
	return Unit{
		Name:     u.name,
		DNSLabel: u.dnsLabel,
		Services: u.services,
		Ports:    u.public,
	}
}
