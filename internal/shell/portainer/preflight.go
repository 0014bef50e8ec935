package portainer

import (
	"fmt"

	"github.com/docker/go-connections/nat"

	"github.com/artpar/shipway/internal/core/manifest"
)

// =============================================================================
// Published Port Preflight
// =============================================================================

// CheckPublishedPorts rejects stacks where two services publish the same host
// port, or where a service claims a port the Portainer container itself
// holds. Portainer accepts such stacks and docker then fails the second bind
// at container start, long after the webhook reported success, so the run
// fails here instead.
//
// Reserved ports are host ports Portainer publishes (8000 for the edge
// tunnel, plus its HTTPS UI port). Dynamic mappings (published 0) are never
// a conflict, and a service repeating its own mapping is compose-legal.
func CheckPublishedPorts(m *manifest.Manifest, reserved ...int) error {
	owner := make(map[nat.Port]string)
	for _, port := range reserved {
		if port == 0 {
			continue
		}
		owner[natPort(port, "tcp")] = "the Portainer container"
	}

	for _, svc := range m.Services {
		seen := make(map[nat.Port]bool)
		for _, p := range svc.Ports {
			if p.Published == 0 {
				continue
			}
			key := natPort(int(p.Published), p.Protocol)
			if seen[key] {
				continue
			}
			seen[key] = true
			if prev, taken := owner[key]; taken {
				return NewPortainerError("CheckPublishedPorts", string(key),
					fmt.Sprintf("host port %s is published by both %s and %s", key, prev, svc.Name),
					ErrPortConflict)
			}
			owner[key] = svc.Name
		}
	}
	return nil
}

func natPort(port int, proto string) nat.Port {
	if proto == "" {
		proto = "tcp"
	}
	return nat.Port(fmt.Sprintf("%d/%s", port, proto))
}
