package portainer

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/core/manifest"
)

// =============================================================================
// Stack Content
// =============================================================================

// StackContent converts the parsed manifest and the finalized plan into the
// compose stack Portainer deploys. Where the plan carries a value for a
// service (image, command, environment after hooks ran) it wins over the
// manifest's. Build sections never survive: the app service swaps its build
// for the plan image, and any other service still carrying one fails the
// stack because Portainer only deploys image-based services.
func StackContent(m *manifest.Manifest, plan *deploy.Plan) (string, error) {
	services := make(map[string]any, len(m.Services))
	var buildLeftovers []string

	for _, svc := range m.Services {
		ps, inPlan := plan.ServiceByName(svc.Name)

		image := svc.Image
		if inPlan && ps.Image != "" {
			image = ps.Image
		}
		if svc.Build != nil && !(svc.Name == plan.App.Service && image != "") {
			buildLeftovers = append(buildLeftovers, svc.Name)
			continue
		}
		if image == "" {
			buildLeftovers = append(buildLeftovers, svc.Name)
			continue
		}

		entry := map[string]any{
			"image":   image,
			"restart": "unless-stopped",
		}

		command := svc.Command
		if inPlan && len(ps.Command) > 0 {
			command = ps.Command
		}
		if len(command) > 0 {
			entry["command"] = command
		}
		if len(svc.Entrypoint) > 0 {
			entry["entrypoint"] = svc.Entrypoint
		}

		env := svc.Environment
		if inPlan && len(ps.Env) > 0 {
			env = ps.Env
		}
		if len(env) > 0 {
			entry["environment"] = env
		}

		if ports := portStrings(svc.Ports); len(ports) > 0 {
			entry["ports"] = ports
		}
		if mounts := volumeStrings(svc.Volumes); len(mounts) > 0 {
			entry["volumes"] = mounts
		}
		if len(svc.Labels) > 0 {
			entry["labels"] = svc.Labels
		}

		services[svc.Name] = entry
	}

	if len(buildLeftovers) > 0 {
		return "", NewPortainerError("StackContent", strings.Join(buildLeftovers, ", "),
			"these services still use build contexts; push an image and reference it instead",
			ErrBuildContexts)
	}

	doc := map[string]any{"services": services}
	if vols := topLevelVolumes(m.Volumes); len(vols) > 0 {
		doc["volumes"] = vols
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", NewPortainerError("StackContent", "", "failed to encode stack", err)
	}
	return string(out), nil
}

// portStrings renders port mappings in compose short syntax.
func portStrings(ports []manifest.Port) []string {
	var out []string
	for _, p := range ports {
		if p.Target == 0 {
			continue
		}
		s := fmt.Sprintf("%d", p.Target)
		if p.Published != 0 {
			s = fmt.Sprintf("%d:%d", p.Published, p.Target)
		}
		if p.Protocol != "" && p.Protocol != "tcp" {
			s += "/" + p.Protocol
		}
		out = append(out, s)
	}
	return out
}

// volumeStrings renders mounts in compose short syntax. Tmpfs mounts have no
// source and are dropped.
func volumeStrings(mounts []manifest.VolumeMount) []string {
	var out []string
	for _, v := range mounts {
		if v.Type == manifest.VolumeMountTypeTmpfs {
			continue
		}
		s := v.Source + ":" + v.Target
		if v.ReadOnly {
			s += ":ro"
		}
		out = append(out, s)
	}
	return out
}

func topLevelVolumes(vols []manifest.Volume) map[string]any {
	if len(vols) == 0 {
		return nil
	}
	out := make(map[string]any, len(vols))
	for _, v := range vols {
		if v.External {
			out[v.Name] = map[string]any{"external": true}
		} else {
			out[v.Name] = map[string]any{}
		}
	}
	return out
}

// RewritePaths replaces local repository paths in the stack with their
// location under the remote deployment directory, so bind mounts written
// against the checkout resolve on the target host.
func RewritePaths(stack, localRoot, remoteDir string) string {
	if localRoot == "" || remoteDir == "" || localRoot == remoteDir {
		return stack
	}
	return strings.ReplaceAll(stack, localRoot, remoteDir)
}
