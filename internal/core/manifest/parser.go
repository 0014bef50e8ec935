package manifest

import (
	"context"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser
// =============================================================================

// Parse parses a compose-style manifest into a Manifest.
// This is a pure function - no I/O, no side effects.
//
// Values are read exactly as written: no variable interpolation happens here,
// because source layering and precedence are applied later at plan build.
func Parse(yamlContent string) (*Manifest, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	raw, err := scanRawServices(yamlContent)
	if err != nil {
		return nil, err
	}

	project, err := loadProject(yamlContent)
	if err != nil {
		return nil, err
	}

	if err := checkUnsupportedFeatures(project); err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	m := &Manifest{
		Services: make([]Service, 0, len(project.Services)),
		Volumes:  make([]Volume, 0, len(project.Volumes)),
	}

	// Walk services in document order, not map order, so every derived
	// sequence (role maps, deployment units) is stable across runs.
	for _, rawSvc := range raw {
		svc, ok := project.Services[rawSvc.name]
		if !ok {
			continue
		}
		converted, err := convertService(svc, rawSvc.command)
		if err != nil {
			return nil, err
		}
		m.Services = append(m.Services, converted)
	}

	if err := validatePorts(m.Services); err != nil {
		return nil, err
	}

	for name, vol := range project.Volumes {
		m.Volumes = append(m.Volumes, Volume{Name: name, External: bool(vol.External)})
	}

	return m, nil
}

// =============================================================================
// Raw Document Scan
// =============================================================================

// rawService carries the pieces the typed loader cannot give us: document
// order and the unnormalized command value (the loader shell-splits string
// commands, which loses the shell-form distinction NormalizeCommand needs).
type rawService struct {
	name    string
	command any
}

func scanRawServices(yamlContent string) ([]rawService, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(yamlContent), &doc); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, NewParseError("", "manifest must be a mapping", ErrInvalidYAML)
	}

	services := mappingValue(root, "services")
	if services == nil || services.Kind != yaml.MappingNode {
		return nil, nil
	}

	out := make([]rawService, 0, len(services.Content)/2)
	for i := 0; i+1 < len(services.Content); i += 2 {
		nameNode, svcNode := services.Content[i], services.Content[i+1]
		rs := rawService{name: nameNode.Value}
		if svcNode.Kind == yaml.MappingNode {
			if cmd := mappingValue(svcNode, "command"); cmd != nil {
				if err := cmd.Decode(&rs.command); err != nil {
					return nil, NewParseError("services."+rs.name+".command", "invalid command value", ErrInvalidCommand)
				}
			}
		}
		out = append(out, rs)
	}
	return out, nil
}

// mappingValue returns the value node for a key in a mapping node, or nil.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// =============================================================================
// Typed Load
// =============================================================================

// loadProject loads the manifest through the compose loader.
func loadProject(yamlContent string) (*types.Project, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("shipway", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = true // manifest is read as written
		// In-memory input: nothing to resolve or extend on disk.
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have image or build", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// checkUnsupportedFeatures rejects manifest features the deployment target
// has no equivalent for.
func checkUnsupportedFeatures(project *types.Project) error {
	if len(project.Secrets) > 0 {
		return NewParseError("secrets", "secrets are not supported", ErrUnsupportedFeature)
	}
	if len(project.Configs) > 0 {
		return NewParseError("configs", "configs are not supported", ErrUnsupportedFeature)
	}
	for _, svc := range project.Services {
		if svc.Extends != nil && svc.Extends.File != "" {
			return NewParseError("services."+svc.Name+".extends", "extends is not supported", ErrUnsupportedFeature)
		}
	}
	return nil
}

// =============================================================================
// Conversion
// =============================================================================

// convertService converts a loaded service to our Service type. rawCommand
// is the command value as it appears in the document.
func convertService(svc types.ServiceConfig, rawCommand any) (Service, error) {
	service := Service{
		Name:        svc.Name,
		Role:        parseRole(svc.Extensions[RoleExtensionKey]),
		Image:       svc.Image,
		Entrypoint:  svc.Entrypoint,
		Environment: make(map[string]string),
		Labels:      make(map[string]string),
	}

	if svc.Build != nil {
		service.Build = &BuildConfig{
			Context:    svc.Build.Context,
			Dockerfile: svc.Build.Dockerfile,
		}
	}

	if service.Image == "" && service.Build == nil {
		return Service{}, NewParseError("services."+svc.Name, "service must have image or build", ErrServiceNoImage)
	}

	command, err := NormalizeCommand(rawCommand)
	if err != nil {
		if perr, ok := err.(*ParseError); ok && perr.Field != "" {
			perr.Field = "services." + svc.Name + "." + perr.Field
		}
		return Service{}, err
	}
	service.Command = command

	for _, p := range svc.Ports {
		var published uint32
		if p.Published != "" {
			pub, err := strconv.ParseUint(p.Published, 10, 32)
			if err == nil {
				published = uint32(pub)
			}
		}
		service.Ports = append(service.Ports, Port{
			Target:    p.Target,
			Published: published,
			Protocol:  p.Protocol,
		})
	}

	for k, v := range svc.Environment {
		if v != nil {
			service.Environment[k] = *v
		}
	}

	for _, v := range svc.Volumes {
		mount := VolumeMount{
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		}
		switch v.Type {
		case "bind":
			mount.Type = VolumeMountTypeBind
		case "volume":
			mount.Type = VolumeMountTypeVolume
		case "tmpfs":
			mount.Type = VolumeMountTypeTmpfs
		default:
			// Infer type from source
			if strings.HasPrefix(v.Source, "./") || strings.HasPrefix(v.Source, "/") || strings.HasPrefix(v.Source, "~") {
				mount.Type = VolumeMountTypeBind
			} else {
				mount.Type = VolumeMountTypeVolume
			}
		}
		service.Volumes = append(service.Volumes, mount)
	}

	for k, v := range svc.Labels {
		service.Labels[k] = v
	}

	// Note: compose-go's NanoCPUs is misnamed - it's actually the CPU count as float32
	if svc.Deploy != nil && svc.Deploy.Resources.Limits != nil {
		limits := svc.Deploy.Resources.Limits
		service.Resources.CPULimit = float64(limits.NanoCPUs)
		service.Resources.MemoryBytes = int64(limits.MemoryBytes)
	}

	return service, nil
}

// validatePorts validates all port configurations
func validatePorts(services []Service) error {
	for _, svc := range services {
		for i, port := range svc.Ports {
			field := "services." + svc.Name + ".ports[" + strconv.Itoa(i) + "]"
			if port.Target == 0 {
				return NewParseError(field, "target port cannot be 0", ErrServiceInvalidPort)
			}
			if port.Target > 65535 {
				return NewParseError(field, "target port must be <= 65535", ErrServiceInvalidPort)
			}
			if port.Published > 65535 {
				return NewParseError(field, "published port must be <= 65535", ErrServiceInvalidPort)
			}
		}
	}
	return nil
}
