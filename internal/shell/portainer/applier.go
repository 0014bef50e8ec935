package portainer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/core/manifest"
	"github.com/artpar/shipway/internal/core/render"
	"github.com/artpar/shipway/internal/shell/sshsync"
)

// =============================================================================
// Ports
// =============================================================================

// hostSession is the slice of the SSH client the applier drives.
type hostSession interface {
	Check(ctx context.Context) error
	Run(ctx context.Context, command string) (string, error)
	Upload(ctx context.Context, content []byte, remotePath string) error
}

var _ hostSession = (*sshsync.Client)(nil)

// stackTrigger fires the stack webhook once everything is in place.
type stackTrigger interface {
	Trigger(ctx context.Context) error
}

var _ stackTrigger = (*Trigger)(nil)

// =============================================================================
// Applier
// =============================================================================

// ApplierConfig shapes a webhook apply.
type ApplierConfig struct {
	// Host is the SSH target, with or without a user@ prefix.
	Host string
	// RemoteDir is where stack and env files land on the host. Defaults to
	// /opt/<plan base name>.
	RemoteDir string
	// StackFile is the stack filename under RemoteDir.
	StackFile string
	// HTTPSPort is the host port the Portainer UI is published on.
	HTTPSPort int
	// LocalRoot, when set, is rewritten to RemoteDir inside the stack so
	// bind mounts against the local checkout resolve on the host.
	LocalRoot string
	// EnvFiles are synced next to the stack file, keyed by filename.
	EnvFiles map[string][]byte
}

// Applier deploys a plan to a docker host running Portainer: it uploads the
// stack and env files over SSH, makes sure Portainer is up, pre-pulls the
// app image when registry credentials exist, and fires the stack webhook.
//
// The stack covers every service in the plan, so only the primary unit's
// apply does work; other units report included-in-stack.
type Applier struct {
	manifest *manifest.Manifest
	host     hostSession
	trigger  stackTrigger
	cfg      ApplierConfig
	log      *slog.Logger
}

// NewApplier wires the webhook apply collaborator.
func NewApplier(m *manifest.Manifest, host hostSession, trigger stackTrigger, cfg ApplierConfig, log *slog.Logger) *Applier {
	if cfg.StackFile == "" {
		cfg.StackFile = "portainer-stack.yml"
	}
	if cfg.HTTPSPort == 0 {
		cfg.HTTPSPort = DefaultWebhookConfig().HTTPSPort
	}
	return &Applier{
		manifest: m,
		host:     host,
		trigger:  trigger,
		cfg:      cfg,
		log:      log.With("component", "portainer"),
	}
}

// Apply implements the deployment applier port for webhook targets.
func (a *Applier) Apply(ctx context.Context, plan *deploy.Plan, artifact render.Artifact, _ string) (deploy.ApplyResult, error) {
	_, hostname := sshsync.SplitHost(a.cfg.Host)

	if !artifact.Primary {
		return deploy.ApplyResult{Unit: artifact.Unit, FQDN: hostname, State: "included-in-stack"}, nil
	}

	if err := CheckPublishedPorts(a.manifest, 8000, a.cfg.HTTPSPort); err != nil {
		return deploy.ApplyResult{}, err
	}

	stack, err := StackContent(a.manifest, plan)
	if err != nil {
		return deploy.ApplyResult{}, err
	}
	remoteDir := a.cfg.RemoteDir
	if remoteDir == "" {
		remoteDir = "/opt/" + plan.Naming.Base
	}
	stack = RewritePaths(stack, a.cfg.LocalRoot, remoteDir)

	if err := a.host.Check(ctx); err != nil {
		return deploy.ApplyResult{}, err
	}

	if err := a.host.Upload(ctx, []byte(stack), path.Join(remoteDir, a.cfg.StackFile)); err != nil {
		return deploy.ApplyResult{}, fmt.Errorf("uploading stack file: %w", err)
	}
	for _, name := range sortedFileNames(a.cfg.EnvFiles) {
		if err := a.host.Upload(ctx, a.cfg.EnvFiles[name], path.Join(remoteDir, name)); err != nil {
			return deploy.ApplyResult{}, fmt.Errorf("uploading %s: %w", name, err)
		}
	}

	if _, err := a.host.Run(ctx, EnsurePortainerCommand(a.cfg.HTTPSPort)); err != nil {
		return deploy.ApplyResult{}, fmt.Errorf("ensuring portainer is running: %w", err)
	}

	if cmd := registryPullCommand(plan); cmd != "" {
		a.log.Info("pre-pulling app image on target", "image", plan.App.Image)
		if _, err := a.host.Run(ctx, cmd); err != nil {
			return deploy.ApplyResult{}, fmt.Errorf("registry login and pull on target: %w", err)
		}
	}

	if err := a.trigger.Trigger(ctx); err != nil {
		return deploy.ApplyResult{}, fmt.Errorf("triggering stack webhook: %w", err)
	}

	a.log.Info("stack deployment triggered", "host", hostname, "unit", artifact.Unit)
	return deploy.ApplyResult{Unit: artifact.Unit, FQDN: hostname, State: "webhook-triggered"}, nil
}

// registryPullCommand builds the remote login-and-pull command when the plan
// carries complete private-registry credentials. Portainer pulls through the
// host's docker daemon, so logging in there is what makes the private image
// reachable.
func registryPullCommand(plan *deploy.Plan) string {
	reg := plan.Registry
	if reg == nil || reg.Server == "" || reg.Username == "" || reg.Password == "" {
		return ""
	}
	if !strings.Contains(reg.Server, "ghcr.io") {
		return ""
	}
	return RegistryLoginPullCommand(reg.Server, reg.Username, reg.Password, plan.App.Image)
}

func sortedFileNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
