package image

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/build"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/artpar/shipway/internal/core/deploy"
)

// =============================================================================
// Docker API Seam
// =============================================================================

// dockerAPI is the slice of the docker SDK the publisher drives. Tests swap
// in a fake; production uses *client.Client.
type dockerAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImagePull(ctx context.Context, refStr string, options imagetypes.PullOptions) (io.ReadCloser, error)
	ImagePush(ctx context.Context, ref string, options imagetypes.PushOptions) (io.ReadCloser, error)
	ImageTag(ctx context.Context, source, target string) error
	RegistryLogin(ctx context.Context, auth registry.AuthConfig) (registry.AuthenticateOKBody, error)
	Close() error
}

var _ dockerAPI = (*client.Client)(nil)

// =============================================================================
// Publisher
// =============================================================================

// Publisher builds, pushes and mirrors the images a deployment references.
type Publisher struct {
	api dockerAPI
	log *slog.Logger
}

// NewPublisher connects to the local docker daemon using the standard
// environment configuration (DOCKER_HOST et al).
func NewPublisher(log *slog.Logger) (*Publisher, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, NewImageError("NewPublisher", "", "failed to create docker client", ErrConnectionFailed)
	}
	return &Publisher{api: cli, log: log.With("component", "image")}, nil
}

// Close releases the docker client.
func (p *Publisher) Close() error {
	return p.api.Close()
}

// =============================================================================
// Build
// =============================================================================

// BuildSpec names a local image build.
type BuildSpec struct {
	Ref        string // reference to tag the result with
	ContextDir string // build context directory
	Dockerfile string // path within the context; empty means Dockerfile
}

// ResolveContext picks the build context directory. An explicit choice wins;
// otherwise <repoRoot>/docker is used when it carries a Dockerfile, falling
// back to the repository root.
func ResolveContext(repoRoot, explicit string) string {
	if explicit != "" {
		return explicit
	}
	nested := filepath.Join(repoRoot, "docker")
	if _, err := os.Stat(filepath.Join(nested, "Dockerfile")); err == nil {
		return nested
	}
	return repoRoot
}

// Build builds the image described by spec against the local daemon.
func (p *Publisher) Build(ctx context.Context, spec BuildSpec) error {
	if spec.Ref == "" {
		return NewImageError("Build", "", "image reference is required", ErrBadReference)
	}

	buildCtx, err := archive.TarWithOptions(spec.ContextDir, &archive.TarOptions{})
	if err != nil {
		return NewImageError("Build", spec.Ref, "failed to tar build context "+spec.ContextDir, ErrBuildFailed)
	}
	defer buildCtx.Close()

	resp, err := p.api.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:       []string{spec.Ref},
		Dockerfile: spec.Dockerfile,
		Remove:     true,
	})
	if err != nil {
		return NewImageError("Build", spec.Ref, err.Error(), ErrBuildFailed)
	}
	defer resp.Body.Close()

	if err := p.drain("Build", spec.Ref, resp.Body, ErrBuildFailed); err != nil {
		return err
	}

	p.log.Info("image built", "image", spec.Ref, "context", spec.ContextDir)
	return nil
}

// =============================================================================
// Login / Push / Pull
// =============================================================================

// Login verifies registry credentials against the daemon.
func (p *Publisher) Login(ctx context.Context, auth *deploy.RegistryAuth) error {
	if err := requireCreds("Login", auth); err != nil {
		return err
	}
	_, err := p.api.RegistryLogin(ctx, registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		ServerAddress: auth.Server,
	})
	if err != nil {
		return NewImageError("Login", auth.Server, err.Error(), ErrLoginFailed)
	}
	p.log.Debug("registry login ok", "server", auth.Server, "username", auth.Username)
	return nil
}

// Push pushes a locally built image to its registry.
func (p *Publisher) Push(ctx context.Context, ref string, auth *deploy.RegistryAuth) error {
	if err := requireCreds("Push", auth); err != nil {
		return err
	}
	encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		ServerAddress: auth.Server,
	})
	if err != nil {
		return NewImageError("Push", ref, "failed to encode registry credentials", ErrPushFailed)
	}

	reader, err := p.api.ImagePush(ctx, ref, imagetypes.PushOptions{RegistryAuth: encoded})
	if err != nil {
		return NewImageError("Push", ref, err.Error(), ErrPushFailed)
	}
	defer reader.Close()

	if err := p.drain("Push", ref, reader, ErrPushFailed); err != nil {
		var imgErr *ImageError
		if errors.As(err, &imgErr) {
			if hint := ghcrScopeHint(ref, imgErr.Message); hint != "" {
				imgErr.Message += " (" + hint + ")"
			}
		}
		return err
	}

	p.log.Info("image pushed", "image", ref)
	return nil
}

// Pull fetches an image. A nil or incomplete auth pulls anonymously.
func (p *Publisher) Pull(ctx context.Context, ref string, auth *deploy.RegistryAuth) error {
	var opts imagetypes.PullOptions
	if auth != nil && auth.Username != "" && auth.Password != "" {
		encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username:      auth.Username,
			Password:      auth.Password,
			ServerAddress: auth.Server,
		})
		if err != nil {
			return NewImageError("Pull", ref, "failed to encode registry credentials", ErrPullFailed)
		}
		opts.RegistryAuth = encoded
	}

	reader, err := p.api.ImagePull(ctx, ref, opts)
	if err != nil {
		return NewImageError("Pull", ref, err.Error(), ErrPullFailed)
	}
	defer reader.Close()

	if err := p.drain("Pull", ref, reader, ErrPullFailed); err != nil {
		return err
	}

	p.log.Debug("image pulled", "image", ref)
	return nil
}

// =============================================================================
// Sidecar Mirroring
// =============================================================================

// MirrorSidecar prefetches the sidecar image and, when the app image lives on
// GHCR, re-tags and pushes it into the app image's namespace so the target
// platform pulls everything through one registry credential. Mirroring is
// best effort: any failure falls back to the upstream reference.
func (p *Publisher) MirrorSidecar(ctx context.Context, sidecarRef, appRef string, auth *deploy.RegistryAuth) string {
	if err := p.Pull(ctx, sidecarRef, nil); err != nil {
		p.log.Warn("sidecar prefetch failed, continuing with upstream reference",
			"image", sidecarRef, "error", err)
		return sidecarRef
	}

	if auth == nil || !IsGHCR(auth.Server) || auth.Username == "" {
		p.log.Debug("sidecar mirror skipped", "image", sidecarRef)
		return sidecarRef
	}

	mirror := MirrorRef(appRef, sidecarRef, auth.Server, auth.Username)
	if mirror == "" {
		return sidecarRef
	}
	if mirror == sidecarRef {
		p.log.Debug("sidecar already lives in the app namespace", "image", sidecarRef)
		return sidecarRef
	}

	if err := p.api.ImageTag(ctx, sidecarRef, mirror); err != nil {
		p.log.Warn("sidecar mirror tag failed, using upstream image",
			"image", sidecarRef, "mirror", mirror, "error", err)
		return sidecarRef
	}
	if err := p.Push(ctx, mirror, auth); err != nil {
		p.log.Warn("sidecar mirror push failed, using upstream image",
			"image", sidecarRef, "mirror", mirror, "error", err)
		return sidecarRef
	}

	p.log.Info("sidecar mirrored", "image", sidecarRef, "mirror", mirror)
	return mirror
}

// =============================================================================
// Helpers
// =============================================================================

// drain consumes a docker progress stream and surfaces any error frame the
// daemon embedded in it.
func (p *Publisher) drain(op, ref string, r io.Reader, sentinel error) error {
	if err := jsonmessage.DisplayJSONMessagesStream(r, io.Discard, 0, false, nil); err != nil {
		var jerr *jsonmessage.JSONError
		if errors.As(err, &jerr) {
			return NewImageError(op, ref, jerr.Message, sentinel)
		}
		return NewImageError(op, ref, err.Error(), sentinel)
	}
	return nil
}

func requireCreds(op string, auth *deploy.RegistryAuth) error {
	if auth == nil || auth.Server == "" || auth.Username == "" || auth.Password == "" {
		return NewImageError(op, "", "registry server, username and password are all required", ErrLoginFailed)
	}
	return nil
}

// ghcrScopeHint maps GHCR permission failures to the usual fix, since the
// raw daemon message does not mention token scopes at all.
func ghcrScopeHint(ref, message string) string {
	if !IsGHCR(ref) {
		return ""
	}
	m := strings.ToLower(message)
	for _, marker := range []string{"denied", "unauthorized", "not allowed"} {
		if strings.Contains(m, marker) {
			return "check that the token carries the write:packages scope and that the image namespace matches the token owner"
		}
	}
	return ""
}
