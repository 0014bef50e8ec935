package image

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/build"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/shipway/internal/core/deploy"
)

const okStream = `{"stream":"ok"}` + "\n"

// deniedStream is the shape the daemon emits when a registry rejects an
// operation mid-stream.
func deniedStream(message string) string {
	return `{"errorDetail":{"message":"` + message + `"},"error":"` + message + `"}` + "\n"
}

// fakeDocker records every SDK call and plays back configured responses.
type fakeDocker struct {
	builds    []build.ImageBuildOptions
	buildCtx  []byte
	buildBody string
	buildErr  error

	pulls     []string
	pullAuths []string
	pullErr   error

	pushes   []string
	pushAuth []string
	pushBody map[string]string
	pushErr  error

	tags   [][2]string
	tagErr error

	logins   []registry.AuthConfig
	loginErr error

	closed bool
}

func (f *fakeDocker) ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error) {
	if f.buildErr != nil {
		return build.ImageBuildResponse{}, f.buildErr
	}
	data, err := io.ReadAll(buildContext)
	if err != nil {
		return build.ImageBuildResponse{}, err
	}
	f.buildCtx = data
	f.builds = append(f.builds, options)
	body := f.buildBody
	if body == "" {
		body = okStream
	}
	return build.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeDocker) ImagePull(ctx context.Context, refStr string, options imagetypes.PullOptions) (io.ReadCloser, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	f.pulls = append(f.pulls, refStr)
	f.pullAuths = append(f.pullAuths, options.RegistryAuth)
	return io.NopCloser(strings.NewReader(okStream)), nil
}

func (f *fakeDocker) ImagePush(ctx context.Context, ref string, options imagetypes.PushOptions) (io.ReadCloser, error) {
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.pushes = append(f.pushes, ref)
	f.pushAuth = append(f.pushAuth, options.RegistryAuth)
	body := okStream
	if override, ok := f.pushBody[ref]; ok {
		body = override
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeDocker) ImageTag(ctx context.Context, source, target string) error {
	if f.tagErr != nil {
		return f.tagErr
	}
	f.tags = append(f.tags, [2]string{source, target})
	return nil
}

func (f *fakeDocker) RegistryLogin(ctx context.Context, auth registry.AuthConfig) (registry.AuthenticateOKBody, error) {
	if f.loginErr != nil {
		return registry.AuthenticateOKBody{}, f.loginErr
	}
	f.logins = append(f.logins, auth)
	return registry.AuthenticateOKBody{Status: "Login Succeeded"}, nil
}

func (f *fakeDocker) Close() error {
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPublisher(f *fakeDocker) *Publisher {
	return &Publisher{api: f, log: discardLogger()}
}

func ghcrAuth() *deploy.RegistryAuth {
	return &deploy.RegistryAuth{Server: "ghcr.io", Username: "acme", Password: "tok"}
}

// =============================================================================
// Build
// =============================================================================

func TestResolveContext(t *testing.T) {
	root := t.TempDir()

	assert.Equal(t, "/explicit", ResolveContext(root, "/explicit"))
	assert.Equal(t, root, ResolveContext(root, ""))

	nested := filepath.Join(root, "docker")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	assert.Equal(t, nested, ResolveContext(root, ""))
}

func TestBuildTagsImageAndShipsContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.txt"), []byte("hello"), 0o644))

	f := &fakeDocker{}
	p := testPublisher(f)

	err := p.Build(context.Background(), BuildSpec{Ref: "ghcr.io/acme/web:1.0", ContextDir: dir})
	require.NoError(t, err)

	require.Len(t, f.builds, 1)
	assert.Equal(t, []string{"ghcr.io/acme/web:1.0"}, f.builds[0].Tags)
	assert.True(t, f.builds[0].Remove)

	names := map[string]bool{}
	tr := tar.NewReader(bytes.NewReader(f.buildCtx))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names[hdr.Name] = true
	}
	assert.True(t, names["Dockerfile"])
	assert.True(t, names["app.txt"])
}

func TestBuildRequiresReference(t *testing.T) {
	f := &fakeDocker{}
	p := testPublisher(f)

	err := p.Build(context.Background(), BuildSpec{ContextDir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadReference)
	assert.Empty(t, f.builds)
}

func TestBuildSurfacesStreamError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))

	f := &fakeDocker{buildBody: deniedStream("failed to compute cache key")}
	p := testPublisher(f)

	err := p.Build(context.Background(), BuildSpec{Ref: "web:1", ContextDir: dir})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.Contains(t, err.Error(), "failed to compute cache key")
}

// =============================================================================
// Login / Push / Pull
// =============================================================================

func TestLoginVerifiesCredentials(t *testing.T) {
	f := &fakeDocker{}
	p := testPublisher(f)

	err := p.Login(context.Background(), ghcrAuth())
	require.NoError(t, err)
	require.Len(t, f.logins, 1)
	assert.Equal(t, "acme", f.logins[0].Username)
	assert.Equal(t, "ghcr.io", f.logins[0].ServerAddress)
}

func TestLoginFailureWrapsSentinel(t *testing.T) {
	f := &fakeDocker{loginErr: errors.New("401 Unauthorized")}
	p := testPublisher(f)

	err := p.Login(context.Background(), ghcrAuth())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestPushEncodesCredentials(t *testing.T) {
	f := &fakeDocker{}
	p := testPublisher(f)

	err := p.Push(context.Background(), "ghcr.io/acme/web:1.0", ghcrAuth())
	require.NoError(t, err)
	require.Len(t, f.pushes, 1)
	assert.Equal(t, "ghcr.io/acme/web:1.0", f.pushes[0])

	decoded, err := registry.DecodeAuthConfig(f.pushAuth[0])
	require.NoError(t, err)
	assert.Equal(t, "acme", decoded.Username)
	assert.Equal(t, "tok", decoded.Password)
	assert.Equal(t, "ghcr.io", decoded.ServerAddress)
}

func TestPushRequiresFullCredentials(t *testing.T) {
	f := &fakeDocker{}
	p := testPublisher(f)

	err := p.Push(context.Background(), "ghcr.io/acme/web:1.0",
		&deploy.RegistryAuth{Server: "ghcr.io", Username: "acme"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Empty(t, f.pushes)
}

func TestPushGHCRDeniedGetsScopeHint(t *testing.T) {
	ref := "ghcr.io/acme/web:1.0"
	f := &fakeDocker{pushBody: map[string]string{
		ref: deniedStream("denied: installation not allowed to Create organization package"),
	}}
	p := testPublisher(f)

	err := p.Push(context.Background(), ref, ghcrAuth())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPushFailed)
	assert.Contains(t, err.Error(), "write:packages")
}

func TestPushNonGHCRDeniedHasNoScopeHint(t *testing.T) {
	ref := "registry.example.com/web:1.0"
	f := &fakeDocker{pushBody: map[string]string{
		ref: deniedStream("denied: requested access to the resource is denied"),
	}}
	p := testPublisher(f)

	err := p.Push(context.Background(), ref,
		&deploy.RegistryAuth{Server: "registry.example.com", Username: "acme", Password: "tok"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPushFailed)
	assert.NotContains(t, err.Error(), "write:packages")
}

func TestPullAnonymous(t *testing.T) {
	f := &fakeDocker{}
	p := testPublisher(f)

	err := p.Pull(context.Background(), "caddy:2-alpine", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"caddy:2-alpine"}, f.pulls)
	assert.Empty(t, f.pullAuths[0])
}

func TestPullWithCredentials(t *testing.T) {
	f := &fakeDocker{}
	p := testPublisher(f)

	err := p.Pull(context.Background(), "ghcr.io/acme/web:1.0", ghcrAuth())
	require.NoError(t, err)
	require.Len(t, f.pullAuths, 1)
	assert.NotEmpty(t, f.pullAuths[0])
}

// =============================================================================
// Sidecar Mirroring
// =============================================================================

func TestMirrorSidecarIntoAppNamespace(t *testing.T) {
	f := &fakeDocker{}
	p := testPublisher(f)

	got := p.MirrorSidecar(context.Background(), "caddy:2-alpine", "ghcr.io/acme/web:1.2", ghcrAuth())

	assert.Equal(t, "ghcr.io/acme/web/caddy:2-alpine", got)
	assert.Equal(t, []string{"caddy:2-alpine"}, f.pulls)
	require.Len(t, f.tags, 1)
	assert.Equal(t, [2]string{"caddy:2-alpine", "ghcr.io/acme/web/caddy:2-alpine"}, f.tags[0])
	assert.Equal(t, []string{"ghcr.io/acme/web/caddy:2-alpine"}, f.pushes)
}

func TestMirrorSidecarSkipsNonGHCRRegistry(t *testing.T) {
	f := &fakeDocker{}
	p := testPublisher(f)

	got := p.MirrorSidecar(context.Background(), "caddy:2-alpine", "registry.example.com/web:1",
		&deploy.RegistryAuth{Server: "registry.example.com", Username: "acme", Password: "tok"})

	assert.Equal(t, "caddy:2-alpine", got)
	assert.Equal(t, []string{"caddy:2-alpine"}, f.pulls)
	assert.Empty(t, f.tags)
	assert.Empty(t, f.pushes)
}

func TestMirrorSidecarSkipsWhenAlreadyInNamespace(t *testing.T) {
	f := &fakeDocker{}
	p := testPublisher(f)

	got := p.MirrorSidecar(context.Background(),
		"ghcr.io/acme/web/caddy:2-alpine", "ghcr.io/acme/web:1.2", ghcrAuth())

	assert.Equal(t, "ghcr.io/acme/web/caddy:2-alpine", got)
	assert.Empty(t, f.tags)
	assert.Empty(t, f.pushes)
}

func TestMirrorSidecarPullFailureFallsBack(t *testing.T) {
	f := &fakeDocker{pullErr: errors.New("dial tcp: connection refused")}
	p := testPublisher(f)

	got := p.MirrorSidecar(context.Background(), "caddy:2-alpine", "ghcr.io/acme/web:1.2", ghcrAuth())

	assert.Equal(t, "caddy:2-alpine", got)
	assert.Empty(t, f.tags)
	assert.Empty(t, f.pushes)
}

func TestMirrorSidecarPushFailureFallsBack(t *testing.T) {
	f := &fakeDocker{pushBody: map[string]string{
		"ghcr.io/acme/web/caddy:2-alpine": deniedStream("denied: permission_denied"),
	}}
	p := testPublisher(f)

	got := p.MirrorSidecar(context.Background(), "caddy:2-alpine", "ghcr.io/acme/web:1.2", ghcrAuth())

	assert.Equal(t, "caddy:2-alpine", got)
	require.Len(t, f.tags, 1)
}
