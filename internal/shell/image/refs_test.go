package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimTag(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"registry with tag", "ghcr.io/acme/web:1.2", "ghcr.io/acme/web"},
		{"bare image with tag", "caddy:2-alpine", "caddy"},
		{"bare image without tag", "nginx", "nginx"},
		{"registry port without tag", "localhost:5000/app", "localhost:5000/app"},
		{"registry port with tag", "localhost:5000/app:v1", "localhost:5000/app"},
		{"digest reference", "ghcr.io/acme/web@sha256:abc123", "ghcr.io/acme/web"},
		{"tag and digest", "ghcr.io/acme/web:1.2@sha256:abc123", "ghcr.io/acme/web"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trimTag(tt.ref))
		})
	}
}

func TestIsGHCR(t *testing.T) {
	assert.True(t, IsGHCR("ghcr.io"))
	assert.True(t, IsGHCR("ghcr.io/acme/web:1.2"))
	assert.False(t, IsGHCR("docker.io/library/nginx"))
	assert.False(t, IsGHCR(""))
}

func TestOwnerFromRef(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"ghcr with tag", "ghcr.io/acme/web:1.2", "acme"},
		{"ghcr without tag", "ghcr.io/acme/web", "acme"},
		{"ghcr nested path", "ghcr.io/acme/team/web:2", "acme"},
		{"docker hub", "docker.io/library/nginx", ""},
		{"bare image", "nginx", ""},
		{"ghcr missing repo", "ghcr.io/acme", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OwnerFromRef(tt.ref))
		})
	}
}

func TestRepoPrefix(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"ghcr with tag", "ghcr.io/acme/web:1.2", "ghcr.io/acme/web"},
		{"docker hub", "docker.io/library/nginx:1", "docker.io/library/nginx"},
		{"bare image", "caddy:2-alpine", ""},
		{"owner only", "acme/web:1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepoPrefix(tt.ref))
		})
	}
}

func TestMirrorRef(t *testing.T) {
	tests := []struct {
		name     string
		appRef   string
		sidecar  string
		server   string
		username string
		want     string
	}{
		{
			name:     "app namespace wins",
			appRef:   "ghcr.io/acme/web:1.2.3",
			sidecar:  "caddy:2-alpine",
			server:   "ghcr.io",
			username: "acme",
			want:     "ghcr.io/acme/web/caddy:2-alpine",
		},
		{
			name:     "fully qualified sidecar keeps only its last segment",
			appRef:   "ghcr.io/acme/web:1.2.3",
			sidecar:  "docker.io/library/caddy:2-alpine",
			server:   "ghcr.io",
			username: "acme",
			want:     "ghcr.io/acme/web/caddy:2-alpine",
		},
		{
			name:     "server and username fallback",
			appRef:   "web:latest",
			sidecar:  "caddy:2-alpine",
			server:   "ghcr.io",
			username: "acme",
			want:     "ghcr.io/acme/caddy:2-alpine",
		},
		{
			name:     "trailing slash on server",
			appRef:   "web:latest",
			sidecar:  "caddy:2-alpine",
			server:   "ghcr.io/",
			username: "acme",
			want:     "ghcr.io/acme/caddy:2-alpine",
		},
		{
			name:    "no namespace available",
			appRef:  "web:latest",
			sidecar: "caddy:2-alpine",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MirrorRef(tt.appRef, tt.sidecar, tt.server, tt.username))
		})
	}
}
