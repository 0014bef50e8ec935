package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaddyBootstrap_WritesConfigThenExecs(t *testing.T) {
	script := CaddyBootstrap("app.example.com", 8080)

	assert.True(t, strings.HasPrefix(script, "set -eu\n"))
	assert.Contains(t, script, "mkdir -p /config/caddy")
	assert.Contains(t, script, "cat > /config/caddy/Caddyfile <<'CADDY'")
	assert.Contains(t, script, "\nCADDY\n")
	assert.True(t, strings.HasSuffix(script, "exec caddy run --config /config/caddy/Caddyfile --adapter caddyfile"))
}

func TestCaddyBootstrap_DomainBlock(t *testing.T) {
	script := CaddyBootstrap("app.example.com", 3000)

	assert.Contains(t, script, "app.example.com {")
	assert.Contains(t, script, "reverse_proxy http://127.0.0.1:3000 {")
	assert.Contains(t, script, "encode zstd gzip")
	assert.Contains(t, script, `header Strict-Transport-Security "max-age=31536000; includeSubDomains; preload"`)
}

func TestCaddyBootstrap_CredentialsStayInEnvPlaceholders(t *testing.T) {
	script := CaddyBootstrap("app.example.com", 8080)

	assert.Contains(t, script, "{$ACME_EMAIL}")
	assert.Contains(t, script, "{$BASIC_AUTH_USER} {$BASIC_AUTH_HASH}")
}

func TestCaddyBootstrap_WebsocketHeadersForwarded(t *testing.T) {
	script := CaddyBootstrap("app.example.com", 8080)

	assert.Contains(t, script, "header_up Upgrade {http.request.header.Upgrade}")
	assert.Contains(t, script, "header_up Connection {http.request.header.Connection}")
}
