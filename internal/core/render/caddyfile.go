package render

import (
	"fmt"
	"strings"
)

// =============================================================================
// TLS Proxy Bootstrap
// =============================================================================

// CaddyBootstrap returns the startup script for the TLS proxy container.
//
// The script writes a Caddyfile for the public domain - ACME-managed TLS,
// compression, HSTS, a single basic-auth layer over all routes, reverse
// proxy to the app on localhost - and then execs caddy against it.
// Credentials and the ACME email are resolved from the container environment
// at startup, never embedded in the script itself.
//
// Example:
//
//	CaddyBootstrap("app.example.com", 8080)
//	// Caddyfile body contains:
//	// app.example.com {
//	//   ...
//	//   reverse_proxy http://127.0.0.1:8080 { ... }
//	// }
func CaddyBootstrap(publicDomain string, appPort int) string {
	lines := []string{
		"set -eu",
		"mkdir -p /config/caddy",
		"cat > /config/caddy/Caddyfile <<'CADDY'",
		"{",
		"  email {$ACME_EMAIL}",
		"}",
		"",
		publicDomain + " {",
		"  log",
		"  encode zstd gzip",
		`  header Strict-Transport-Security "max-age=31536000; includeSubDomains; preload"`,
		"",
		"  # Single Basic Auth layer for all routes",
		"  basic_auth /* {",
		"    {$BASIC_AUTH_USER} {$BASIC_AUTH_HASH}",
		"  }",
		"",
		"  # Proxy to the app",
		fmt.Sprintf("  reverse_proxy http://127.0.0.1:%d {", appPort),
		"    header_up Upgrade {http.request.header.Upgrade}",
		"    header_up Connection {http.request.header.Connection}",
		"  }",
		"}",
		"CADDY",
		"",
		"# Run Caddy with the mounted /data for certs",
		"exec caddy run --config /config/caddy/Caddyfile --adapter caddyfile",
	}
	return strings.Join(lines, "\n")
}
