package portainer

import (
	"fmt"

	"github.com/artpar/shipway/internal/shell/sshsync"
)

// =============================================================================
// Remote Commands
// =============================================================================

// EnsurePortainerCommand returns the idempotent remote command that brings
// Portainer up on the target host: create the shared proxy network, start or
// create the container, and attach it to the network. httpsPort is the host
// port the UI is published on; inside the container Portainer listens on
// 9443.
func EnsurePortainerCommand(httpsPort int) string {
	return "docker network inspect caddy >/dev/null 2>&1 || docker network create caddy >/dev/null; " +
		"if docker ps --format '{{.Names}}' | grep -Fxq portainer; then " +
		"echo 'portainer already running'; " +
		"elif docker ps -a --format '{{.Names}}' | grep -Fxq portainer; then " +
		"docker start portainer >/dev/null; " +
		"else " +
		"docker volume create portainer_data >/dev/null && " +
		fmt.Sprintf("docker run -d --name portainer --restart=unless-stopped -p 8000:8000 -p %d:9443 ", httpsPort) +
		"-v /var/run/docker.sock:/var/run/docker.sock -v portainer_data:/data " +
		"portainer/portainer-ce:latest >/dev/null; " +
		"fi; " +
		"docker network connect caddy portainer >/dev/null 2>&1 || true"
}

// RegistryLoginPullCommand builds the remote docker login and pull for a
// private image. The token is piped to docker login's stdin.
func RegistryLoginPullCommand(server, username, token, image string) string {
	return fmt.Sprintf("printf %%s %s | docker login %s -u %s --password-stdin >/dev/null && docker pull %s >/dev/null",
		sshsync.Quote(token), sshsync.Quote(server), sshsync.Quote(username), sshsync.Quote(image))
}
