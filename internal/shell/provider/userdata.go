package provider

import (
	"fmt"

	"github.com/artpar/shipway/internal/shell/portainer"
)

// dockerInstallScript installs docker from the official apt repository on
// Ubuntu.
const dockerInstallScript = `#!/bin/bash
set -e
apt-get update -y
apt-get install -y ca-certificates curl gnupg
install -m 0755 -d /etc/apt/keyrings
curl -fsSL https://download.docker.com/linux/ubuntu/gpg | gpg --dearmor -o /etc/apt/keyrings/docker.gpg
chmod a+r /etc/apt/keyrings/docker.gpg
echo "deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/docker.gpg] https://download.docker.com/linux/ubuntu $(. /etc/os-release && echo "$VERSION_CODENAME") stable" | tee /etc/apt/sources.list.d/docker.list > /dev/null
apt-get update -y
apt-get install -y docker-ce docker-ce-cli containerd.io docker-buildx-plugin docker-compose-plugin
systemctl enable docker
systemctl start docker
`

// TargetUserData returns the first-boot script for a webhook target host:
// docker install followed by the same idempotent Portainer bring-up the
// apply path runs over SSH.
func TargetUserData(portainerPort int) string {
	return dockerInstallScript + portainer.EnsurePortainerCommand(portainerPort) + "\n"
}

// portainerOnlyUserData is for images that already ship docker, like the
// DigitalOcean marketplace image.
func portainerOnlyUserData(portainerPort int) string {
	return fmt.Sprintf("#!/bin/bash\nset -e\n%s\n", portainer.EnsurePortainerCommand(portainerPort))
}

// portainerPortOf applies the default UI port when the request leaves it
// unset.
func portainerPortOf(req ProvisionRequest) int {
	if req.PortainerPort == 0 {
		return portainer.DefaultWebhookConfig().HTTPSPort
	}
	return req.PortainerPort
}
