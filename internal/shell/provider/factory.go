package provider

import (
	"fmt"
	"log/slog"

	coreprovider "github.com/artpar/shipway/internal/core/provider"
)

// New creates a cloud provider client from resolved environment values.
func New(providerType string, env map[string]string, logger *slog.Logger) (Provider, error) {
	creds, err := coreprovider.CredentialsFromEnv(providerType, env)
	if err != nil {
		return nil, fmt.Errorf("resolving %s credentials: %w", providerType, err)
	}

	switch providerType {
	case coreprovider.AWS:
		return NewAWSProvider(creds.AccessKeyID, creds.SecretAccessKey, logger), nil
	case coreprovider.DigitalOcean:
		return NewDigitalOceanProvider(creds.APIToken, logger), nil
	case coreprovider.Hetzner:
		return NewHetznerProvider(creds.APIToken, logger), nil
	default:
		return nil, coreprovider.ErrUnknownProvider
	}
}
