package provider

import "errors"

// =============================================================================
// Credential Resolution (Pure - no I/O)
// =============================================================================

var (
	ErrAWSAccessKeyRequired = errors.New("AWS_ACCESS_KEY_ID is required")
	ErrAWSSecretKeyRequired = errors.New("AWS_SECRET_ACCESS_KEY is required")
	ErrDOTokenRequired      = errors.New("DIGITALOCEAN_TOKEN is required")
	ErrHetznerTokenRequired = errors.New("HCLOUD_TOKEN is required")
	ErrUnknownProvider      = errors.New("unknown provider type")
)

// Credentials holds whichever secrets a provider client needs. Only the
// fields for the resolved provider are populated.
type Credentials struct {
	AccessKeyID     string // aws
	SecretAccessKey string // aws
	APIToken        string // digitalocean, hetzner
}

// CredentialsFromEnv resolves provider credentials from already-merged
// environment values, using each provider's conventional variable names.
func CredentialsFromEnv(provider string, env map[string]string) (Credentials, error) {
	switch provider {
	case AWS:
		creds := Credentials{
			AccessKeyID:     env["AWS_ACCESS_KEY_ID"],
			SecretAccessKey: env["AWS_SECRET_ACCESS_KEY"],
		}
		if creds.AccessKeyID == "" {
			return Credentials{}, ErrAWSAccessKeyRequired
		}
		if creds.SecretAccessKey == "" {
			return Credentials{}, ErrAWSSecretKeyRequired
		}
		return creds, nil

	case DigitalOcean:
		creds := Credentials{APIToken: env["DIGITALOCEAN_TOKEN"]}
		if creds.APIToken == "" {
			return Credentials{}, ErrDOTokenRequired
		}
		return creds, nil

	case Hetzner:
		creds := Credentials{APIToken: env["HCLOUD_TOKEN"]}
		if creds.APIToken == "" {
			return Credentials{}, ErrHetznerTokenRequired
		}
		return creds, nil

	default:
		return Credentials{}, ErrUnknownProvider
	}
}
