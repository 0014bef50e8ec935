// Package provider implements cloud provider clients that create and destroy
// webhook target hosts. This is part of the Imperative Shell - it talks to
// cloud APIs.
package provider

import (
	"context"

	coreprovider "github.com/artpar/shipway/internal/core/provider"
)

// ProvisionRequest contains parameters for creating a target host.
type ProvisionRequest struct {
	Name          string // instance name; also seeds key and group names
	Region        string
	Size          string
	SSHPublicKey  string // installed for the login user on first boot
	PortainerPort int    // host port the Portainer UI is published on
}

// ProvisionResult contains the created instance's identity.
type ProvisionResult struct {
	ProviderInstanceID string
	PublicIP           string
}

// DestroyRequest contains parameters for destroying a target host.
type DestroyRequest struct {
	ProviderInstanceID string
	Name               string // derives key/group names: "shipway-{Name}"
	Region             string // AWS needs this to target the correct region
}

// Provider defines the interface for cloud infrastructure providers.
type Provider interface {
	// CreateInstance provisions a docker+Portainer host and waits for its
	// public IP.
	CreateInstance(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error)

	// DestroyInstance terminates an instance and cleans up the resources
	// created alongside it.
	DestroyInstance(ctx context.Context, req DestroyRequest) error

	// ListRegions returns available regions (live from the API, static
	// catalog on failure).
	ListRegions(ctx context.Context) ([]coreprovider.Region, error)

	// ListSizes returns available instance sizes for a region (live from
	// the API, static catalog on failure).
	ListSizes(ctx context.Context, region string) ([]coreprovider.InstanceSize, error)
}
