package deploy

import "strings"

// =============================================================================
// Deployment Unit Naming
// =============================================================================

// Naming fixes the base name and DNS label a plan's units derive from.
type Naming struct {
	// Base is the primary unit's name, e.g. the container group name.
	Base string

	// DNSLabel is the primary unit's network-addressable label.
	DNSLabel string
}

// UnitName derives the name for a split-off unit.
// Pattern: {base}-{service}; the primary unit keeps the base name.
//
// Example:
//
//	Naming{Base: "shipway-app"}.UnitName("ftp") // returns "shipway-app-ftp"
func (n Naming) UnitName(service string) string {
	if service == "" {
		return n.Base
	}
	return n.Base + "-" + service
}

// UnitDNSLabel derives the DNS label for a split-off unit.
// Pattern: {label}-{service}; the primary unit keeps the base label.
func (n Naming) UnitDNSLabel(service string) string {
	if service == "" {
		return n.DNSLabel
	}
	return SanitizeDNSLabel(n.DNSLabel + "-" + service)
}

// SanitizeDNSLabel converts a name to a valid DNS label: lowercase letters,
// digits and hyphens, no leading/trailing hyphen, at most 63 characters.
//
// This is a pure function with no side effects.
//
// Example:
//
//	SanitizeDNSLabel("Shipway App")  // returns "shipway-app"
//	SanitizeDNSLabel("web_v2.1")     // returns "web-v21"
func SanitizeDNSLabel(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		case r == ' ', r == '_':
			b.WriteByte('-')
		}
	}
	label := strings.Trim(b.String(), "-")
	if len(label) > 63 {
		label = strings.Trim(label[:63], "-")
	}
	return label
}

// =============================================================================
// Infrastructure Resource Naming
// =============================================================================

// StorageAccountName derives a storage account name from a resource group.
// Pattern: {alnum(resourceGroup)}stg. Storage accounts allow only lowercase
// alphanumerics, 24 characters max.
//
// Example:
//
//	StorageAccountName("shipway-rg") // returns "shipwayrgstg"
func StorageAccountName(resourceGroup string) string {
	name := alnumLower(resourceGroup) + "stg"
	if len(name) > 24 {
		name = name[:24]
	}
	return name
}

// KeyVaultName derives a key vault name from a resource group.
// Pattern: {alnum(resourceGroup)}kv, capped at 24 characters.
func KeyVaultName(resourceGroup string) string {
	name := alnumLower(resourceGroup) + "kv"
	if len(name) > 24 {
		name = name[:24]
	}
	return name
}

// IdentityName derives the managed identity name from a resource group.
// Pattern: {resourceGroup}-identity
func IdentityName(resourceGroup string) string {
	return resourceGroup + "-identity"
}

// FileShareName derives the file share backing one named volume.
// Pattern: {base}-{volume}
//
// Example:
//
//	FileShareName("shipway-app", "workspace") // returns "shipway-app-workspace"
func FileShareName(base, volume string) string {
	return base + "-" + volume
}

// alnumLower keeps only lowercase letters and digits, lowercasing on the way.
func alnumLower(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		}
	}
	return b.String()
}
