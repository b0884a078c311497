package models

import "strings"

// DefaultTenantID is used when a request names no tenant.
const DefaultTenantID = "core"

// Tenant is a registry entry. Overrides replace the service-wide settings
// for this tenant only.
type Tenant struct {
	ID        string    `yaml:"id" json:"id"`
	Branding  Branding  `yaml:"branding" json:"branding"`
	Overrides Overrides `yaml:"overrides" json:"-"`
}

// Branding is presentation metadata surfaced to clients.
type Branding struct {
	Name         string `yaml:"name" json:"name"`
	PrimaryColor string `yaml:"primaryColor,omitempty" json:"primaryColor,omitempty"`
	LogoURL      string `yaml:"logoUrl,omitempty" json:"logoUrl,omitempty"`
}

// Overrides are optional per-tenant infrastructure settings.
type Overrides struct {
	S3Bucket             string  `yaml:"s3Bucket,omitempty"`
	S3Prefix             *string `yaml:"s3Prefix,omitempty"`
	ChainRegistryAddress string  `yaml:"chainRegistryAddress,omitempty"`
}

// Base is the service-wide configuration tenants inherit from.
type Base struct {
	S3Bucket             string
	S3Prefix             string
	ChainRegistryAddress string
}

// Resolved is the effective configuration for one tenant.
type Resolved struct {
	ID                   string
	Branding             Branding
	S3Bucket             string
	S3Prefix             string
	ChainRegistryAddress string
}

// Resolve merges t over base. A nil tenant yields the default tenant with
// base settings. The prefix always ends with "/".
func Resolve(base Base, t *Tenant) Resolved {
	resolved := Resolved{
		ID:                   DefaultTenantID,
		Branding:             Branding{Name: "Core"},
		S3Bucket:             base.S3Bucket,
		S3Prefix:             base.S3Prefix,
		ChainRegistryAddress: base.ChainRegistryAddress,
	}
	if t != nil {
		resolved.ID = t.ID
		if t.Branding.Name != "" {
			resolved.Branding = t.Branding
		}
		if t.Overrides.S3Bucket != "" {
			resolved.S3Bucket = t.Overrides.S3Bucket
		}
		if t.Overrides.S3Prefix != nil {
			resolved.S3Prefix = *t.Overrides.S3Prefix
		}
		if t.Overrides.ChainRegistryAddress != "" {
			resolved.ChainRegistryAddress = t.Overrides.ChainRegistryAddress
		}
	}
	resolved.S3Prefix = NormalizePrefix(resolved.S3Prefix)
	return resolved
}

// NormalizePrefix appends a trailing slash when missing. An empty prefix becomes "/".
func NormalizePrefix(prefix string) string {
	if strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
