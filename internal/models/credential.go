package models

import "time"

// TokenBundle is the delegated-access credential pair issued by Xero for one
// (owner, tenant) connection. Access tokens live ~30 minutes; refresh tokens
// ~60 days and rotate on every refresh. A bundle is only ever handled as a
// pair — there is no valid state with an access token but no refresh token.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// SealedBundle is the encrypted wire/storage form of a TokenBundle. All three
// fields are base64 (standard encoding) so they can be stored independently.
type SealedBundle struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
}

// Credential is a persisted Xero connection: a sealed token bundle plus
// metadata, keyed by (owner, tenant). The decrypted bundle is only populated
// on read paths and never stored.
type Credential struct {
	OwnerID    string       `json:"owner_id"`
	TenantID   string       `json:"tenant_id"`
	TenantName string       `json:"tenant_name"`
	Sealed     SealedBundle `json:"sealed"`
	SystemWide bool         `json:"system_wide"`
	LastSynced time.Time    `json:"last_synced"`
	CreatedAt  time.Time    `json:"created_at"`

	// Bundle is the decrypted token pair, populated by the store on read.
	// Never serialized.
	Bundle *TokenBundle `json:"-"`
}

// CredentialSummary is the non-secret view of a Credential used by the
// connection-management endpoints.
type CredentialSummary struct {
	OwnerID    string    `json:"owner_id"`
	TenantID   string    `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
	SystemWide bool      `json:"system_wide"`
	LastSynced time.Time `json:"last_synced"`
}

// Summary returns the non-secret view of the credential.
func (c *Credential) Summary() CredentialSummary {
	return CredentialSummary{
		OwnerID:    c.OwnerID,
		TenantID:   c.TenantID,
		TenantName: c.TenantName,
		SystemWide: c.SystemWide,
		LastSynced: c.LastSynced,
	}
}

// Tenant identifies one Xero organisation reachable with an access token.
type Tenant struct {
	TenantID   string    `json:"tenantId"`
	TenantName string    `json:"tenantName"`
	CreatedAt  time.Time `json:"createdDateUtc"`
}
