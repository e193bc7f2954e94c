package interfaces

import (
	"context"
	"net/url"

	"github.com/bobmcallan/ledgerlink/internal/models"
)

// ResourceRequest describes one proxied call to the Xero accounting API.
type ResourceRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// ResourceResponse carries the raw provider result. Status is reported as-is;
// the gateway, not the client, decides what is refresh-eligible.
type ResourceResponse struct {
	StatusCode int
	Body       []byte
}

// XeroClient is the wire-level client for Xero's identity and accounting
// endpoints. It holds no credential state; tokens are passed per call.
type XeroClient interface {
	// AuthorizeURL builds the user-facing authorization redirect with the
	// configured client id, redirect uri, space-joined scopes, and state.
	AuthorizeURL(state string) string

	// ExchangeCode swaps an authorization code for a token bundle
	// (grant_type=authorization_code).
	ExchangeCode(ctx context.Context, code, redirectURI string) (*models.TokenBundle, error)

	// Refresh swaps a refresh token for a new bundle
	// (grant_type=refresh_token). The old refresh token is consumed.
	Refresh(ctx context.Context, refreshToken string) (*models.TokenBundle, error)

	// Connections lists the organisations the access token can reach.
	Connections(ctx context.Context, accessToken string) ([]models.Tenant, error)

	// Do executes one resource call with bearer and tenant headers attached.
	Do(ctx context.Context, accessToken, tenantID string, req ResourceRequest) (*ResourceResponse, error)
}
