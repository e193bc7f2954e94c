package interfaces

import (
	"context"
	"net/url"

	"github.com/bobmcallan/ledgerlink/internal/models"
)

// ConnectionService manages the Xero token lifecycle for one owner: initial
// grant exchange, tenant resolution, refresh, and disconnect. It never
// persists bundles itself except where noted — exchange results are handed
// back for the caller to persist.
type ConnectionService interface {
	// AuthorizeURL builds the authorization redirect for an owner. The state
	// parameter is the owner's identity and must round-trip unchanged.
	AuthorizeURL(ownerID string) string

	// CompleteExchange exchanges an authorization code, resolves the target
	// tenant (latest-connected wins), and returns the bundle and tenant for
	// persistence.
	CompleteExchange(ctx context.Context, code string) (*models.TokenBundle, *models.Tenant, error)

	// Refresh exchanges a refresh token for a new bundle. The old refresh
	// token is treated as consumed on success.
	Refresh(ctx context.Context, refreshToken string) (*models.TokenBundle, error)

	// ResolveTenant selects the organisation an access token targets,
	// preferring the most recently connected one.
	ResolveTenant(ctx context.Context, accessToken string) (*models.Tenant, error)

	// Disconnect removes the persisted credential for (ownerID, tenantID).
	Disconnect(ctx context.Context, ownerID, tenantID string) (bool, error)
}

// GatewayService is the single outbound path to the Xero accounting API. It
// resolves the caller's credential, attaches bearer and tenant headers, and
// on a 401 performs exactly one refresh-and-retry cycle.
type GatewayService interface {
	Call(ctx context.Context, ownerID string, privileged bool, method, path string, query url.Values, body []byte) ([]byte, error)
}
