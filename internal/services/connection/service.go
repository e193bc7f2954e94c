// Package connection manages the Xero token lifecycle: grant exchange,
// tenant resolution, refresh, and disconnect.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bobmcallan/ledgerlink/internal/common"
	"github.com/bobmcallan/ledgerlink/internal/interfaces"
	"github.com/bobmcallan/ledgerlink/internal/models"
)

// ErrNoTenantFound indicates a successful grant that authorizes no
// organisation. The user must grant access to at least one organisation and
// run the authorization flow again.
var ErrNoTenantFound = errors.New("no Xero organisation authorized for this connection")

// Service implements interfaces.ConnectionService. It holds decrypted
// bundles only transiently within one call; persistence belongs to the
// credential store.
type Service struct {
	client interfaces.XeroClient
	store  interfaces.CredentialStore
	logger *common.Logger

	redirectURI string
}

// NewService creates a new connection service.
func NewService(client interfaces.XeroClient, store interfaces.CredentialStore, redirectURI string, logger *common.Logger) *Service {
	return &Service{
		client:      client,
		store:       store,
		logger:      logger,
		redirectURI: redirectURI,
	}
}

// AuthorizeURL builds the authorization redirect for an owner. The owner's
// identity rides in the state parameter and is checked against the session
// on callback.
func (s *Service) AuthorizeURL(ownerID string) string {
	return s.client.AuthorizeURL(ownerID)
}

// CompleteExchange exchanges an authorization code for a token bundle and
// resolves the organisation it targets. The result is handed back to the
// caller for persistence.
func (s *Service) CompleteExchange(ctx context.Context, code string) (*models.TokenBundle, *models.Tenant, error) {
	bundle, err := s.client.ExchangeCode(ctx, code, s.redirectURI)
	if err != nil {
		return nil, nil, fmt.Errorf("grant exchange failed: %w", err)
	}

	tenant, err := s.ResolveTenant(ctx, bundle.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("tenant_id", tenant.TenantID).
		Str("tenant_name", tenant.TenantName).
		Msg("Xero grant exchange completed")

	return bundle, tenant, nil
}

// Refresh exchanges a refresh token for a new bundle. On success the old
// refresh token is consumed — Xero rotates it and rejects reuse.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenBundle, error) {
	bundle, err := s.client.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return bundle, nil
}

// ResolveTenant lists the organisations reachable with the access token and
// selects the most recently connected one (connection timestamp descending).
func (s *Service) ResolveTenant(ctx context.Context, accessToken string) (*models.Tenant, error) {
	tenants, err := s.client.Connections(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	if len(tenants) == 0 {
		return nil, ErrNoTenantFound
	}

	sort.SliceStable(tenants, func(i, j int) bool {
		return tenants[i].CreatedAt.After(tenants[j].CreatedAt)
	})
	return &tenants[0], nil
}

// Disconnect removes the persisted credential for (ownerID, tenantID).
func (s *Service) Disconnect(ctx context.Context, ownerID, tenantID string) (bool, error) {
	removed, err := s.store.Remove(ctx, ownerID, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to disconnect: %w", err)
	}
	return removed, nil
}

// Compile-time check
var _ interfaces.ConnectionService = (*Service)(nil)
