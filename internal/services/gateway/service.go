// Package gateway is the single outbound path to the Xero accounting API.
// Every proxied call goes through Call, which resolves the caller's
// credential, attaches bearer and tenant headers, and on a 401 performs
// exactly one refresh-and-retry cycle.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bobmcallan/ledgerlink/internal/common"
	"github.com/bobmcallan/ledgerlink/internal/interfaces"
	"github.com/bobmcallan/ledgerlink/internal/models"
)

// ErrNoConnection indicates no credential record exists for the requested
// scope. This is the normal "not yet connected" state, not a fault; the
// caller must run the authorization flow.
var ErrNoConnection = errors.New("no Xero connection configured")

// ReauthorizationRequiredError indicates the refresh exchange itself was
// rejected — the stored refresh token is expired, revoked, or already used.
// The stale record is left in place for diagnostics; the owner must
// reauthorize.
type ReauthorizationRequiredError struct {
	Err error
}

func (e *ReauthorizationRequiredError) Error() string {
	return fmt.Sprintf("Xero reauthorization required: %v", e.Err)
}

func (e *ReauthorizationRequiredError) Unwrap() error {
	return e.Err
}

// UpstreamError is any non-401 failure proxied from Xero, carrying the
// provider's status and body for caller-side diagnostics. It never triggers
// a refresh. A zero StatusCode means the request did not complete (transport
// failure or timeout).
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("Xero request failed: %s", e.Body)
	}
	return fmt.Sprintf("Xero API error (status: %d): %s", e.StatusCode, e.Body)
}

// Service implements interfaces.GatewayService.
type Service struct {
	store       interfaces.CredentialStore
	connections interfaces.ConnectionService
	client      interfaces.XeroClient
	logger      *common.Logger
}

// NewService creates a new gateway service.
func NewService(store interfaces.CredentialStore, connections interfaces.ConnectionService, client interfaces.XeroClient, logger *common.Logger) *Service {
	return &Service{
		store:       store,
		connections: connections,
		client:      client,
		logger:      logger,
	}
}

// resolve picks the credential backing this call: privileged callers use
// their own most-recent record, everyone else shares the system-wide one.
func (s *Service) resolve(ctx context.Context, ownerID string, privileged bool) (*models.Credential, error) {
	var cred *models.Credential
	var err error

	if privileged {
		cred, err = s.store.Find(ctx, ownerID, "")
	} else {
		cred, err = s.store.FindSystemWide(ctx)
	}
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrNoConnection
	}
	return cred, nil
}

// Call executes one proxied request. A 401 is the sole refresh trigger:
// refresh once, persist the new bundle against the record's original owner,
// retry once. Any subsequent failure surfaces unmodified.
func (s *Service) Call(ctx context.Context, ownerID string, privileged bool, method, path string, query url.Values, body []byte) ([]byte, error) {
	cred, err := s.resolve(ctx, ownerID, privileged)
	if err != nil {
		return nil, err
	}

	req := interfaces.ResourceRequest{Method: method, Path: path, Query: query, Body: body}

	resp, err := s.client.Do(ctx, cred.Bundle.AccessToken, cred.TenantID, req)
	if err != nil {
		// Transport failure or timeout: a non-401 failure, no refresh.
		return nil, &UpstreamError{Body: err.Error()}
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return s.finish(resp)
	}

	s.logger.Info().
		Str("owner_id", cred.OwnerID).
		Str("tenant_id", cred.TenantID).
		Str("path", path).
		Msg("Access token rejected, refreshing")

	bundle, err := s.connections.Refresh(ctx, cred.Bundle.RefreshToken)
	if err != nil {
		return nil, &ReauthorizationRequiredError{Err: err}
	}

	// Persist against the record's original owner and scope, not the
	// caller's — unprivileged callers ride on the shared connection.
	if _, err := s.store.Upsert(ctx, cred.OwnerID, cred.TenantID, cred.TenantName, bundle, cred.SystemWide); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	retry, err := s.client.Do(ctx, bundle.AccessToken, cred.TenantID, req)
	if err != nil {
		return nil, &UpstreamError{Body: err.Error()}
	}
	return s.finish(retry)
}

// finish maps a completed provider response to a result or UpstreamError.
func (s *Service) finish(resp *interfaces.ResourceResponse) ([]byte, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp.Body, nil
}

// Compile-time check
var _ interfaces.GatewayService = (*Service)(nil)
