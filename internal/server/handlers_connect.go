package server

import (
	"errors"
	"net/http"

	"github.com/bobmcallan/ledgerlink/internal/common"
	"github.com/bobmcallan/ledgerlink/internal/models"
	"github.com/bobmcallan/ledgerlink/internal/services/connection"
)

// requireConnectionManager returns the user context when the caller may
// manage Xero connections, or writes 401/403.
func (s *Server) requireConnectionManager(w http.ResponseWriter, r *http.Request) *common.UserContext {
	uc := s.requireAuth(w, r)
	if uc == nil {
		return nil
	}

	user, err := s.app.Storage.UserStore().GetUser(r.Context(), uc.UserID)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "user not found")
		return nil
	}
	if !user.Capabilities.ManageConnections {
		WriteError(w, http.StatusForbidden, "connection management not permitted")
		return nil
	}
	return uc
}

// handleXeroConnect handles GET /api/xero/connect — start the authorization
// flow. The caller's identity rides in the state parameter and is verified
// on callback.
func (s *Server) handleXeroConnect(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc := s.requireConnectionManager(w, r)
	if uc == nil {
		return
	}

	if s.app.Config.Xero.ClientID == "" || s.app.Config.Xero.ClientSecret == "" {
		WriteError(w, http.StatusInternalServerError, "Xero OAuth not configured")
		return
	}

	authorizeURL := s.app.ConnectionService.AuthorizeURL(uc.UserID)

	s.logger.Info().
		Str("owner_id", uc.UserID).
		Msg("Starting Xero authorization flow")

	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// handleXeroCallback handles GET /api/xero/callback — complete the
// authorization flow. The state parameter must match the authenticated
// caller's identity; a mismatch is rejected before any token exchange.
func (s *Server) handleXeroCallback(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc := s.requireConnectionManager(w, r)
	if uc == nil {
		return
	}

	q := r.URL.Query()
	if provErr := q.Get("error"); provErr != "" {
		desc := q.Get("error_description")
		s.logger.Info().
			Str("owner_id", uc.UserID).
			Str("error", provErr).
			Msg("Xero authorization denied")
		WriteErrorWithCode(w, http.StatusBadRequest, "authorization denied: "+desc, provErr)
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" {
		WriteError(w, http.StatusBadRequest, "code is required")
		return
	}
	if state != uc.UserID {
		s.logger.Warn().
			Str("owner_id", uc.UserID).
			Str("state", state).
			Msg("Xero callback state mismatch")
		WriteError(w, http.StatusForbidden, "state does not match the initiating session")
		return
	}

	bundle, tenant, err := s.app.ConnectionService.CompleteExchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, connection.ErrNoTenantFound) {
			WriteError(w, http.StatusUnprocessableEntity, "no Xero organisation was authorized; grant access to an organisation and try again")
			return
		}
		s.logger.Error().Err(err).Str("owner_id", uc.UserID).Msg("Xero grant exchange failed")
		WriteError(w, http.StatusBadGateway, "failed to exchange authorization code: "+err.Error())
		return
	}

	// An admin's connection serves the whole installation.
	systemWide := uc.Privileged

	summary, err := s.app.Storage.CredentialStore().Upsert(r.Context(), uc.UserID, tenant.TenantID, tenant.TenantName, bundle, systemWide)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to store connection: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"connection": summary,
	})
}

// handleXeroStatus handles GET /api/xero/status — whether a usable
// connection exists for the caller. Members only care about the shared
// connection; admins about their own.
func (s *Server) handleXeroStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc := s.requireAuth(w, r)
	if uc == nil {
		return
	}

	store := s.app.Storage.CredentialStore()
	var cred *models.Credential
	var err error
	if uc.Privileged {
		cred, err = store.Find(r.Context(), uc.UserID, "")
	} else {
		cred, err = store.FindSystemWide(r.Context())
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to resolve connection: "+err.Error())
		return
	}

	if cred == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"connected": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"connected":  true,
		"connection": cred.Summary(),
	})
}

// handleConnectionList handles GET /api/xero/connections.
func (s *Server) handleConnectionList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc := s.requireConnectionManager(w, r)
	if uc == nil {
		return
	}

	summaries, err := s.app.Storage.CredentialStore().ListSummaries(r.Context(), uc.UserID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list connections: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"connections": summaries})
}

// handleConnectionDelete handles DELETE /api/xero/connections/{tenantID}.
func (s *Server) handleConnectionDelete(w http.ResponseWriter, r *http.Request, tenantID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	uc := s.requireConnectionManager(w, r)
	if uc == nil {
		return
	}

	removed, err := s.app.ConnectionService.Disconnect(r.Context(), uc.UserID, tenantID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to disconnect: "+err.Error())
		return
	}
	if !removed {
		WriteError(w, http.StatusNotFound, "no connection for this organisation")
		return
	}

	s.logger.Info().
		Str("owner_id", uc.UserID).
		Str("tenant_id", tenantID).
		Msg("Xero connection removed")

	WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
