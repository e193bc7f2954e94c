package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/bobmcallan/ledgerlink/internal/common"
	"github.com/bobmcallan/ledgerlink/internal/models"
	"github.com/bobmcallan/ledgerlink/internal/services/gateway"
)

// writeGatewayError maps gateway failures to API responses.
func (s *Server) writeGatewayError(w http.ResponseWriter, err error) {
	if errors.Is(err, gateway.ErrNoConnection) {
		WriteErrorWithCode(w, http.StatusConflict,
			"no Xero connection configured; an administrator must connect via /api/xero/connect",
			"xero_not_connected")
		return
	}

	var reauth *gateway.ReauthorizationRequiredError
	if errors.As(err, &reauth) {
		WriteErrorWithCode(w, http.StatusConflict,
			"the Xero connection has expired; an administrator must reauthorize via /api/xero/connect",
			"xero_reauthorization_required")
		return
	}

	var upstream *gateway.UpstreamError
	if errors.As(err, &upstream) {
		status := upstream.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		WriteErrorWithCode(w, status, upstream.Body, "xero_upstream_error")
		return
	}

	WriteError(w, http.StatusInternalServerError, err.Error())
}

// writeProxied writes a raw Xero response body through unchanged.
func writeProxied(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// requireCatalogEditor returns the user context when the caller may modify
// the catalog, or writes 401/403.
func (s *Server) requireCatalogEditor(w http.ResponseWriter, r *http.Request) *common.UserContext {
	uc := s.requireAuth(w, r)
	if uc == nil {
		return nil
	}

	user, err := s.app.Storage.UserStore().GetUser(r.Context(), uc.UserID)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "user not found")
		return nil
	}
	if !user.Capabilities.EditCatalog {
		WriteError(w, http.StatusForbidden, "catalog editing not permitted")
		return nil
	}
	return uc
}

// readBody drains the request body for proxying. Returns nil on failure
// after writing a 400.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		return nil, true
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

// handleItems handles GET/POST /api/catalog/items — the Xero Items
// collection, proxied through the gateway.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		uc := s.requireAuth(w, r)
		if uc == nil {
			return
		}
		query := url.Values{}
		if where := r.URL.Query().Get("where"); where != "" {
			query.Set("where", where)
		}
		if order := r.URL.Query().Get("order"); order != "" {
			query.Set("order", order)
		}
		body, err := s.app.GatewayService.Call(r.Context(), uc.UserID, uc.Privileged, http.MethodGet, "Items", query, nil)
		if err != nil {
			s.writeGatewayError(w, err)
			return
		}
		writeProxied(w, body)

	case http.MethodPost:
		uc := s.requireCatalogEditor(w, r)
		if uc == nil {
			return
		}
		var item models.Item
		if !DecodeJSON(w, r, &item) {
			return
		}
		// Xero rejects items without a code; catch it before the round trip.
		if item.Code == "" {
			WriteError(w, http.StatusBadRequest, "Code is required")
			return
		}
		reqBody, err := json.Marshal(item)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to encode item")
			return
		}
		body, err := s.app.GatewayService.Call(r.Context(), uc.UserID, uc.Privileged, http.MethodPost, "Items", nil, reqBody)
		if err != nil {
			s.writeGatewayError(w, err)
			return
		}
		writeProxied(w, body)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleItemByID handles GET/POST/DELETE /api/catalog/items/{id}.
func (s *Server) handleItemByID(w http.ResponseWriter, r *http.Request, itemID string) {
	switch r.Method {
	case http.MethodGet:
		uc := s.requireAuth(w, r)
		if uc == nil {
			return
		}
		body, err := s.app.GatewayService.Call(r.Context(), uc.UserID, uc.Privileged, http.MethodGet, "Items/"+itemID, nil, nil)
		if err != nil {
			s.writeGatewayError(w, err)
			return
		}
		writeProxied(w, body)

	case http.MethodPost, http.MethodPut:
		uc := s.requireCatalogEditor(w, r)
		if uc == nil {
			return
		}
		reqBody, ok := readBody(w, r)
		if !ok {
			return
		}
		body, err := s.app.GatewayService.Call(r.Context(), uc.UserID, uc.Privileged, http.MethodPost, "Items/"+itemID, nil, reqBody)
		if err != nil {
			s.writeGatewayError(w, err)
			return
		}
		writeProxied(w, body)

	case http.MethodDelete:
		uc := s.requireCatalogEditor(w, r)
		if uc == nil {
			return
		}
		body, err := s.app.GatewayService.Call(r.Context(), uc.UserID, uc.Privileged, http.MethodDelete, "Items/"+itemID, nil, nil)
		if err != nil {
			s.writeGatewayError(w, err)
			return
		}
		writeProxied(w, body)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}
