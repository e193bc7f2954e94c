package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bobmcallan/ledgerlink/internal/models"
	"github.com/bobmcallan/ledgerlink/internal/services/gateway"
)

func TestHandleItems_List(t *testing.T) {
	srv, store := newTestServer(t)
	admin := seedUser(t, store, "alice", "alice@example.com", "secretpass", models.RoleAdmin)
	gw := &stubGatewayService{body: []byte(`{"Items":[{"Code":"WIDGET"}]}`)}
	srv.app.GatewayService = gw

	req := authedRequest(http.MethodGet, "/api/catalog/items?where=Code%3D%3D%22WIDGET%22", nil, admin)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"Items":[{"Code":"WIDGET"}]}` {
		t.Errorf("proxied body altered: %s", rec.Body.String())
	}
	if gw.lastMethod != http.MethodGet || gw.lastPath != "Items" {
		t.Errorf("unexpected upstream call: %s %s", gw.lastMethod, gw.lastPath)
	}
	if gw.lastQuery.Get("where") != `Code=="WIDGET"` {
		t.Errorf("where clause not forwarded: %v", gw.lastQuery)
	}
}

func TestHandleItems_ListRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/items", nil)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestHandleItems_Create(t *testing.T) {
	srv, store := newTestServer(t)
	admin := seedUser(t, store, "alice", "alice@example.com", "secretpass", models.RoleAdmin)
	gw := &stubGatewayService{body: []byte(`{"Items":[{"ItemID":"i-1","Code":"WIDGET"}]}`)}
	srv.app.GatewayService = gw

	payload := jsonBody(t, map[string]string{"Code": "WIDGET", "Name": "Widget"})
	req := authedRequest(http.MethodPost, "/api/catalog/items", payload, admin)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gw.lastMethod != http.MethodPost || gw.lastPath != "Items" {
		t.Errorf("unexpected upstream call: %s %s", gw.lastMethod, gw.lastPath)
	}
	var sent map[string]string
	if err := json.Unmarshal(gw.lastBody, &sent); err != nil || sent["Code"] != "WIDGET" {
		t.Errorf("request body not forwarded: %s", gw.lastBody)
	}
}

func TestHandleItems_CreateWithoutCode(t *testing.T) {
	srv, store := newTestServer(t)
	admin := seedUser(t, store, "alice", "alice@example.com", "secretpass", models.RoleAdmin)
	gw := &stubGatewayService{}
	srv.app.GatewayService = gw

	payload := jsonBody(t, map[string]string{"Name": "Widget"})
	req := authedRequest(http.MethodPost, "/api/catalog/items", payload, admin)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a Code, got %d", rec.Code)
	}
	if gw.calls != 0 {
		t.Error("upstream called for invalid item")
	}
}

func TestHandleItemByID_Delete(t *testing.T) {
	srv, store := newTestServer(t)
	admin := seedUser(t, store, "alice", "alice@example.com", "secretpass", models.RoleAdmin)
	gw := &stubGatewayService{body: []byte(`{}`)}
	srv.app.GatewayService = gw

	req := authedRequest(http.MethodDelete, "/api/catalog/items/i-1", nil, admin)
	rec := httptest.NewRecorder()
	srv.handleItemByID(rec, req, "i-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gw.lastPath != "Items/i-1" {
		t.Errorf("unexpected upstream path: %s", gw.lastPath)
	}
}

func TestHandleItems_NotConnected(t *testing.T) {
	srv, store := newTestServer(t)
	admin := seedUser(t, store, "alice", "alice@example.com", "secretpass", models.RoleAdmin)
	srv.app.GatewayService = &stubGatewayService{err: gateway.ErrNoConnection}

	req := authedRequest(http.MethodGet, "/api/catalog/items", nil, admin)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "xero_not_connected" {
		t.Errorf("expected code xero_not_connected, got %q", resp.Code)
	}
}

func TestHandleItems_ReauthorizationRequired(t *testing.T) {
	srv, store := newTestServer(t)
	admin := seedUser(t, store, "alice", "alice@example.com", "secretpass", models.RoleAdmin)
	srv.app.GatewayService = &stubGatewayService{
		err: &gateway.ReauthorizationRequiredError{Err: errors.New("invalid_grant")},
	}

	req := authedRequest(http.MethodGet, "/api/catalog/items", nil, admin)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "xero_reauthorization_required" {
		t.Errorf("expected code xero_reauthorization_required, got %q", resp.Code)
	}
}

func TestHandleItems_UpstreamStatusPropagated(t *testing.T) {
	srv, store := newTestServer(t)
	admin := seedUser(t, store, "alice", "alice@example.com", "secretpass", models.RoleAdmin)
	srv.app.GatewayService = &stubGatewayService{
		err: &gateway.UpstreamError{StatusCode: http.StatusTooManyRequests, Body: "rate limit exceeded"},
	}

	req := authedRequest(http.MethodGet, "/api/catalog/items", nil, admin)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 propagated, got %d", rec.Code)
	}
}

func TestHandleItems_TransportFailureIsBadGateway(t *testing.T) {
	srv, store := newTestServer(t)
	admin := seedUser(t, store, "alice", "alice@example.com", "secretpass", models.RoleAdmin)
	srv.app.GatewayService = &stubGatewayService{
		err: &gateway.UpstreamError{Body: "connection refused"},
	}

	req := authedRequest(http.MethodGet, "/api/catalog/items", nil, admin)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for transport failure, got %d", rec.Code)
	}
}

func TestHandleItems_CreateRequiresCapability(t *testing.T) {
	srv, store := newTestServer(t)
	member := seedUser(t, store, "bob", "bob@example.com", "bobpass", models.RoleMember)
	member.Capabilities.EditCatalog = false
	gw := &stubGatewayService{}
	srv.app.GatewayService = gw

	payload := jsonBody(t, map[string]string{"Code": "WIDGET"})
	req := authedRequest(http.MethodPost, "/api/catalog/items", payload, member)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if gw.calls != 0 {
		t.Error("upstream called despite missing capability")
	}
}
