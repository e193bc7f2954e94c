package server

import (
	"net/http"
	"strings"
	"time"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Auth
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/api/auth/validate", s.handleAuthValidate)

	// Users
	mux.HandleFunc("/api/users/", s.routeUsers)
	mux.HandleFunc("/api/users", s.routeUsers)

	// Xero connection lifecycle
	mux.HandleFunc("/api/xero/connect", s.handleXeroConnect)
	mux.HandleFunc("/api/xero/callback", s.handleXeroCallback)
	mux.HandleFunc("/api/xero/status", s.handleXeroStatus)
	mux.HandleFunc("/api/xero/connections/", s.routeConnections)
	mux.HandleFunc("/api/xero/connections", s.handleConnectionList)

	// Catalog (proxied to Xero)
	mux.HandleFunc("/api/catalog/items/", s.routeItems)
	mux.HandleFunc("/api/catalog/items", s.handleItems)
}

// routeUsers dispatches /api/users and /api/users/{id}.
func (s *Server) routeUsers(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/users")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			s.handleUserList(w, r)
		case http.MethodPost:
			s.handleUserCreate(w, r)
		default:
			RequireMethod(w, r, http.MethodGet, http.MethodPost)
		}
		return
	}

	s.handleUserByID(w, r, path)
}

// routeConnections dispatches /api/xero/connections/{tenantID}.
func (s *Server) routeConnections(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimPrefix(r.URL.Path, "/api/xero/connections/")
	if tenantID == "" {
		s.handleConnectionList(w, r)
		return
	}
	s.handleConnectionDelete(w, r, tenantID)
}

// routeItems dispatches /api/catalog/items/{id}.
func (s *Server) routeItems(w http.ResponseWriter, r *http.Request) {
	itemID := strings.TrimPrefix(r.URL.Path, "/api/catalog/items/")
	if itemID == "" {
		s.handleItems(w, r)
		return
	}
	s.handleItemByID(w, r, itemID)
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
