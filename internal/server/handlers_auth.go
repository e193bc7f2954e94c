package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bobmcallan/ledgerlink/internal/common"
	"github.com/bobmcallan/ledgerlink/internal/models"
)

// --- JWT helpers ---

// signJWT creates a signed HMAC-SHA256 JWT for the given user.
func signJWT(user *models.User, config *common.AuthConfig) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.UserID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
		"iss":   "ledgerlink-server",
		"iat":   now.Unix(),
		"exp":   now.Add(config.GetTokenExpiry()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

// validateJWT parses and validates a JWT token string using the given secret.
func validateJWT(tokenString string, secret []byte) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return token, claims, nil
}

// --- Authorization guards ---

// requireAuth returns the authenticated user context or writes 401.
func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) *common.UserContext {
	uc := common.UserContextFromContext(r.Context())
	if uc == nil || uc.UserID == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		WriteError(w, http.StatusUnauthorized, "authentication required")
		return nil
	}
	return uc
}

// requireAdmin returns the authenticated admin user context or writes 401/403.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) *common.UserContext {
	uc := s.requireAuth(w, r)
	if uc == nil {
		return nil
	}
	if uc.Role != models.RoleAdmin {
		WriteError(w, http.StatusForbidden, "admin role required")
		return nil
	}
	return uc
}

// --- Auth handlers ---

// userResponse is the non-secret view of a user returned by the API.
func userResponse(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"user_id":      user.UserID,
		"email":        user.Email,
		"name":         user.Name,
		"role":         user.Role,
		"capabilities": user.Capabilities,
		"created_at":   user.CreatedAt,
	}
}

// handleAuthLogin handles POST /api/auth/login — exchange credentials for a JWT.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.app.Storage.UserStore().GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Same response as a wrong password so login probing can't
		// distinguish unknown accounts.
		WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := signJWT(user, &s.app.Config.Auth)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign JWT")
		WriteError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"token": token,
			"user":  userResponse(user),
		},
	})
}

// handleAuthValidate handles GET /api/auth/validate — echo the identity the
// bearer token resolves to.
func (s *Server) handleAuthValidate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc := s.requireAuth(w, r)
	if uc == nil {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"user_id":    uc.UserID,
			"email":      uc.Email,
			"role":       uc.Role,
			"privileged": uc.Privileged,
		},
	})
}
