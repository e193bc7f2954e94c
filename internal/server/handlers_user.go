package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bobmcallan/ledgerlink/internal/models"
)

// bcrypt truncates input at 72 bytes; reject longer passwords rather than
// silently hashing a prefix.
const maxPasswordBytes = 72

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func validRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleMember
}

// handleUserList handles GET /api/users — admin only.
func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}

	users, err := s.app.Storage.UserStore().ListUsers(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list users: "+err.Error())
		return
	}

	out := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"users": out})
}

// handleUserCreate handles POST /api/users — admin only.
func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	if s.requireAdmin(w, r) == nil {
		return
	}

	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if len(req.Password) > maxPasswordBytes {
		WriteError(w, http.StatusBadRequest, "password exceeds 72 bytes")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if !validRole(req.Role) {
		WriteError(w, http.StatusBadRequest, "role must be admin or member")
		return
	}

	ctx := r.Context()
	store := s.app.Storage.UserStore()

	if existing, err := store.GetUserByEmail(ctx, req.Email); err == nil && existing != nil {
		WriteError(w, http.StatusConflict, "a user with this email already exists")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		UserID:       uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		Capabilities: models.DefaultCapabilities(req.Role),
		CreatedAt:    now,
		ModifiedAt:   now,
	}

	if err := store.SaveUser(ctx, user); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to create user: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, userResponse(user))
}

// handleUserByID dispatches GET/PUT/DELETE /api/users/{id}.
func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		s.handleUserGet(w, r, userID)
	case http.MethodPut:
		s.handleUserUpdate(w, r, userID)
	case http.MethodDelete:
		s.handleUserDelete(w, r, userID)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request, userID string) {
	uc := s.requireAuth(w, r)
	if uc == nil {
		return
	}
	// Members may read their own profile; everything else is admin territory.
	if uc.UserID != userID && uc.Role != models.RoleAdmin {
		WriteError(w, http.StatusForbidden, "admin role required")
		return
	}

	user, err := s.app.Storage.UserStore().GetUser(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	WriteJSON(w, http.StatusOK, userResponse(user))
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	if s.requireAdmin(w, r) == nil {
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Password *string `json:"password"`
		Role     *string `json:"role"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	store := s.app.Storage.UserStore()

	user, err := store.GetUser(ctx, userID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Password != nil {
		if len(*req.Password) > maxPasswordBytes {
			WriteError(w, http.StatusBadRequest, "password exceeds 72 bytes")
			return
		}
		hash, err := hashPassword(*req.Password)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		user.PasswordHash = hash
	}
	if req.Role != nil {
		if !validRole(*req.Role) {
			WriteError(w, http.StatusBadRequest, "role must be admin or member")
			return
		}
		user.Role = *req.Role
		user.Capabilities = models.DefaultCapabilities(*req.Role)
	}
	user.ModifiedAt = time.Now().UTC()

	if err := store.SaveUser(ctx, user); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to update user: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, userResponse(user))
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request, userID string) {
	uc := s.requireAdmin(w, r)
	if uc == nil {
		return
	}
	if uc.UserID == userID {
		WriteError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := s.app.Storage.UserStore().DeleteUser(r.Context(), userID); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to delete user: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
