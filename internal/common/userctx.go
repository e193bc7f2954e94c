package common

import (
	"context"
)

// UserContext holds the authenticated caller's identity, resolved from the
// session JWT by the bearer middleware. The core components only ever see the
// opaque owner id and the privileged flag; credentials and passwords never
// cross this boundary.
type UserContext struct {
	UserID     string
	Email      string
	Role       string
	Privileged bool
}

type contextKey int

const userContextKey contextKey = iota

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUserID returns the UserID from context, or "" when unauthenticated.
func ResolveUserID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil {
		return uc.UserID
	}
	return ""
}
