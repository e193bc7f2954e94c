package models

import "time"

// User roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Capabilities is the fixed set of named permissions attached to a user.
// Kept as explicit booleans so the permission surface stays statically
// checkable — no open-ended permission maps.
type Capabilities struct {
	ManageUsers       bool `json:"manage_users"`
	ManageConnections bool `json:"manage_connections"`
	EditCatalog       bool `json:"edit_catalog"`
}

// User represents a user account stored in the internal database.
type User struct {
	UserID       string       `json:"user_id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	PasswordHash string       `json:"password_hash"`
	Role         string       `json:"role"`
	Capabilities Capabilities `json:"capabilities"`
	CreatedAt    time.Time    `json:"created_at"`
	ModifiedAt   time.Time    `json:"modified_at"`
}

// IsPrivileged reports whether the user operates on their own Xero
// connection rather than the shared system-wide one.
func (u *User) IsPrivileged() bool {
	return u.Role == RoleAdmin
}

// DefaultCapabilities returns the capability set granted to a role on creation.
func DefaultCapabilities(role string) Capabilities {
	if role == RoleAdmin {
		return Capabilities{ManageUsers: true, ManageConnections: true, EditCatalog: true}
	}
	return Capabilities{EditCatalog: true}
}
