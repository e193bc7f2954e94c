// Package interfaces defines service contracts for LedgerLink
package interfaces

import (
	"context"

	"github.com/bobmcallan/ledgerlink/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	UserStore() UserStore
	CredentialStore() CredentialStore

	// Lifecycle
	Close() error
}

// UserStore manages user accounts.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// CredentialStore owns persisted Xero credentials. Token bundles are sealed
// before write and opened on read; callers never see ciphertext and the store
// never caches decrypted bundles.
type CredentialStore interface {
	// Upsert seals the bundle and writes it keyed on (ownerID, tenantID) —
	// update wins, insert if absent. Always rewrites last_synced. Returns the
	// non-secret summary.
	Upsert(ctx context.Context, ownerID, tenantID, tenantName string, bundle *models.TokenBundle, systemWide bool) (*models.CredentialSummary, error)

	// Find returns the credential for (ownerID, tenantID), decrypted. An
	// empty tenantID selects the most-recently-synced credential for the
	// owner. Returns (nil, nil) when none exists.
	Find(ctx context.Context, ownerID, tenantID string) (*models.Credential, error)

	// FindSystemWide returns the most-recently-synced system-wide credential,
	// ignoring owner. Returns (nil, nil) when none exists.
	FindSystemWide(ctx context.Context) (*models.Credential, error)

	// Remove hard-deletes the credential and reports whether a row existed.
	Remove(ctx context.Context, ownerID, tenantID string) (bool, error)

	// ListSummaries returns non-secret metadata for the owner's connections.
	ListSummaries(ctx context.Context, ownerID string) ([]models.CredentialSummary, error)
}
