package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/ledgerlink/internal/common"
	"github.com/bobmcallan/ledgerlink/internal/interfaces"
	"github.com/bobmcallan/ledgerlink/internal/models"
	"github.com/bobmcallan/ledgerlink/internal/secrets"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// credentialRow is the DB-level representation of a sealed Xero credential.
// Token material only ever appears here as ciphertext.
type credentialRow struct {
	OwnerID    string    `json:"owner_id"`
	TenantID   string    `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
	Ciphertext string    `json:"ciphertext"`
	IV         string    `json:"iv"`
	Tag        string    `json:"tag"`
	SystemWide bool      `json:"system_wide"`
	LastSynced time.Time `json:"last_synced"`
	CreatedAt  time.Time `json:"created_at"`
}

// CredentialStore implements interfaces.CredentialStore using SurrealDB.
// It seals bundles on write and opens them on read; decrypted bundles are
// never cached.
type CredentialStore struct {
	db     *surrealdb.DB
	logger *common.Logger
	key    []byte
}

// NewCredentialStore creates a new CredentialStore with the given encryption key.
func NewCredentialStore(db *surrealdb.DB, logger *common.Logger, key []byte) *CredentialStore {
	return &CredentialStore{db: db, logger: logger, key: key}
}

func credentialRecordID(ownerID, tenantID string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("credential", ownerID+"_"+tenantID)
}

func (s *CredentialStore) Upsert(ctx context.Context, ownerID, tenantID, tenantName string, bundle *models.TokenBundle, systemWide bool) (*models.CredentialSummary, error) {
	sealed, err := secrets.Seal(bundle, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credential: %w", err)
	}

	now := time.Now().UTC()
	createdAt := now
	if existing, err := s.selectRow(ctx, ownerID, tenantID); err == nil && existing != nil {
		createdAt = existing.CreatedAt
	}

	sql := `UPSERT $rid SET
		owner_id = $owner_id, tenant_id = $tenant_id, tenant_name = $tenant_name,
		ciphertext = $ciphertext, iv = $iv, tag = $tag,
		system_wide = $system_wide, last_synced = $last_synced, created_at = $created_at`
	vars := map[string]any{
		"rid":         credentialRecordID(ownerID, tenantID),
		"owner_id":    ownerID,
		"tenant_id":   tenantID,
		"tenant_name": tenantName,
		"ciphertext":  sealed.Ciphertext,
		"iv":          sealed.IV,
		"tag":         sealed.Tag,
		"system_wide": systemWide,
		"last_synced": now,
		"created_at":  createdAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to upsert credential: %w", err)
	}

	s.logger.Debug().
		Str("owner_id", ownerID).
		Str("tenant_id", tenantID).
		Bool("system_wide", systemWide).
		Msg("Credential stored")

	return &models.CredentialSummary{
		OwnerID:    ownerID,
		TenantID:   tenantID,
		TenantName: tenantName,
		SystemWide: systemWide,
		LastSynced: now,
	}, nil
}

func (s *CredentialStore) selectRow(ctx context.Context, ownerID, tenantID string) (*credentialRow, error) {
	sql := "SELECT * FROM $rid"
	vars := map[string]any{"rid": credentialRecordID(ownerID, tenantID)}

	results, err := surrealdb.Query[[]credentialRow](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// open decrypts a row into a Credential with the bundle populated.
func (s *CredentialStore) open(row *credentialRow) (*models.Credential, error) {
	sealed := models.SealedBundle{Ciphertext: row.Ciphertext, IV: row.IV, Tag: row.Tag}
	bundle, err := secrets.Open(&sealed, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential for owner %s: %w", row.OwnerID, err)
	}
	return &models.Credential{
		OwnerID:    row.OwnerID,
		TenantID:   row.TenantID,
		TenantName: row.TenantName,
		Sealed:     sealed,
		SystemWide: row.SystemWide,
		LastSynced: row.LastSynced,
		CreatedAt:  row.CreatedAt,
		Bundle:     bundle,
	}, nil
}

func (s *CredentialStore) Find(ctx context.Context, ownerID, tenantID string) (*models.Credential, error) {
	var row *credentialRow
	var err error

	if tenantID != "" {
		row, err = s.selectRow(ctx, ownerID, tenantID)
		if err != nil {
			return nil, err
		}
	} else {
		sql := "SELECT * FROM credential WHERE owner_id = $owner_id ORDER BY last_synced DESC LIMIT 1"
		vars := map[string]any{"owner_id": ownerID}
		results, qerr := surrealdb.Query[[]credentialRow](ctx, s.db, sql, vars)
		if qerr != nil {
			return nil, fmt.Errorf("failed to query credentials: %w", qerr)
		}
		if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
			row = &(*results)[0].Result[0]
		}
	}

	if row == nil {
		return nil, nil
	}
	return s.open(row)
}

func (s *CredentialStore) FindSystemWide(ctx context.Context) (*models.Credential, error) {
	sql := "SELECT * FROM credential WHERE system_wide = true ORDER BY last_synced DESC LIMIT 1"

	results, err := surrealdb.Query[[]credentialRow](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query system-wide credential: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return s.open(&(*results)[0].Result[0])
}

func (s *CredentialStore) Remove(ctx context.Context, ownerID, tenantID string) (bool, error) {
	existing, err := s.selectRow(ctx, ownerID, tenantID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	if _, err := surrealdb.Delete[credentialRow](ctx, s.db, credentialRecordID(ownerID, tenantID)); err != nil && !isNotFoundError(err) {
		return false, fmt.Errorf("failed to delete credential: %w", err)
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("tenant_id", tenantID).
		Msg("Credential removed")
	return true, nil
}

func (s *CredentialStore) ListSummaries(ctx context.Context, ownerID string) ([]models.CredentialSummary, error) {
	sql := "SELECT * FROM credential WHERE owner_id = $owner_id ORDER BY last_synced DESC"
	vars := map[string]any{"owner_id": ownerID}

	results, err := surrealdb.Query[[]credentialRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	var summaries []models.CredentialSummary
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			summaries = append(summaries, models.CredentialSummary{
				OwnerID:    row.OwnerID,
				TenantID:   row.TenantID,
				TenantName: row.TenantName,
				SystemWide: row.SystemWide,
				LastSynced: row.LastSynced,
			})
		}
	}
	return summaries, nil
}

// Compile-time check
var _ interfaces.CredentialStore = (*CredentialStore)(nil)
