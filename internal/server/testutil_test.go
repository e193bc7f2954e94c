package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bobmcallan/ledgerlink/internal/app"
	"github.com/bobmcallan/ledgerlink/internal/common"
	"github.com/bobmcallan/ledgerlink/internal/interfaces"
	"github.com/bobmcallan/ledgerlink/internal/models"
)

// --- In-memory storage ---

type memUserStore struct {
	users map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*models.User)}
}

func (m *memUserStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	return u, nil
}

func (m *memUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %s", email)
}

func (m *memUserStore) SaveUser(_ context.Context, user *models.User) error {
	m.users[user.UserID] = user
	return nil
}

func (m *memUserStore) DeleteUser(_ context.Context, userID string) error {
	delete(m.users, userID)
	return nil
}

func (m *memUserStore) ListUsers(_ context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

type memCredStore struct {
	records map[string]*models.Credential

	upsertCalls int
	lastUpsert  struct {
		ownerID    string
		tenantID   string
		systemWide bool
		bundle     *models.TokenBundle
	}
}

func newMemCredStore() *memCredStore {
	return &memCredStore{records: make(map[string]*models.Credential)}
}

func (m *memCredStore) Upsert(_ context.Context, ownerID, tenantID, tenantName string, bundle *models.TokenBundle, systemWide bool) (*models.CredentialSummary, error) {
	m.upsertCalls++
	m.lastUpsert.ownerID = ownerID
	m.lastUpsert.tenantID = tenantID
	m.lastUpsert.systemWide = systemWide
	m.lastUpsert.bundle = bundle

	cred := &models.Credential{
		OwnerID:    ownerID,
		TenantID:   tenantID,
		TenantName: tenantName,
		SystemWide: systemWide,
		LastSynced: time.Now().UTC(),
		Bundle:     bundle,
	}
	m.records[ownerID+"_"+tenantID] = cred
	summary := cred.Summary()
	return &summary, nil
}

func (m *memCredStore) Find(_ context.Context, ownerID, tenantID string) (*models.Credential, error) {
	return m.records[ownerID+"_"+tenantID], nil
}

func (m *memCredStore) FindSystemWide(_ context.Context) (*models.Credential, error) {
	for _, cred := range m.records {
		if cred.SystemWide {
			return cred, nil
		}
	}
	return nil, nil
}

func (m *memCredStore) Remove(_ context.Context, ownerID, tenantID string) (bool, error) {
	key := ownerID + "_" + tenantID
	if _, ok := m.records[key]; !ok {
		return false, nil
	}
	delete(m.records, key)
	return true, nil
}

func (m *memCredStore) ListSummaries(_ context.Context, ownerID string) ([]models.CredentialSummary, error) {
	var out []models.CredentialSummary
	for _, cred := range m.records {
		if cred.OwnerID == ownerID {
			out = append(out, cred.Summary())
		}
	}
	return out, nil
}

type memStorage struct {
	users *memUserStore
	creds *memCredStore
}

func (m *memStorage) UserStore() interfaces.UserStore             { return m.users }
func (m *memStorage) CredentialStore() interfaces.CredentialStore { return m.creds }
func (m *memStorage) Close() error                                { return nil }

var _ interfaces.StorageManager = (*memStorage)(nil)

// --- Service stubs ---

type stubConnectionService struct {
	bundle      *models.TokenBundle
	tenant      *models.Tenant
	exchangeErr error

	exchangeCalls int
	removed       bool
}

func (s *stubConnectionService) AuthorizeURL(ownerID string) string {
	return "https://login.xero.test/authorize?state=" + url.QueryEscape(ownerID)
}

func (s *stubConnectionService) CompleteExchange(_ context.Context, code string) (*models.TokenBundle, *models.Tenant, error) {
	s.exchangeCalls++
	if s.exchangeErr != nil {
		return nil, nil, s.exchangeErr
	}
	return s.bundle, s.tenant, nil
}

func (s *stubConnectionService) Refresh(context.Context, string) (*models.TokenBundle, error) {
	return nil, errors.New("not used")
}

func (s *stubConnectionService) ResolveTenant(context.Context, string) (*models.Tenant, error) {
	return s.tenant, nil
}

func (s *stubConnectionService) Disconnect(_ context.Context, _, _ string) (bool, error) {
	return s.removed, nil
}

var _ interfaces.ConnectionService = (*stubConnectionService)(nil)

type stubGatewayService struct {
	body []byte
	err  error

	calls      int
	lastMethod string
	lastPath   string
	lastQuery  url.Values
	lastBody   []byte
}

func (s *stubGatewayService) Call(_ context.Context, _ string, _ bool, method, path string, query url.Values, body []byte) ([]byte, error) {
	s.calls++
	s.lastMethod = method
	s.lastPath = path
	s.lastQuery = query
	s.lastBody = body
	return s.body, s.err
}

var _ interfaces.GatewayService = (*stubGatewayService)(nil)

// --- Server construction ---

func newTestServer(t *testing.T) (*Server, *memStorage) {
	t.Helper()
	logger := common.NewLoggerFromConfig(common.LoggingConfig{Level: "disabled"})
	cfg := common.NewDefaultConfig()
	cfg.Auth.JWTSecret = "test-secret-for-handler-tests"
	cfg.Xero.ClientID = "client-id"
	cfg.Xero.ClientSecret = "client-secret"

	store := &memStorage{users: newMemUserStore(), creds: newMemCredStore()}
	a := &app.App{
		Config:            cfg,
		Logger:            logger,
		Storage:           store,
		ConnectionService: &stubConnectionService{},
		GatewayService:    &stubGatewayService{},
		StartupTime:       time.Now(),
	}
	return &Server{app: a, logger: logger}, store
}

func seedUser(t *testing.T, store *memStorage, userID, email, password, role string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	user := &models.User{
		UserID:       userID,
		Email:        email,
		Name:         userID,
		PasswordHash: string(hash),
		Role:         role,
		Capabilities: models.DefaultCapabilities(role),
		CreatedAt:    time.Now().UTC(),
	}
	store.users.users[userID] = user
	return user
}

// authedRequest builds a request carrying the given user's context, the way
// the bearer middleware would populate it.
func authedRequest(method, target string, body *bytes.Buffer, user *models.User) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != nil {
		uc := &common.UserContext{
			UserID:     user.UserID,
			Email:      user.Email,
			Role:       user.Role,
			Privileged: user.IsPrivileged(),
		}
		req = req.WithContext(common.WithUserContext(req.Context(), uc))
	}
	return req
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return bytes.NewBuffer(data)
}
