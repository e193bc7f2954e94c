// Package xero provides a wire-level client for the Xero identity and
// accounting APIs.
package xero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/ledgerlink/internal/common"
	"github.com/bobmcallan/ledgerlink/internal/interfaces"
	"github.com/bobmcallan/ledgerlink/internal/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client implements the XeroClient interface. It holds OAuth client
// credentials but never token state; access/refresh tokens are passed per
// call by the gateway.
type Client struct {
	cfg        common.XeroConfig
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Xero client from configuration.
func NewClient(cfg common.XeroConfig, opts ...ClientOption) *Client {
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ExchangeError represents a token endpoint rejection (grant or refresh).
// Body carries the provider's error JSON for diagnostics; the request form
// that produced it is never attached.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("Xero token endpoint error: %s (status: %d)", e.Body, e.StatusCode)
}

// AuthorizeURL builds the user-facing authorization redirect.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURI},
		"scope":         {strings.Join(c.cfg.Scopes, " ")},
		"state":         {state},
	}
	return c.cfg.AuthorizeURL + "?" + q.Encode()
}

// tokenResponse is the token endpoint wire format.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// token posts a form to the token endpoint and decodes the bundle.
func (c *Client) token(ctx context.Context, grantType string, form url.Values) (*models.TokenBundle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	form.Set("grant_type", grantType)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("grant_type", grantType).Msg("Xero token request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Str("grant_type", grantType).
			Int("status", resp.StatusCode).
			Msg("Xero token endpoint rejected request")
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &models.TokenBundle{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

// ExchangeCode swaps an authorization code for a token bundle.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*models.TokenBundle, error) {
	return c.token(ctx, "authorization_code", url.Values{
		"code":         {code},
		"redirect_uri": {redirectURI},
	})
}

// Refresh swaps a refresh token for a new bundle. The provider rotates the
// refresh token; the old one is invalid after this call succeeds.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.TokenBundle, error) {
	return c.token(ctx, "refresh_token", url.Values{
		"refresh_token": {refreshToken},
	})
}

// connectionRow is the connections endpoint wire format. Xero emits
// createdDateUtc without a zone suffix, so it is parsed explicitly.
type connectionRow struct {
	TenantID       string `json:"tenantId"`
	TenantName     string `json:"tenantName"`
	CreatedDateUTC string `json:"createdDateUtc"`
}

var createdDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseCreatedDate(s string) time.Time {
	for _, layout := range createdDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Connections lists the organisations the access token can reach.
func (c *Client) Connections(ctx context.Context, accessToken string) ([]models.Tenant, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ConnectionsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var rows []connectionRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode connections response: %w", err)
	}

	tenants := make([]models.Tenant, len(rows))
	for i, row := range rows {
		tenants[i] = models.Tenant{
			TenantID:   row.TenantID,
			TenantName: row.TenantName,
			CreatedAt:  parseCreatedDate(row.CreatedDateUTC),
		}
	}
	return tenants, nil
}

// Do executes one resource call against the accounting API. The status code
// is returned as-is — refresh eligibility is the gateway's decision, not the
// client's.
func (c *Client) Do(ctx context.Context, accessToken, tenantID string, r interfaces.ResourceRequest) (*interfaces.ResourceResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	// Join explicitly: callers pass bare resource paths ("Items") and the
	// configured base carries no trailing slash.
	reqURL := strings.TrimSuffix(c.cfg.APIBaseURL, "/") + "/" + strings.TrimPrefix(r.Path, "/")
	if len(r.Query) > 0 {
		reqURL += "?" + r.Query.Encode()
	}

	var bodyReader io.Reader
	if len(r.Body) > 0 {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Xero-Tenant-Id", tenantID)
	req.Header.Set("Accept", "application/json")
	if len(r.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("method", r.Method).
		Str("path", r.Path).
		Msg("Xero API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &interfaces.ResourceResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// Ensure Client implements XeroClient
var _ interfaces.XeroClient = (*Client)(nil)
