// Package common provides shared utilities for LedgerLink
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for LedgerLink
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
	Xero        XeroConfig    `toml:"xero"`
	Crypto      CryptoConfig  `toml:"crypto"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection configuration.
type StorageConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// AuthConfig holds session authentication configuration.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the session token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// XeroConfig holds the Xero OAuth client credentials and endpoints.
// Client id/secret are supplied out-of-band (env or config file).
type XeroConfig struct {
	ClientID       string   `toml:"client_id"`
	ClientSecret   string   `toml:"client_secret"`
	RedirectURI    string   `toml:"redirect_uri"`
	Scopes         []string `toml:"scopes"`
	AuthorizeURL   string   `toml:"authorize_url"`
	TokenURL       string   `toml:"token_url"`
	ConnectionsURL string   `toml:"connections_url"`
	APIBaseURL     string   `toml:"api_base_url"`
	RateLimit      int      `toml:"rate_limit"`
	Timeout        string   `toml:"timeout"`
}

// GetTimeout parses and returns the HTTP timeout duration
func (c *XeroConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CryptoConfig holds the credential encryption key.
// Key is base64 and must decode to exactly 32 bytes; absence is a
// startup-time configuration fault, not a runtime error.
type CryptoConfig struct {
	Key string `toml:"key"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000",
			Username:  "root",
			Password:  "root",
			Namespace: "ledgerlink",
			Database:  "ledgerlink",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Xero: XeroConfig{
			RedirectURI:    "http://localhost:8080/api/xero/callback",
			Scopes:         []string{"openid", "profile", "email", "accounting.settings", "offline_access"},
			AuthorizeURL:   "https://login.xero.com/identity/connect/authorize",
			TokenURL:       "https://identity.xero.com/connect/token",
			ConnectionsURL: "https://api.xero.com/connections",
			APIBaseURL:     "https://api.xero.com/api.xro/2.0",
			RateLimit:      5,
			Timeout:        "30s",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LEDGERLINK_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("LEDGERLINK_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("LEDGERLINK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("LEDGERLINK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if addr := os.Getenv("LEDGERLINK_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if user := os.Getenv("LEDGERLINK_STORAGE_USERNAME"); user != "" {
		config.Storage.Username = user
	}
	if pass := os.Getenv("LEDGERLINK_STORAGE_PASSWORD"); pass != "" {
		config.Storage.Password = pass
	}

	// Auth overrides
	if v := os.Getenv("LEDGERLINK_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("LEDGERLINK_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}

	// Xero client credentials
	if v := os.Getenv("LEDGERLINK_XERO_CLIENT_ID"); v != "" {
		config.Xero.ClientID = v
	}
	if v := os.Getenv("LEDGERLINK_XERO_CLIENT_SECRET"); v != "" {
		config.Xero.ClientSecret = v
	}
	if v := os.Getenv("LEDGERLINK_XERO_REDIRECT_URI"); v != "" {
		config.Xero.RedirectURI = v
	}
	if v := os.Getenv("LEDGERLINK_XERO_SCOPES"); v != "" {
		config.Xero.Scopes = strings.Fields(v)
	}

	// Credential encryption key
	if v := os.Getenv("LEDGERLINK_CRYPTO_KEY"); v != "" {
		config.Crypto.Key = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
