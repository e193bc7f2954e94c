// Package app wires configuration, storage, clients, and services into a
// single application core shared by cmd/ledgerlink-server and tests.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/ledgerlink/internal/clients/xero"
	"github.com/bobmcallan/ledgerlink/internal/common"
	"github.com/bobmcallan/ledgerlink/internal/interfaces"
	"github.com/bobmcallan/ledgerlink/internal/secrets"
	"github.com/bobmcallan/ledgerlink/internal/services/connection"
	"github.com/bobmcallan/ledgerlink/internal/services/gateway"
	"github.com/bobmcallan/ledgerlink/internal/storage/surrealdb"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config            *common.Config
	Logger            *common.Logger
	Storage           interfaces.StorageManager
	XeroClient        interfaces.XeroClient
	ConnectionService interfaces.ConnectionService
	GatewayService    interfaces.GatewayService
	StartupTime       time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, the Xero client, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Load configuration - check provided path, LEDGERLINK_CONFIG, then
	// binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("LEDGERLINK_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "ledgerlink.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/ledgerlink.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	// The encryption key is validated once here. A missing or malformed key
	// is a configuration fault and refuses startup; it never surfaces as a
	// per-request error.
	cryptoKey, err := secrets.DecodeKey(config.Crypto.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid credential encryption key: %w", err)
	}

	storageManager, err := surrealdb.NewManager(logger, config, cryptoKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	xeroClient := xero.NewClient(config.Xero,
		xero.WithLogger(logger),
		xero.WithRateLimit(config.Xero.RateLimit),
		xero.WithTimeout(config.Xero.GetTimeout()),
	)

	connectionService := connection.NewService(xeroClient, storageManager.CredentialStore(), config.Xero.RedirectURI, logger)
	gatewayService := gateway.NewService(storageManager.CredentialStore(), connectionService, xeroClient, logger)

	app := &App{
		Config:            config,
		Logger:            logger,
		Storage:           storageManager,
		XeroClient:        xeroClient,
		ConnectionService: connectionService,
		GatewayService:    gatewayService,
		StartupTime:       time.Now(),
	}

	logger.Info().
		Str("environment", config.Environment).
		Dur("startup", time.Since(startupStart)).
		Msg("Application initialized")

	return app, nil
}

// Close releases storage connections.
func (a *App) Close() error {
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
