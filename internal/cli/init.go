// Package cli holds the start-up steps shared by cmd/events-relay and
// cmd/wideevent-probe.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"docledger/internal/config"
	applog "docledger/internal/log"
	"docledger/internal/storage"
	"docledger/internal/transport"
	"docledger/internal/wideevent"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and installs it as the slog default.
func SetupLogger(cfg *config.Config) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     cfg.SlogLevel(),
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *applog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenStore opens the configured local storage backend.
func OpenStore(cfg *config.Config, logger *applog.Logger) (storage.Store, error) {
	store, err := storage.Open(cfg.StorageBackend, cfg.StorageDBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageBackend, err)
	}
	logger.WithComponent(applog.ComponentStorage).Debug("Local storage opened",
		"backend", cfg.StorageBackend,
		"path", cfg.StorageDBPath)
	return store, nil
}

// NewWideEventClient wires the delivery chain: the backend API as primary and
// beacon transport, the analytics store as secondary, store as the durable
// queue and as the source of the bearer token.
func NewWideEventClient(cfg *config.Config, store storage.Local, logger *applog.Logger) *wideevent.Client {
	httpClient := transport.NewHTTPClient(cfg.HTTPTimeout)
	backend := transport.NewBackend(cfg.APIBaseURL, httpClient, transport.StorageToken{Store: store}, logger)

	return wideevent.NewClient(wideevent.Options{
		Primary:       backend,
		Secondary:     transport.NewAnalytics(cfg.AnalyticsBaseURL, cfg.AnalyticsTable, httpClient),
		Beacon:        backend,
		Store:         store,
		QueueCapacity: cfg.QueueCapacity,
		Logger:        logger,
	})
}
