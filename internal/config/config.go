package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Delivery endpoints
	APIBaseURL       string
	AnalyticsBaseURL string
	AnalyticsTable   string
	HTTPTimeout      time.Duration

	// Local storage
	StorageBackend string
	StorageDBPath  string
	QueueCapacity  int

	// Relay server
	Port string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:3001/api"),
		AnalyticsBaseURL: getEnv("ANALYTICS_BASE_URL", "http://localhost:8123"),
		AnalyticsTable:   getEnv("ANALYTICS_TABLE", "events"),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		StorageBackend: getEnv("STORAGE_BACKEND", "sqlite"),
		StorageDBPath:  getEnv("STORAGE_DB_PATH", "./data/wideevents.db"),
		QueueCapacity:  getEnvInt("QUEUE_CAPACITY", 100),

		Port: getEnv("PORT", "3001"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "wideevents"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "events_ingest"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate endpoints
	endpoints := []struct{ name, raw string }{
		{"API base URL", c.APIBaseURL},
		{"analytics base URL", c.AnalyticsBaseURL},
	}
	for _, ep := range endpoints {
		name, raw := ep.name, ep.raw
		if raw == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", name))
			continue
		}
		parsedURL, err := url.Parse(raw)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': %v", name, raw, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid %s scheme '%s': must be 'http' or 'https'", name, parsedURL.Scheme))
		}
	}

	if c.AnalyticsTable == "" {
		errors = append(errors, "analytics table cannot be empty")
	}

	if c.HTTPTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must not be negative", c.HTTPTimeout))
	}

	// Validate storage backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.StorageBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid storage backend '%s': must be one of %v", c.StorageBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.StorageBackend == "sqlite" {
		if c.StorageDBPath == "" {
			errors = append(errors, "storage database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.StorageDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create storage database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.QueueCapacity < 1 {
		errors = append(errors, fmt.Sprintf("invalid queue capacity %d: must be at least 1", c.QueueCapacity))
	} else if c.QueueCapacity > 10000 {
		errors = append(errors, fmt.Sprintf("invalid queue capacity %d: must be at most 10000", c.QueueCapacity))
	}

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, ok := parseLevel(c.LogLevel); !ok {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
