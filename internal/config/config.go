package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the server
type Config struct {
	Server       ServerConfig
	Storage      StorageConfig
	Logging      LoggingConfig
	RateLimit    RateLimitConfig
	Security     SecurityConfig
	Metrics      MetricsConfig
	Bridge       BridgeConfig
	Verification VerificationConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RequestTimeout int // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string // "file", "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	File     FileConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// FileConfig holds YAML file store settings
type FileConfig struct {
	Path string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// SecurityConfig holds request limits and API access
type SecurityConfig struct {
	MaxBodySizeMB int
	AuthToken     string // bearer token required on /api/v1 when set
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// BridgeConfig holds the host bridge connection
type BridgeConfig struct {
	URL        string // ws:// URL of the IDE bridge
	PluginName string
}

// VerificationConfig holds verification service settings
type VerificationConfig struct {
	MainURL         string // endpoint used for the "main" network
	URLTemplate     string // endpoint for other networks, {network} is substituted
	PollIntervalMS  int
	PollMaxAttempts int
	StatusResetMS   int
	WatchStatus     bool // poll checkverifystatus after a submission returns a GUID
	HTTPTimeout     int  // seconds
}

// Default verification endpoints
const (
	DefaultMainURL     = "https://api-testnet.tangerine.garden/v1/contracts/verify"
	DefaultURLTemplate = "https://api-{network}.tangerine.garden/v1/contracts/verify"
)

// DefaultVerification returns the verification defaults
func DefaultVerification() VerificationConfig {
	return VerificationConfig{
		MainURL:         DefaultMainURL,
		URLTemplate:     DefaultURLTemplate,
		PollIntervalMS:  4000,
		PollMaxAttempts: 60,
		StatusResetMS:   10000,
		WatchStatus:     false,
		HTTPTimeout:     30,
	}
}

// DefaultFileStorePath returns ~/.contraverify/storage.yaml, or a relative path when
// the home directory is unknown
func DefaultFileStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".contraverify", "storage.yaml")
	}
	return filepath.Join(home, ".contraverify", "storage.yaml")
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	defaults := DefaultVerification()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8080),
			Host:           getEnv("HOST", "0.0.0.0"),
			ReadTimeout:    getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:    getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			RequestTimeout: getEnvInt("SERVER_REQUEST_TIMEOUT", 30),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "file"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/contraverify.db"),
			},
			File: FileConfig{
				Path: getEnv("STORAGE_FILE_PATH", DefaultFileStorePath()),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Security: SecurityConfig{
			MaxBodySizeMB: getEnvInt("MAX_BODY_SIZE_MB", 5),
			AuthToken:     getEnv("AUTH_TOKEN", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		Bridge: BridgeConfig{
			URL:        getEnv("BRIDGE_URL", "ws://127.0.0.1:65520"),
			PluginName: getEnv("BRIDGE_PLUGIN_NAME", "contraverify"),
		},
		Verification: VerificationConfig{
			MainURL:         getEnv("VERIFY_MAIN_URL", defaults.MainURL),
			URLTemplate:     getEnv("VERIFY_URL_TEMPLATE", defaults.URLTemplate),
			PollIntervalMS:  getEnvInt("VERIFY_POLL_INTERVAL_MS", defaults.PollIntervalMS),
			PollMaxAttempts: getEnvInt("VERIFY_POLL_MAX_ATTEMPTS", defaults.PollMaxAttempts),
			StatusResetMS:   getEnvInt("VERIFY_STATUS_RESET_MS", defaults.StatusResetMS),
			WatchStatus:     getEnvBool("VERIFY_WATCH_STATUS", defaults.WatchStatus),
			HTTPTimeout:     getEnvInt("VERIFY_HTTP_TIMEOUT", defaults.HTTPTimeout),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && os.Getenv("STORAGE_TYPE") == "" {
		cfg.Storage.Type = "postgres"
	}

	return cfg, nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
