// Package config loads application settings from environment variables,
// applies defaults and validates everything on start-up.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Import    ImportConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Retention RetentionConfig

	// offline skips database settings in Validate. Set by LoadOffline.
	offline bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout bounds reading the request, including uploads (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout must stay 0 for the progress stream (default: 0s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is how long to wait for requests and runs on shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Both DATABASE_URL and DB_URL are accepted.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of pooled connections (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the number of connections kept open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime closes connections idle for longer (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// EnsureSchema creates the tables on start-up (default: true)
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" default:"true"`
}

// ImportConfig holds import pipeline settings.
type ImportConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10MB" unit:"bytes"`

	// MaxRecords caps records per import; the rest are dropped (default: 2000)
	MaxRecords int `env:"IMPORT_MAX_RECORDS" default:"2000"`

	// BatchSize is the number of records per sink call (default: 50)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"50"`

	// BatchDelay is the pause between batches (default: 100ms)
	BatchDelay time.Duration `env:"IMPORT_BATCH_DELAY" default:"100ms"`

	// MaxAttempts is how often a failing batch is tried (default: 3)
	MaxAttempts int `env:"IMPORT_MAX_ATTEMPTS" default:"3"`

	// RetryBaseDelay is multiplied by the attempt number between retries (default: 1s)
	RetryBaseDelay time.Duration `env:"IMPORT_RETRY_BASE_DELAY" default:"1s"`

	// SkipDuplicates drops repeated keys within a file (default: true)
	SkipDuplicates bool `env:"IMPORT_SKIP_DUPLICATES" default:"true"`

	// MaxConcurrent bounds simultaneous runs across targets (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a run waits for a slot (default: 10s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"10s"`

	// Timeout bounds a single run (default: 30m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"30m"`

	// UploadsPerMinute limits import requests per client IP; 0 disables (default: 10)
	UploadsPerMinute int `env:"IMPORT_UPLOADS_PER_MINUTE" default:"10"`

	// FailurePreview is how many failures the result endpoint lists (default: 20)
	FailurePreview int `env:"IMPORT_FAILURE_PREVIEW" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects the /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RetentionConfig holds housekeeping settings.
type RetentionConfig struct {
	// HistoryDays is how long run history is kept (default: 90)
	HistoryDays int `env:"RETENTION_HISTORY_DAYS" default:"90"`

	// ResultTTL is how long finished results stay in memory (default: 24h)
	ResultTTL time.Duration `env:"RETENTION_RESULT_TTL" default:"24h"`

	// CheckInterval is how often the retention job runs (default: 1h)
	CheckInterval time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"1h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
