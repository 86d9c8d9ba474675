// Package config provides centralized configuration management for the application.
// It loads configuration from an optional YAML file, a .env file and
// environment variables with sensible defaults, and validates all settings
// on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/JonMunkholm/crmingest/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Store    store.Config    `yaml:"store" mapstructure:"store"`
	Import   ImportConfig    `yaml:"import" mapstructure:"import"`
	Rate     RateLimitConfig `yaml:"rate" mapstructure:"rate"`
	Security SecurityConfig  `yaml:"security" mapstructure:"security"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" mapstructure:"host"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" mapstructure:"port"`

	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// ImportConfig holds CSV import processing settings.
type ImportConfig struct {
	// Schema is the registered schema key imports map onto (default: customer)
	Schema string `yaml:"schema" mapstructure:"schema"`

	// SchemaFile optionally registers an extra schema from YAML.
	SchemaFile string `yaml:"schema_file" mapstructure:"schema_file"`

	// TemplatesFile holds saved mapping templates.
	TemplatesFile string `yaml:"templates_file" mapstructure:"templates_file"`

	SampleSize  int `yaml:"sample_size" mapstructure:"sample_size"`
	PreviewRows int `yaml:"preview_rows" mapstructure:"preview_rows"`
	BatchSize   int `yaml:"batch_size" mapstructure:"batch_size"`
	Workers     int `yaml:"workers" mapstructure:"workers"`

	// MaxFileSize is the maximum allowed upload in bytes (default: 100MB)
	MaxFileSize int64 `yaml:"max_file_size" mapstructure:"max_file_size"`

	// MaxConcurrent is the maximum number of parallel imports (default: 5)
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `yaml:"max_wait_time" mapstructure:"max_wait_time"`

	// Timeout is the maximum duration for a single import (default: 10m)
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// DefaultSource tags records whose source column is empty.
	DefaultSource string `yaml:"default_source" mapstructure:"default_source"`

	// Encodings is the decode candidate order.
	Encodings []string `yaml:"encodings" mapstructure:"encodings"`

	// BatchTTL is how long a previewed batch stays importable (default: 15m)
	BatchTTL time.Duration `yaml:"batch_ttl" mapstructure:"batch_ttl"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`

	// ImportLimit is requests per minute for preview/import endpoints (default: 10)
	ImportLimit int `yaml:"import_limit" mapstructure:"import_limit"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	RequireAPIKey  bool     `yaml:"require_api_key" mapstructure:"require_api_key"`
	APIKeys        []string `yaml:"api_keys" mapstructure:"api_keys"`
	EnableCSP      bool     `yaml:"enable_csp" mapstructure:"enable_csp"`
	TrustedProxies []string `yaml:"trusted_proxies" mapstructure:"trusted_proxies"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" mapstructure:"level"`

	// Format is json or console (default: json)
	Format string `yaml:"format" mapstructure:"format"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Store.Driver) {
	case "", store.DriverMemory:
	case store.DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	case store.DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres driver")
		}
		if c.Store.Pool.MaxConns < c.Store.Pool.MinConns {
			errs = append(errs, fmt.Sprintf("store.pool.max_conns (%d) must be >= store.pool.min_conns (%d)",
				c.Store.Pool.MaxConns, c.Store.Pool.MinConns))
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver (%q) must be one of: memory, sqlite, postgres", c.Store.Driver))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}

	if c.Import.Schema == "" {
		errs = append(errs, "import.schema is required")
	}
	if c.Import.SampleSize <= 0 {
		errs = append(errs, "import.sample_size must be positive")
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, "import.batch_size must be positive")
	}
	if c.Import.Workers <= 0 {
		errs = append(errs, "import.workers must be positive")
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "import.max_file_size must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "import.max_concurrent must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "import.max_wait_time must be positive")
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, "import.timeout must be positive")
	}
	if c.Import.BatchTTL <= 0 {
		errs = append(errs, "import.batch_ttl must be positive")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "rate.requests_per_minute must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "security.require_api_key is true but security.api_keys is empty; configure at least one API key or disable auth")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level (%q) must be one of: debug, info, warn, error", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Sprintf("log.format (%q) must be one of: json, console", c.Log.Format))
	}

	if len(errs) > 0 {
		return eris.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL and API keys are masked.
func (c *Config) String() string {
	dbURL := ""
	if c.Store.DatabaseURL != "" {
		dbURL = "[MASKED]"
	}
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Store: {Driver: %q, DatabaseURL: %q, SQLitePath: %q, MaxConns: %d, MinConns: %d}, ",
		c.Store.Driver, dbURL, c.Store.SQLitePath, c.Store.Pool.MaxConns, c.Store.Pool.MinConns)
	fmt.Fprintf(&b, "Import: {Schema: %q, MaxFileSize: %d, MaxConcurrent: %d, BatchSize: %d, Workers: %d}, ",
		c.Import.Schema, c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.BatchSize, c.Import.Workers)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Log: {Level: %q, Format: %q}", c.Log.Level, c.Log.Format)
	b.WriteString("}")
	return b.String()
}
