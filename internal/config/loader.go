package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: import.batch_size is
// read from CRMINGEST_IMPORT_BATCH_SIZE.
const EnvPrefix = "CRMINGEST"

// Load reads configuration from ./crmingest.yaml (optional), .env and the
// environment, applies defaults and validates the result.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// the working directory for crmingest.yaml; a named file must exist.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("crmingest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("store.database_url", EnvPrefix+"_STORE_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, eris.Wrap(err, "config: bind DATABASE_URL")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "config validation")
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "60s")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "crmingest.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)

	v.SetDefault("import.schema", "customer")
	v.SetDefault("import.schema_file", "")
	v.SetDefault("import.templates_file", "")
	v.SetDefault("import.sample_size", 1000)
	v.SetDefault("import.preview_rows", 10)
	v.SetDefault("import.batch_size", 500)
	v.SetDefault("import.workers", 4)
	v.SetDefault("import.max_file_size", 100<<20)
	v.SetDefault("import.max_concurrent", 5)
	v.SetDefault("import.max_wait_time", "30s")
	v.SetDefault("import.timeout", "10m")
	v.SetDefault("import.default_source", "")
	v.SetDefault("import.encodings", []string{"utf-8", "utf-16", "windows-1252"})
	v.SetDefault("import.batch_ttl", "15m")

	v.SetDefault("rate.enabled", true)
	v.SetDefault("rate.requests_per_minute", 100)
	v.SetDefault("rate.import_limit", 10)

	v.SetDefault("security.require_api_key", false)
	v.SetDefault("security.api_keys", []string{})
	v.SetDefault("security.enable_csp", true)
	v.SetDefault("security.trusted_proxies", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
