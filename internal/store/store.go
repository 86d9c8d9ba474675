// Package store provides the record stores the import pipeline writes to.
//
// Every store keeps records of one schema in a generic table: the record's
// fields as JSON plus the lowercased identifier, which carries the unique
// constraint.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/JonMunkholm/crmingest/internal/core"
)

// Drivers understood by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a core.RecordStore with lifecycle methods.
type Store interface {
	core.RecordStore
	core.MatchFinder

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Config selects and configures a store.
type Config struct {
	Driver      string     `mapstructure:"driver"`
	DatabaseURL string     `mapstructure:"database_url"`
	SQLitePath  string     `mapstructure:"sqlite_path"`
	Pool        PoolConfig `mapstructure:"pool"`
}

// Open creates the configured store for schema and runs its migration.
func Open(ctx context.Context, cfg Config, schema *core.Schema) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", DriverMemory:
		s = NewMemory(schema)
	case DriverSQLite:
		s, err = NewSQLite(cfg.SQLitePath, schema)
	case DriverPostgres:
		s, err = NewPostgres(ctx, cfg.DatabaseURL, &cfg.Pool, schema)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// identifierKey is the value stored in the unique identifier column.
func identifierKey(schema *core.Schema, rec core.NormalizedRecord) string {
	if schema.Identifier == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(rec.Get(schema.Identifier)))
}

// checkField rejects fields the schema does not declare; field names end
// up inside JSON paths.
func checkField(schema *core.Schema, f core.CanonicalField) error {
	if _, ok := schema.Field(f); !ok {
		return eris.Errorf("store: unknown field %q for schema %s", f, schema.Key)
	}
	return nil
}

func newRecord(id string, rec core.NormalizedRecord, at time.Time) *core.Record {
	return &core.Record{
		ID:        id,
		Fields:    rec.Values(),
		CreatedAt: at,
	}
}
