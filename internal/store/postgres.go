package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/JonMunkholm/crmingest/internal/core"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	schema  *core.Schema
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, schema *core.Schema) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, schema: schema, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	schema_key TEXT NOT NULL,
	identifier TEXT,
	fields     JSONB NOT NULL,
	import_id  TEXT,
	source_row INTEGER,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_records_identifier ON records(schema_key, identifier);
CREATE INDEX IF NOT EXISTS idx_records_fields ON records USING GIN (fields);
CREATE INDEX IF NOT EXISTS idx_records_import ON records(import_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// FindBy returns the oldest record whose field equals value, ignoring case.
func (s *PostgresStore) FindBy(ctx context.Context, field core.CanonicalField, value string) (*core.Record, error) {
	if field == s.schema.Identifier {
		row := s.pool.QueryRow(ctx,
			`SELECT id, fields, created_at FROM records WHERE schema_key = $1 AND identifier = $2 LIMIT 1`,
			s.schema.Key, strings.ToLower(strings.TrimSpace(value)))
		return scanPgRecord(row, "find by identifier")
	}
	return s.FindMatch(ctx, core.Criterion{Field: field, Value: value})
}

// FindMatch returns the oldest record matching every criterion.
func (s *PostgresStore) FindMatch(ctx context.Context, criteria ...core.Criterion) (*core.Record, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "fields", "created_at").From("records")
	sb.Where(sb.Equal("schema_key", s.schema.Key))
	for _, c := range criteria {
		if err := checkField(s.schema, c.Field); err != nil {
			return nil, err
		}
		sb.Where("lower(fields->>" + sb.Var(string(c.Field)) + ") = lower(" + sb.Var(c.Value) + ")")
	}
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()
	return scanPgRecord(s.pool.QueryRow(ctx, query+" LIMIT 1", args...), "find match")
}

// Create inserts rec in its own transaction.
func (s *PostgresStore) Create(ctx context.Context, rec core.NormalizedRecord) (*core.Record, error) {
	fieldsJSON, err := json.Marshal(rec.Values())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal fields")
	}

	var identifier any
	if key := identifierKey(s.schema, rec); key != "" {
		identifier = key
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO records (id, schema_key, identifier, fields, import_id, source_row, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, s.schema.Key, identifier, fieldsJSON, rec.Provenance.ImportID, rec.Provenance.Row, now)
	if err != nil {
		_ = tx.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, core.ErrUniqueViolation
		}
		return nil, eris.Wrap(err, "postgres: insert record")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}
	return newRecord(id, rec, now), nil
}

func scanPgRecord(row pgx.Row, op string) (*core.Record, error) {
	var (
		id        string
		raw       []byte
		createdAt time.Time
	)
	if err := row.Scan(&id, &raw, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	rec := &core.Record{ID: id, CreatedAt: createdAt}
	if err := json.Unmarshal(raw, &rec.Fields); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode fields of %s", id)
	}
	return rec, nil
}
