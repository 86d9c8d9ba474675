package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/crmingest/internal/core"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db     *sqlx.DB
	schema *core.Schema
}

// NewSQLite opens (or creates) a SQLite database at path.
func NewSQLite(path string, schema *core.Schema) (*SQLiteStore, error) {
	if path == "" {
		return nil, eris.New("sqlite: path is required")
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}

	// A single writer keeps SQLITE_BUSY out of concurrent imports.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: %s", pragma)
		}
	}

	return &SQLiteStore{db: db, schema: schema}, nil
}

// sqliteTimeLayout keeps every fractional digit so created_at sorts as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// parseSQLiteTime also accepts RFC 3339 values written by older versions.
func parseSQLiteTime(s string) (time.Time, error) {
	if t, err := time.Parse(sqliteTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	schema_key TEXT NOT NULL,
	identifier TEXT,
	fields     TEXT NOT NULL,
	import_id  TEXT,
	source_row INTEGER,
	created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_records_identifier ON records(schema_key, identifier);
CREATE INDEX IF NOT EXISTS idx_records_import ON records(import_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteRow struct {
	ID        string `db:"id"`
	Fields    string `db:"fields"`
	CreatedAt string `db:"created_at"`
}

// FindBy returns the oldest record whose field equals value, ignoring case.
func (s *SQLiteStore) FindBy(ctx context.Context, field core.CanonicalField, value string) (*core.Record, error) {
	if field == s.schema.Identifier {
		sb := sqlbuilder.SQLite.NewSelectBuilder()
		sb.Select("id", "fields", "created_at").From("records")
		sb.Where(
			sb.Equal("schema_key", s.schema.Key),
			sb.Equal("identifier", strings.ToLower(strings.TrimSpace(value))),
		)
		sb.Limit(1)
		return s.get(ctx, sb, "find by identifier")
	}
	return s.FindMatch(ctx, core.Criterion{Field: field, Value: value})
}

// FindMatch returns the oldest record matching every criterion.
func (s *SQLiteStore) FindMatch(ctx context.Context, criteria ...core.Criterion) (*core.Record, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "fields", "created_at").From("records")
	sb.Where(sb.Equal("schema_key", s.schema.Key))
	for _, c := range criteria {
		if err := checkField(s.schema, c.Field); err != nil {
			return nil, err
		}
		sb.Where("lower(trim(json_extract(fields, " + sb.Var("$."+string(c.Field)) + "))) = lower(" + sb.Var(strings.TrimSpace(c.Value)) + ")")
	}
	sb.OrderBy("created_at").Asc().Limit(1)
	return s.get(ctx, sb, "find match")
}

func (s *SQLiteStore) get(ctx context.Context, sb *sqlbuilder.SelectBuilder, op string) (*core.Record, error) {
	query, args := sb.Build()
	var row sqliteRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}

	rec := &core.Record{ID: row.ID}
	if err := json.Unmarshal([]byte(row.Fields), &rec.Fields); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode fields of %s", row.ID)
	}
	if t, err := parseSQLiteTime(row.CreatedAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}

// Create inserts rec. A single INSERT is atomic in SQLite, so no explicit
// transaction is needed.
func (s *SQLiteStore) Create(ctx context.Context, rec core.NormalizedRecord) (*core.Record, error) {
	fieldsJSON, err := json.Marshal(rec.Values())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal fields")
	}

	var identifier any
	if key := identifierKey(s.schema, rec); key != "" {
		identifier = key
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("records")
	ib.Cols("id", "schema_key", "identifier", "fields", "import_id", "source_row", "created_at")
	ib.Values(id, s.schema.Key, identifier, string(fieldsJSON),
		rec.Provenance.ImportID, rec.Provenance.Row, formatSQLiteTime(now))

	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isSQLiteUnique(err) {
			return nil, core.ErrUniqueViolation
		}
		return nil, eris.Wrap(err, "sqlite: insert record")
	}
	return newRecord(id, rec, now), nil
}

func isSQLiteUnique(err error) bool {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		code := sqErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
