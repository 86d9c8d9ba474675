package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmingest/internal/core"
)

// MemoryStore keeps records in process memory. Used by tests, previews
// without a database and the CLI's dry runs.
type MemoryStore struct {
	schema *core.Schema

	mu          sync.RWMutex
	records     []*core.Record
	identifiers map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory(schema *core.Schema) *MemoryStore {
	return &MemoryStore{
		schema:      schema,
		identifiers: make(map[string]string),
	}
}

func (s *MemoryStore) FindBy(ctx context.Context, field core.CanonicalField, value string) (*core.Record, error) {
	return s.FindMatch(ctx, core.Criterion{Field: field, Value: value})
}

func (s *MemoryStore) FindMatch(_ context.Context, criteria ...core.Criterion) (*core.Record, error) {
	for _, c := range criteria {
		if err := checkField(s.schema, c.Field); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if matches(r, criteria) {
			return copyRecord(r), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *MemoryStore) Create(_ context.Context, rec core.NormalizedRecord) (*core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identifierKey(s.schema, rec)
	if key != "" {
		if _, taken := s.identifiers[key]; taken {
			return nil, core.ErrUniqueViolation
		}
	}

	r := newRecord(uuid.NewString(), rec, time.Now().UTC())
	s.records = append(s.records, r)
	if key != "" {
		s.identifiers[key] = r.ID
	}
	return copyRecord(r), nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All returns copies of the stored records in creation order.
func (s *MemoryStore) All() []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Record, len(s.records))
	for i, r := range s.records {
		out[i] = *copyRecord(r)
	}
	return out
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func matches(r *core.Record, criteria []core.Criterion) bool {
	for _, c := range criteria {
		if !strings.EqualFold(strings.TrimSpace(r.Fields[c.Field]), strings.TrimSpace(c.Value)) {
			return false
		}
	}
	return len(criteria) > 0
}

func copyRecord(r *core.Record) *core.Record {
	fields := make(map[core.CanonicalField]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return &core.Record{ID: r.ID, Fields: fields, CreatedAt: r.CreatedAt}
}
