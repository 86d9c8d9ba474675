package core

import "context"

// RecordStore is the persistence boundary of the pipeline.
//
// FindBy returns ErrNotFound when no record has value in field (compared
// case-insensitively). Create stores a record and returns ErrUniqueViolation
// when the schema's identifier is already taken. Each Create is atomic.
type RecordStore interface {
	FindBy(ctx context.Context, field CanonicalField, value string) (*Record, error)
	Create(ctx context.Context, rec NormalizedRecord) (*Record, error)
}

// Criterion is one field=value condition of a multi-field lookup.
type Criterion struct {
	Field CanonicalField
	Value string
}

// MatchFinder is implemented by stores that can look a record up by several
// fields at once. The resolver uses it for the name-pair lookup and falls
// back to FindBy plus a comparison when a store does not implement it.
type MatchFinder interface {
	FindMatch(ctx context.Context, criteria ...Criterion) (*Record, error)
}
