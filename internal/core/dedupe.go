package core

// dedupe.go classifies a normalized record against the store.
//
// Lookup order is the identifier, then each secondary handle, then the
// given+family name pair. The first match wins. Only fields that came from
// a mapped column and carry a value are compared; defaults never make a
// row conflict.

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Resolver produces DuplicateVerdicts. It remembers the records created by
// its own import so those matches can be labelled as in-file duplicates.
// A Resolver belongs to one import and is not safe for concurrent use.
type Resolver struct {
	store   RecordStore
	schema  *Schema
	created map[string]bool
}

// NewResolver creates a resolver for one import.
func NewResolver(store RecordStore, schema *Schema) *Resolver {
	return &Resolver{
		store:   store,
		schema:  schema,
		created: make(map[string]bool),
	}
}

// MarkCreated records that id was written by this import.
func (r *Resolver) MarkCreated(id string) {
	r.created[id] = true
}

// Resolve looks rec up and classifies it. Store failures other than
// ErrNotFound are returned.
func (r *Resolver) Resolve(ctx context.Context, rec NormalizedRecord) (DuplicateVerdict, error) {
	existing, matchedBy, err := r.lookup(ctx, rec)
	if err != nil {
		return DuplicateVerdict{}, err
	}
	if existing == nil {
		return DuplicateVerdict{Kind: VerdictNew}, nil
	}

	v := DuplicateVerdict{
		ExistingID: existing.ID,
		MatchedBy:  matchedBy,
		Differing:  Differences(rec, existing),
		WithinFile: r.created[existing.ID],
	}
	if len(v.Differing) == 0 {
		v.Kind = VerdictExactDuplicate
	} else {
		v.Kind = VerdictConflicting
	}
	return v, nil
}

func (r *Resolver) lookup(ctx context.Context, rec NormalizedRecord) (*Record, CanonicalField, error) {
	keys := make([]CanonicalField, 0, 1+len(r.schema.Handles))
	if r.schema.Identifier != "" {
		keys = append(keys, r.schema.Identifier)
	}
	keys = append(keys, r.schema.Handles...)

	for _, f := range keys {
		value := rec.Get(f)
		if value == "" {
			continue
		}
		found, err := r.store.FindBy(ctx, f, value)
		if eris.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", eris.Wrapf(err, "dedupe: find by %s", f)
		}
		return found, f, nil
	}

	given, family := r.schema.Names.Given, r.schema.Names.Family
	if given == "" || family == "" || rec.Get(given) == "" || rec.Get(family) == "" {
		return nil, "", nil
	}
	found, err := r.findPair(ctx, given, rec.Get(given), family, rec.Get(family))
	if eris.Is(err, ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", eris.Wrap(err, "dedupe: find by name")
	}
	return found, given + "+" + family, nil
}

func (r *Resolver) findPair(ctx context.Context, f1 CanonicalField, v1 string, f2 CanonicalField, v2 string) (*Record, error) {
	if mf, ok := r.store.(MatchFinder); ok {
		return mf.FindMatch(ctx, Criterion{f1, v1}, Criterion{f2, v2})
	}
	found, err := r.store.FindBy(ctx, f2, v2)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(found.Fields[f1], v1) {
		return nil, ErrNotFound
	}
	return found, nil
}

// Differences lists the mapped, non-empty fields of rec whose values differ
// from existing, compared case-insensitively.
func Differences(rec NormalizedRecord, existing *Record) []CanonicalField {
	var diff []CanonicalField
	for _, f := range rec.Fields() {
		if !rec.Mapped(f) {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(rec.Get(f)), strings.TrimSpace(existing.Fields[f])) {
			diff = append(diff, f)
		}
	}
	sort.Slice(diff, func(i, j int) bool { return diff[i] < diff[j] })
	return diff
}
