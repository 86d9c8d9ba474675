package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	s := contactSchema(t)
	ctx := context.Background()

	store := newFakeStore(s)
	existing := store.seed(map[CanonicalField]string{
		fEmail:   "ada@example.com",
		fGiven:   "Ada",
		fFamily:  "Lovelace",
		fYouTube: "ada",
		fOrg:     "Analytical Engines",
	})

	tests := []struct {
		name          string
		values        map[CanonicalField]string
		wantKind      VerdictKind
		wantMatchedBy CanonicalField
		wantDiffering []CanonicalField
	}{
		{
			name:     "new record",
			values:   map[CanonicalField]string{fEmail: "grace@example.com", fGiven: "Grace", fFamily: "Hopper"},
			wantKind: VerdictNew,
		},
		{
			name:          "exact duplicate by identifier ignores case",
			values:        map[CanonicalField]string{fEmail: "ADA@example.com", fGiven: "ada", fFamily: "Lovelace"},
			wantKind:      VerdictExactDuplicate,
			wantMatchedBy: fEmail,
		},
		{
			name:          "conflicting by identifier",
			values:        map[CanonicalField]string{fEmail: "ada@example.com", fOrg: "Babbage & Co"},
			wantKind:      VerdictConflicting,
			wantMatchedBy: fEmail,
			wantDiffering: []CanonicalField{fOrg},
		},
		{
			name:          "conflicting by handle",
			values:        map[CanonicalField]string{fEmail: "countess@example.com", fYouTube: "ADA", fOrg: "Analytical Engines"},
			wantKind:      VerdictConflicting,
			wantMatchedBy: fYouTube,
			wantDiffering: []CanonicalField{fEmail},
		},
		{
			name:          "name pair is the last resort",
			values:        map[CanonicalField]string{fEmail: "a.lovelace@example.com", fGiven: "Ada", fFamily: "LOVELACE"},
			wantKind:      VerdictConflicting,
			wantMatchedBy: fGiven + "+" + fFamily,
			wantDiffering: []CanonicalField{fEmail},
		},
		{
			name:     "family name alone does not match",
			values:   map[CanonicalField]string{fEmail: "byron@example.com", fGiven: "Anne", fFamily: "Lovelace"},
			wantKind: VerdictNew,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewResolver(store, s).Resolve(ctx, record(tt.values))
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, v.Kind)
			assert.Equal(t, tt.wantMatchedBy, v.MatchedBy)
			assert.Equal(t, tt.wantDiffering, v.Differing)
			if tt.wantKind != VerdictNew {
				assert.Equal(t, existing.ID, v.ExistingID)
			}
			assert.False(t, v.WithinFile)
		})
	}
}

func TestResolveUsesMatchFinder(t *testing.T) {
	s := contactSchema(t)
	store := &matchStore{fakeStore: newFakeStore(s)}
	store.seed(map[CanonicalField]string{fEmail: "ada@example.com", fGiven: "Ada", fFamily: "Lovelace"})

	v, err := NewResolver(store, s).Resolve(context.Background(),
		record(map[CanonicalField]string{fEmail: "other@example.com", fGiven: "ada", fFamily: "lovelace"}))

	require.NoError(t, err)
	assert.Equal(t, VerdictConflicting, v.Kind)
	assert.Equal(t, 1, store.matchCalls)
}

func TestResolveIgnoresUnmappedFields(t *testing.T) {
	s := contactSchema(t)
	store := newFakeStore(s)
	store.seed(map[CanonicalField]string{fEmail: "ada@example.com", fStatus: "inactive"})

	// status came from a schema default, not from a column.
	rec := NewNormalizedRecord(
		map[CanonicalField]string{fEmail: "ada@example.com", fStatus: "active"},
		[]CanonicalField{fEmail},
		Provenance{Row: 1},
	)
	v, err := NewResolver(store, s).Resolve(context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, VerdictExactDuplicate, v.Kind)
	assert.Empty(t, v.Differing)
}

func TestResolveWithinFile(t *testing.T) {
	s := contactSchema(t)
	store := newFakeStore(s)
	created := store.seed(map[CanonicalField]string{fEmail: "ada@example.com"})

	r := NewResolver(store, s)
	r.MarkCreated(created.ID)

	v, err := r.Resolve(context.Background(), record(map[CanonicalField]string{fEmail: "ada@example.com"}))
	require.NoError(t, err)
	assert.Equal(t, VerdictExactDuplicate, v.Kind)
	assert.True(t, v.WithinFile)
}

func TestResolveStoreError(t *testing.T) {
	s := contactSchema(t)
	store := newFakeStore(s)
	store.findErr = errors.New("connection reset by peer")

	_, err := NewResolver(store, s).Resolve(context.Background(), record(map[CanonicalField]string{fEmail: "ada@example.com"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDifferences(t *testing.T) {
	existing := &Record{Fields: map[CanonicalField]string{
		fEmail: "ada@example.com",
		fOrg:   " Analytical Engines ",
		fPhone: "+441234567",
	}}

	rec := record(map[CanonicalField]string{
		fEmail:   "ADA@example.com",
		fOrg:     "analytical engines",
		fPhone:   "+449999999",
		fYouTube: "ada",
	})

	assert.Equal(t, []CanonicalField{fPhone, fYouTube}, Differences(rec, existing))
}
