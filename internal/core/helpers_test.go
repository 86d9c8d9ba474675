package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Field names of the contact schema used throughout the package tests.
const (
	fGiven     CanonicalField = "given_name"
	fFamily    CanonicalField = "family_name"
	fFull      CanonicalField = "full_name"
	fEmail     CanonicalField = "email"
	fEmail2    CanonicalField = "email_secondary"
	fPhone     CanonicalField = "phone"
	fYouTube   CanonicalField = "youtube"
	fOrg       CanonicalField = "organization"
	fStatus    CanonicalField = "status"
	fConsent   CanonicalField = "consent"
	fCountry   CanonicalField = "country"
	fWebsite   CanonicalField = "website"
	fSourceTag CanonicalField = "source"
)

func contactSchema(t testing.TB) *Schema {
	t.Helper()
	s, err := NewSchema("contact", "Contacts", []FieldSpec{
		{Name: fGiven, Type: FieldName, Aliases: []string{"first name", "fname"}},
		{Name: fFamily, Type: FieldName, Mandatory: true, Aliases: []string{"last name", "surname"}, SatisfiedBy: []CanonicalField{fFull}},
		{Name: fFull, Type: FieldName, Aliases: []string{"name"}},
		{Name: fEmail, Type: FieldEmail, Mandatory: true, Aliases: []string{"mail", "email address"}},
		{Name: fEmail2, Type: FieldEmail, Aliases: []string{"secondary email"}},
		{Name: fPhone, Type: FieldPhone, Aliases: []string{"telephone", "mobile"}},
		{Name: fYouTube, Type: FieldHandle, Aliases: []string{"youtube channel"}},
		{Name: fOrg, Type: FieldText, Aliases: []string{"company"}},
		{
			Name: fStatus, Type: FieldEnum, Default: "active",
			Choices:      []string{"active", "inactive"},
			ValueAliases: map[string]string{"On": "active", "off": "inactive"},
		},
		{Name: fConsent, Type: FieldBool, Aliases: []string{"opt in"}},
		{Name: fCountry, Type: FieldCountry},
		{Name: fWebsite, Type: FieldURL, Aliases: []string{"url"}},
		{Name: fSourceTag, Type: FieldText},
	}, SchemaOptions{
		Identifier:     fEmail,
		SecondaryEmail: fEmail2,
		Handles:        []CanonicalField{fYouTube},
		Names:          NameFields{Full: fFull, Given: fGiven, Family: fFamily},
		SourceField:    fSourceTag,
	})
	require.NoError(t, err)
	return s
}

// fakeStore is an in-memory RecordStore. It does not implement MatchFinder.
type fakeStore struct {
	mu      sync.Mutex
	schema  *Schema
	records []*Record
	creates int
	failOn  map[string]error
	findErr error
}

func newFakeStore(s *Schema) *fakeStore {
	return &fakeStore{schema: s, failOn: make(map[string]error)}
}

func (f *fakeStore) FindBy(_ context.Context, field CanonicalField, value string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, r := range f.records {
		if strings.EqualFold(strings.TrimSpace(r.Fields[field]), strings.TrimSpace(value)) {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) Create(_ context.Context, rec NormalizedRecord) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates++
	id := strings.ToLower(rec.Get(f.schema.Identifier))
	if err, ok := f.failOn[id]; ok {
		return nil, err
	}
	for _, r := range f.records {
		if strings.EqualFold(r.Fields[f.schema.Identifier], id) {
			return nil, ErrUniqueViolation
		}
	}
	return f.add(rec.Values()), nil
}

func (f *fakeStore) add(fields map[CanonicalField]string) *Record {
	r := &Record{
		ID:        fmt.Sprintf("rec-%d", len(f.records)+1),
		Fields:    fields,
		CreatedAt: time.Now(),
	}
	f.records = append(f.records, r)
	return r
}

// seed stores a record directly, bypassing Create.
func (f *fakeStore) seed(fields map[CanonicalField]string) *Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.add(fields)
}

func (f *fakeStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeStore) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

// matchStore adds a FindMatch that requires every criterion to match.
type matchStore struct {
	*fakeStore
	matchCalls int
}

func (m *matchStore) FindMatch(_ context.Context, criteria ...Criterion) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.matchCalls++
	for _, r := range m.records {
		all := true
		for _, c := range criteria {
			if !strings.EqualFold(r.Fields[c.Field], c.Value) {
				all = false
				break
			}
		}
		if all {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func newTestImporter(t testing.TB, store RecordStore) *Importer {
	t.Helper()
	return NewImporter(contactSchema(t), store, Options{
		BatchSize: 2,
		Workers:   2,
		Logger:    zap.NewNop(),
	})
}

// record builds a valid NormalizedRecord whose fields all count as mapped.
func record(values map[CanonicalField]string) NormalizedRecord {
	mapped := make([]CanonicalField, 0, len(values))
	for f := range values {
		mapped = append(mapped, f)
	}
	return NewNormalizedRecord(values, mapped, Provenance{Row: 1, Line: 2})
}
