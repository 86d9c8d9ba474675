package schemas

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JonMunkholm/crmingest/internal/core"
	"github.com/JonMunkholm/crmingest/internal/store"
)

func TestCustomerFuzzyHeaders(t *testing.T) {
	s := Customer()

	tests := []struct {
		header string
		want   core.CanonicalField
	}{
		{"Contact Phone", Phone},
		{"Mobile Phone", Phone},
		{"Primary Email Address", Email},
		{"Customer Full Name", FullName},
		{"Last Contact Date", ""},
		{"Contact Type", ""},
		{"First Purchase", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			m := core.MapHeaders(s, []string{tt.header}, nil)
			if tt.want == "" {
				assert.Empty(t, m.Columns)
				assert.Equal(t, []string{tt.header}, m.Unmapped)
				return
			}
			require.Len(t, m.Columns, 1)
			assert.Equal(t, tt.want, m.Columns[0].Field)
			assert.Equal(t, core.MatchFuzzy, m.Columns[0].Match)
		})
	}
}

func TestCustomerGenericHeadersDoNotSatisfyNames(t *testing.T) {
	s := Customer()
	m := core.MapHeaders(s, []string{"Email", "Contact Phone", "Last Contact Date"}, nil)

	got := map[string]core.CanonicalField{}
	for _, c := range m.Columns {
		got[c.Header] = c.Field
	}
	assert.Equal(t, map[string]core.CanonicalField{"Email": Email, "Contact Phone": Phone}, got)
	assert.Equal(t, []string{"Last Contact Date"}, m.Unmapped)
	assert.Equal(t, []core.CanonicalField{FamilyName}, m.MissingMandatory)
}

func TestCustomerImportWithoutNameColumnIsRejected(t *testing.T) {
	s := Customer()
	st := store.NewMemory(s)
	im := core.NewImporter(s, st, core.Options{Logger: zap.NewNop()})

	csv := "Email,Contact Phone,Last Contact Date\nada@example.com,+44 20 7946 0958,2024-01-02\n"
	report, err := im.Import(context.Background(), []byte(csv), core.ImportOptions{})

	var schemaErr *core.SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, []core.CanonicalField{FamilyName}, schemaErr.Missing)
	require.NotNil(t, report)
	assert.Equal(t, core.PhaseRejected, report.Phase)
	assert.Equal(t, 0, st.Len())
}
