package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const contactsCSV = "First Name,Last Name,Email,YouTube Channel,Company\n" +
	"Ada,Lovelace,ada@example.com,ada,Analytical Engines\n" +
	"Grace,Hopper,grace@example.com,,Navy\n" +
	",,,,\n" +
	"Alan,Turing,not-an-email,,\n" +
	"Ada,Lovelace,ADA@example.com,ada,Analytical Engines\n"

func assertCountsBalance(t *testing.T, c Counts) {
	t.Helper()
	assert.Equal(t, c.Attempted, c.Succeeded+c.SkippedDuplicate+c.Conflicting+c.Failed, "counts %+v", c)
}

func TestImport(t *testing.T) {
	store := newFakeStore(contactSchema(t))
	im := newTestImporter(t, store)

	report, err := im.Import(context.Background(), []byte(contactsCSV), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, PhaseReported, report.Phase)
	assert.Equal(t, "contact", report.Schema)
	assert.NotEmpty(t, report.ImportID)
	assert.Equal(t, Counts{
		Attempted:        4,
		Succeeded:        2,
		SkippedDuplicate: 1,
		Failed:           1,
		SkippedBlank:     1,
	}, report.Counts)
	assertCountsBalance(t, report.Counts)
	assert.Equal(t, 2, store.len())

	require.Len(t, report.Errors, 1)
	assert.Equal(t, 4, report.Errors[0].Row)
	assert.Equal(t, 5, report.Errors[0].Line)
	assert.Equal(t, RowErrorValidation, report.Errors[0].Kind)
	assert.Contains(t, report.Errors[0].Message, "invalid email")

	require.Len(t, report.Rows, 5)
	statuses := make([]RowStatus, len(report.Rows))
	for i, r := range report.Rows {
		statuses[i] = r.Status
		assert.Equal(t, i+1, r.Row, "rows are reported in input order")
	}
	assert.Equal(t, []RowStatus{RowSucceeded, RowSucceeded, RowBlank, RowFailed, RowDuplicate}, statuses)
	assert.Contains(t, report.Rows[4].Message, "duplicate within file")
	assert.Equal(t, report.Rows[0].RecordID, report.Rows[4].RecordID)
}

func TestImportCountsEmptyLines(t *testing.T) {
	store := newFakeStore(contactSchema(t))
	im := newTestImporter(t, store)

	csv := "Email,Last Name\na@x.com,A\n\n\nb@x.com,B\n,\n"
	report, err := im.Import(context.Background(), []byte(csv), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, Counts{Attempted: 2, Succeeded: 2, SkippedBlank: 3}, report.Counts)
	require.Len(t, report.Rows, 5)
	lines := make([]int, len(report.Rows))
	for i, r := range report.Rows {
		lines[i] = r.Line
	}
	assert.Equal(t, []int{2, 3, 4, 5, 6}, lines)
	assert.Equal(t, RowBlank, report.Rows[1].Status)
	assert.Equal(t, RowBlank, report.Rows[2].Status)
	assert.Equal(t, 2, store.len())
}

func TestUnmappedColumnsWarning(t *testing.T) {
	im := newTestImporter(t, newFakeStore(contactSchema(t)))
	csv := []byte("Email,Last Name,Favourite Colour,Shoe Size\nada@example.com,Lovelace,green,38\n")
	const want = "unmapped columns: Favourite Colour, Shoe Size"

	report, err := im.Import(context.Background(), csv, ImportOptions{})
	require.NoError(t, err)
	assert.Contains(t, report.Warnings, want)

	preview, err := im.Preview(context.Background(), csv, 5)
	require.NoError(t, err)
	assert.Contains(t, preview.Warnings, want)

	full, err := newTestImporter(t, newFakeStore(contactSchema(t))).
		Import(context.Background(), []byte("Email,Last Name\nada@example.com,Lovelace\n"), ImportOptions{})
	require.NoError(t, err)
	for _, w := range full.Warnings {
		assert.NotContains(t, w, "unmapped columns")
	}
}

func TestImportIsIdempotent(t *testing.T) {
	store := newFakeStore(contactSchema(t))
	im := newTestImporter(t, store)
	ctx := context.Background()

	first, err := im.Import(ctx, []byte(contactsCSV), ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, first.Counts.Succeeded)

	second, err := im.Import(ctx, []byte(contactsCSV), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, second.Counts.Succeeded)
	assert.Equal(t, 3, second.Counts.SkippedDuplicate)
	assert.Equal(t, 1, second.Counts.Failed)
	assertCountsBalance(t, second.Counts)
	assert.Equal(t, 2, store.len())
	assert.NotEqual(t, first.ImportID, second.ImportID)
}

func TestImportMissingMandatoryWritesNothing(t *testing.T) {
	store := newFakeStore(contactSchema(t))
	im := newTestImporter(t, store)

	report, err := im.Import(context.Background(), []byte("First Name,Phone\nAda,+44 20 7946 0958\n"), ImportOptions{})

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, []CanonicalField{fFamily, fEmail}, schemaErr.Missing)
	assert.Equal(t, "MAP001", MapError(err).Code)

	require.NotNil(t, report)
	assert.Equal(t, PhaseRejected, report.Phase)
	assert.Equal(t, Counts{}, report.Counts)
	assert.Equal(t, 0, store.createCalls())
}

func TestImportInvalidEmailsFailEachRow(t *testing.T) {
	const k = 7
	var b strings.Builder
	b.WriteString("Name,Email\n")
	for i := 0; i < k; i++ {
		fmt.Fprintf(&b, "Person %d,person%d-at-example.com\n", i, i)
	}
	b.WriteString("Valid Person,valid@example.com\n")

	store := newFakeStore(contactSchema(t))
	report, err := newTestImporter(t, store).Import(context.Background(), []byte(b.String()), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, k, report.Counts.Failed)
	assert.Equal(t, 1, report.Counts.Succeeded)
	assert.Len(t, report.Errors, k)
	assertCountsBalance(t, report.Counts)
}

func TestImportConflictLeavesExistingRecord(t *testing.T) {
	store := newFakeStore(contactSchema(t))
	existing := store.seed(map[CanonicalField]string{
		fEmail:   "ada@example.com",
		fFamily:  "Lovelace",
		fYouTube: "ada",
		fOrg:     "Analytical Engines",
	})

	csv := "Email,Last Name,YouTube Channel,Company\ncountess@example.com,Lovelace,@ada,Analytical Engines Ltd\n"
	report, err := newTestImporter(t, store).Import(context.Background(), []byte(csv), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts.Conflicting)
	require.Len(t, report.Conflicts, 1)
	c := report.Conflicts[0]
	assert.Equal(t, existing.ID, c.ExistingID)
	assert.Equal(t, fYouTube, c.MatchedBy)
	assert.Equal(t, []CanonicalField{fEmail, fOrg}, c.Fields)
	assert.Equal(t, "DUP002", MapError(c).Code)

	assert.Equal(t, "Analytical Engines", existing.Fields[fOrg])
	assert.Equal(t, 1, store.len())
	assert.Equal(t, 0, store.createCalls())
}

func TestImportPersistenceFailureIsolated(t *testing.T) {
	store := newFakeStore(contactSchema(t))
	store.failOn["grace@example.com"] = errors.New("connection reset by peer")
	store.failOn["alan@example.com"] = ErrUniqueViolation

	csv := "Name,Email\nAda Lovelace,ada@example.com\nGrace Hopper,grace@example.com\nAlan Turing,alan@example.com\nKatherine Johnson,kj@example.com\n"
	report, err := newTestImporter(t, store).Import(context.Background(), []byte(csv), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Counts.Succeeded)
	assert.Equal(t, 2, report.Counts.Failed)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, RowErrorPersistence, report.Errors[0].Kind)
	assert.Contains(t, report.Errors[0].Message, "connection reset")
	assert.Equal(t, "identifier already exists (written by another import)", report.Errors[1].Message)
	assert.Equal(t, "DUP001", MapError(errors.New(report.Errors[1].Message)).Code)
	assert.Equal(t, 2, store.len())
}

func TestImportMappingOverride(t *testing.T) {
	store := newFakeStore(contactSchema(t))
	im := newTestImporter(t, store)
	csv := "Who,Where\nAda Lovelace,ada@example.com\n"

	report, err := im.Import(context.Background(), []byte(csv), ImportOptions{
		MappingOverride: map[string]CanonicalField{"Who": fFull, "Where": fEmail},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Succeeded)
	assert.Equal(t, MatchOverride, report.Mapping.Columns[0].Match)

	_, err = im.Import(context.Background(), []byte(csv), ImportOptions{
		MappingOverride: map[string]CanonicalField{"Nobody": fEmail},
	})
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Problems[0], "unknown header")
}

func TestImportTemplate(t *testing.T) {
	templates, err := ParseTemplates([]byte(`
templates:
  - name: legacy
    schema: contact
    mapping:
      Who: full_name
      Where: email
`))
	require.NoError(t, err)

	store := newFakeStore(contactSchema(t))
	im := NewImporter(contactSchema(t), store, Options{Templates: templates, Logger: zap.NewNop()})
	csv := []byte("Who,Where\nAda Lovelace,ada@example.com\n")

	p, err := im.Prepare(context.Background(), csv)
	require.NoError(t, err)
	require.Len(t, p.Suggestions, 1)
	assert.Equal(t, "legacy", p.Suggestions[0].Template.Name)

	report, err := im.ImportBatch(context.Background(), p, ImportOptions{Template: "legacy"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Succeeded)

	_, err = im.ImportBatch(context.Background(), p, ImportOptions{Template: "missing"})
	assert.ErrorContains(t, err, "unknown mapping template missing")
}

func TestImportDefaultSource(t *testing.T) {
	s := contactSchema(t)
	store := newFakeStore(s)
	im := NewImporter(s, store, Options{DefaultSource: "configured", Logger: zap.NewNop()})
	ctx := context.Background()

	_, err := im.Import(ctx, []byte("Name,Email\nAda Lovelace,ada@example.com\n"), ImportOptions{})
	require.NoError(t, err)
	_, err = im.Import(ctx, []byte("Name,Email\nGrace Hopper,grace@example.com\n"), ImportOptions{DefaultSourceTag: "trade-show"})
	require.NoError(t, err)

	require.Equal(t, 2, store.len())
	assert.Equal(t, "configured", store.records[0].Fields[fSourceTag])
	assert.Equal(t, "trade-show", store.records[1].Fields[fSourceTag])
}

func TestImportCustomSchema(t *testing.T) {
	s, err := NewSchema("people", "People", []FieldSpec{
		{Name: "name", Type: FieldName, Mandatory: true},
		{Name: "mail", Type: FieldEmail, Mandatory: true},
	}, SchemaOptions{Identifier: "mail"})
	require.NoError(t, err)

	store := newFakeStore(s)
	im := NewImporter(s, store, Options{Logger: zap.NewNop()})

	report, err := im.Import(context.Background(), []byte("Name;Mail\nAda;ada@example.com\nAda;ADA@example.com\n"), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "semicolon", report.Dialect.Delimiter)
	assert.Equal(t, 1, report.Counts.Succeeded)
	assert.Equal(t, 1, report.Counts.SkippedDuplicate)
}

func TestImportNameMailScenario(t *testing.T) {
	s, err := NewSchema("people", "People", []FieldSpec{
		{Name: "given_name", Type: FieldName, Aliases: []string{"name"}},
		{Name: "email", Type: FieldEmail, Mandatory: true, Aliases: []string{"mail"}},
	}, SchemaOptions{Identifier: "email"})
	require.NoError(t, err)

	store := newFakeStore(s)
	im := NewImporter(s, store, Options{Logger: zap.NewNop()})

	report, err := im.Import(context.Background(), []byte("Name,Mail\nAda,ada@x.com\nBob,not-an-email"), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, report.Mapping.Confidence)
	assert.Equal(t, 1, report.Counts.Succeeded)
	assert.Equal(t, 1, report.Counts.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Errors[0].Row)
	assert.Equal(t, RowErrorValidation, report.Errors[0].Kind)
	assert.Contains(t, report.Errors[0].Message, "invalid email")
	assert.Equal(t, 1, store.len())
}

func TestImportBatchReuseIsSafe(t *testing.T) {
	s := contactSchema(t)
	im := NewImporter(s, nil, Options{Logger: zap.NewNop()})
	p, err := im.Prepare(context.Background(), []byte(contactsCSV))
	require.NoError(t, err)

	var wg sync.WaitGroup
	reports := make([]*ImportReport, 4)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			other := NewImporter(s, newFakeStore(s), Options{Logger: zap.NewNop()})
			reports[i], _ = other.ImportBatch(context.Background(), p, ImportOptions{})
		}(i)
	}
	wg.Wait()

	for _, r := range reports {
		require.NotNil(t, r)
		assert.Equal(t, 2, r.Counts.Succeeded)
	}
}

func TestImportCancelled(t *testing.T) {
	store := newFakeStore(contactSchema(t))
	im := newTestImporter(t, store)

	p, err := im.Prepare(context.Background(), []byte(contactsCSV))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := im.ImportBatch(ctx, p, ImportOptions{})
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Equal(t, PhaseReported, report.Phase)
	assert.Equal(t, 0, store.createCalls())
	assertCountsBalance(t, report.Counts)
}

func TestImportErrors(t *testing.T) {
	im := newTestImporter(t, newFakeStore(contactSchema(t)))
	ctx := context.Background()

	_, err := im.Import(ctx, nil, ImportOptions{})
	assert.True(t, errors.Is(err, ErrEmptyInput))
	assert.Equal(t, "FILE003", MapError(err).Code)

	_, err = NewImporter(contactSchema(t), nil, Options{Encodings: []string{"utf-8"}}).Import(ctx, []byte{0xff, 0xfe, 'a'}, ImportOptions{})
	var decErr *DecodeError
	assert.True(t, errors.As(err, &decErr))

	_, err = NewImporter(contactSchema(t), nil, Options{}).Import(ctx, []byte(contactsCSV), ImportOptions{})
	assert.ErrorContains(t, err, "no record store configured")
}

func TestPreviewBatch(t *testing.T) {
	store := newFakeStore(contactSchema(t))
	store.seed(map[CanonicalField]string{fEmail: "grace@example.com", fGiven: "Grace", fFamily: "Hopper", fOrg: "Navy"})
	im := newTestImporter(t, store)

	p, err := im.Prepare(context.Background(), []byte(contactsCSV))
	require.NoError(t, err)

	res, err := im.PreviewBatch(context.Background(), p, 10, ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, p.ID, res.BatchID)
	assert.True(t, res.CanImport)
	assert.Equal(t, PreviewSummary{
		TotalRows:     5,
		SampledRows:   5,
		ValidRows:     3,
		InvalidRows:   1,
		BlankRows:     1,
		NewRows:       1,
		DuplicateRows: 2,
	}, res.Summary)
	require.Len(t, res.Rows, 5)
	assert.True(t, res.Rows[4].Verdict.WithinFile)
	assert.Equal(t, 0, store.createCalls(), "preview never writes")
}

func TestPreviewLimitsRows(t *testing.T) {
	im := newTestImporter(t, newFakeStore(contactSchema(t)))

	res, err := im.Preview(context.Background(), []byte(contactsCSV), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.SampledRows)
	assert.Equal(t, 5, res.Summary.TotalRows)
	assert.Len(t, res.Rows, 2)
}

func TestPreviewMissingMandatory(t *testing.T) {
	im := newTestImporter(t, nil)

	res, err := im.Preview(context.Background(), []byte("Phone\n+44 20 7946 0958\n"), 0)
	require.NoError(t, err)
	assert.False(t, res.CanImport)
	assert.Equal(t, []CanonicalField{fFamily, fEmail}, res.Mapping.MissingMandatory)
}
