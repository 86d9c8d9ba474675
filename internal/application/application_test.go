package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JonMunkholm/crmingest/internal/config"
	"github.com/JonMunkholm/crmingest/internal/core"
	"github.com/JonMunkholm/crmingest/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func baseConfig() *config.Config {
	return &config.Config{
		Store: store.Config{Driver: store.DriverMemory},
		Import: config.ImportConfig{
			Schema: "customer", SampleSize: 1000, BatchSize: 100, Workers: 2,
			MaxFileSize: 1 << 20, MaxConcurrent: 1, MaxWaitTime: time.Second, Timeout: time.Minute,
		},
	}
}

func TestNew_DefaultSchema(t *testing.T) {
	app, err := New(context.Background(), baseConfig())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() }) //nolint:errcheck

	im, err := app.Importer("")
	require.NoError(t, err)
	assert.Equal(t, "customer", im.Schema().Key)
	assert.Len(t, app.Importers(), 1)
	assert.NotNil(t, app.Store())
	assert.Equal(t, 0, app.Templates.Len())
	require.NoError(t, app.Migrate(context.Background()))

	_, err = app.Importer("vendor")
	assert.Error(t, err)
}

func TestNew_SchemaFileAndTemplates(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "partner.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`
key: partner_app_test
label: Partners
identifier: email
fields:
  - name: email
    type: email
    mandatory: true
    aliases: [mail]
  - name: company
    type: text
`), 0o600))
	templatesPath := filepath.Join(dir, "templates.yaml")
	require.NoError(t, os.WriteFile(templatesPath, []byte(`
templates:
  - name: crm-export
    schema: partner_app_test
    headers: [Mail, Firm]
    mapping:
      Mail: email
      Firm: company
`), 0o600))

	cfg := baseConfig()
	cfg.Import.SchemaFile = schemaPath
	cfg.Import.TemplatesFile = templatesPath
	cfg.Store = store.Config{Driver: store.DriverSQLite, SQLitePath: filepath.Join(dir, "records.db")}

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() }) //nolint:errcheck

	assert.Len(t, app.Importers(), 2)
	assert.Equal(t, 1, app.Templates.Len())

	im, err := app.Importer("partner_app_test")
	require.NoError(t, err)
	report, err := im.Import(context.Background(), []byte("Mail,Firm\nada@example.com,Analytical Engines\n"),
		core.ImportOptions{Template: "crm-export"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Succeeded)
}

func TestNew_UnknownSchema(t *testing.T) {
	cfg := baseConfig()
	cfg.Import.Schema = "nope"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
