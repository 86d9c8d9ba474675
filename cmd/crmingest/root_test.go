package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "First Name,Last Name,Email\n" +
	"Ada,Lovelace,ada@example.com\n" +
	"Alan,Turing,not-an-email\n" +
	",,\n" +
	"Grace,Hopper,grace@example.com\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	t.Setenv("CRMINGEST_LOG_LEVEL", "error")

	configPath, schemaKey, jsonOutput = "", "", false
	previewRows, importSource, importTemplate, importMapping = 0, "", "", nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"preview", "import", "diagnose", "migrate", "schemas"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("schema"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
	assert.NotNil(t, importCmd.Flags().Lookup("source"))
	assert.NotNil(t, importCmd.Flags().Lookup("map"))
	assert.NotNil(t, previewCmd.Flags().Lookup("rows"))
	assert.NotNil(t, previewCmd.Flags().Lookup("template"))
}

func TestSchemasCommand(t *testing.T) {
	out, err := execute(t, "schemas")
	require.NoError(t, err)
	assert.Contains(t, out, "customer")
	assert.Contains(t, out, "email*")
}

func TestImportCommand(t *testing.T) {
	path := writeCSV(t, sampleCSV)

	out, err := execute(t, "import", path, "--json")
	require.NoError(t, err)

	var report struct {
		Phase  string `json:"phase"`
		Counts struct {
			Attempted    int `json:"attempted"`
			Succeeded    int `json:"succeeded"`
			Failed       int `json:"failed"`
			SkippedBlank int `json:"skipped_blank"`
		} `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "reported", report.Phase)
	assert.Equal(t, 3, report.Counts.Attempted)
	assert.Equal(t, 2, report.Counts.Succeeded)
	assert.Equal(t, 1, report.Counts.Failed)
	assert.Equal(t, 1, report.Counts.SkippedBlank)
}

func TestImportCommandText(t *testing.T) {
	path := writeCSV(t, sampleCSV)

	out, err := execute(t, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded    2")
	assert.Contains(t, out, "failed       1")
	assert.Contains(t, out, "Errors")
}

func TestImportCommandMissingMandatory(t *testing.T) {
	path := writeCSV(t, "First Name,Phone\nAda,+44 20 7946 0958\n")

	out, err := execute(t, "import", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mandatory fields")
	assert.Contains(t, out, "missing mandatory field:")
}

func TestImportCommandMappingOverride(t *testing.T) {
	path := writeCSV(t, "First,Surname,Contact Address\nAda,Lovelace,ada@example.com\n")

	out, err := execute(t, "import", path,
		"--map", "First=given_name",
		"--map", "Surname=family_name",
		"--map", "Contact Address=email",
		"--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"succeeded": 1`)
}

func TestPreviewCommand(t *testing.T) {
	path := writeCSV(t, sampleCSV)

	out, err := execute(t, "preview", path, "--rows", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Preview 2 of 4 rows")
	assert.Contains(t, out, "Ready to import")
}

func TestDiagnoseCommand(t *testing.T) {
	path := writeCSV(t, "name;mail\nAda Lovelace;ada@example.com\n")

	out, err := execute(t, "diagnose", path, "--json")
	require.NoError(t, err)

	var d struct {
		Decoded bool `json:"decoded"`
		Dialect struct {
			Delimiter string `json:"delimiter"`
		} `json:"dialect"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.True(t, d.Decoded)
	assert.Equal(t, ";", d.Dialect.Delimiter)
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("CRMINGEST_STORE_DRIVER", "sqlite")
	t.Setenv("CRMINGEST_STORE_SQLITE_PATH", filepath.Join(t.TempDir(), "cli.db"))

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, `store "sqlite" migrated`)
}

func TestMissingFile(t *testing.T) {
	_, err := execute(t, "import", filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestArgsRequired(t *testing.T) {
	_, err := execute(t, "preview")
	require.Error(t, err)
}
