package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmingest/internal/core"
)

var (
	previewRows int

	importSource   string
	importTemplate string
	importMapping  map[string]string
)

var previewCmd = &cobra.Command{
	Use:   "preview FILE",
	Short: "Show how a file would be imported without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		app, im, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close() //nolint:errcheck

		p, err := im.Prepare(cmd.Context(), raw)
		if err != nil {
			return err
		}
		res, err := im.PreviewBatch(cmd.Context(), p, previewRows, importOptions())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, res)
		}
		renderPreview(cmd.OutOrStdout(), res)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a CSV file into the record store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		raw, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		app, im, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close() //nolint:errcheck

		report, err := im.Import(ctx, raw, importOptions())
		var schemaErr *core.SchemaError
		if err != nil && !(errors.As(err, &schemaErr) && report != nil) {
			return err
		}
		if jsonOutput {
			if perr := printJSON(cmd, report); perr != nil {
				return perr
			}
		} else {
			renderReport(cmd.OutOrStdout(), report)
		}
		return err
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose FILE",
	Short: "Explain what is wrong with a file that will not import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		app, im, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close() //nolint:errcheck

		d, err := im.Diagnose(cmd.Context(), raw)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, d)
		}
		renderDiagnosis(cmd.OutOrStdout(), d)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the records table in the configured store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close() //nolint:errcheck

		if err := app.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "store %q migrated\n", cfg.Store.Driver)
		return nil
	},
}

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List the registered schemas and their fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		all := core.Schemas()
		if jsonOutput {
			type field struct {
				Name      core.CanonicalField `json:"name"`
				Type      core.FieldType      `json:"type"`
				Mandatory bool                `json:"mandatory"`
				Aliases   []string            `json:"aliases,omitempty"`
			}
			out := make(map[string][]field, len(all))
			for _, s := range all {
				for _, f := range s.Fields() {
					out[s.Key] = append(out[s.Key], field{f.Name, f.Type, f.Mandatory, f.Aliases})
				}
			}
			return printJSON(cmd, out)
		}
		renderSchemas(cmd.OutOrStdout(), all)
		return nil
	},
}

func init() {
	previewCmd.Flags().IntVar(&previewRows, "rows", core.DefaultPreviewRows, "number of rows to preview")

	for _, c := range []*cobra.Command{previewCmd, importCmd} {
		c.Flags().StringToStringVar(&importMapping, "map", nil, "header=field mapping override (repeatable)")
		c.Flags().StringVar(&importTemplate, "template", "", "saved mapping template to apply")
	}
	importCmd.Flags().StringVar(&importSource, "source", "", "source tag for rows without one")

	rootCmd.AddCommand(previewCmd, importCmd, diagnoseCmd, migrateCmd, schemasCmd)
}

func importOptions() core.ImportOptions {
	opts := core.ImportOptions{
		Template:         importTemplate,
		DefaultSourceTag: importSource,
	}
	if len(importMapping) > 0 {
		opts.MappingOverride = make(map[string]core.CanonicalField, len(importMapping))
		for header, field := range importMapping {
			opts.MappingOverride[header] = core.CanonicalField(field)
		}
	}
	return opts
}

// readInput reads path, or standard input when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		return raw, eris.Wrap(err, "read stdin")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return raw, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}
