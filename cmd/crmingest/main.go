package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JonMunkholm/crmingest/internal/application"
	"github.com/JonMunkholm/crmingest/internal/config"
	"github.com/JonMunkholm/crmingest/internal/core"
	"github.com/JonMunkholm/crmingest/internal/logging"
)

var (
	cfg *config.Config

	configPath string
	schemaKey  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "crmingest",
	Short: "Import customer CSV files",
	Long: "Detects the encoding and delimiter of a CSV export, maps its headers onto a schema, " +
		"validates and normalizes every row and imports it without creating duplicates.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = c

		if _, err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./crmingest.yaml)")
	rootCmd.PersistentFlags().StringVar(&schemaKey, "schema", "", "schema to import into (default import.schema)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// openApp builds the application from the loaded config.
func openApp(cmd *cobra.Command) (*application.App, *core.Importer, error) {
	app, err := application.New(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	im, err := app.Importer(schemaKey)
	if err != nil {
		app.Close() //nolint:errcheck
		return nil, nil, err
	}
	return app, im, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		red := color.New(color.FgRed, color.Bold).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %s\n", red("Error:"), core.FormatUserError(err))
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}
}
