// Package application wires configuration, schemas, stores and importers
// together for the server and the CLI.
package application

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/JonMunkholm/crmingest/internal/config"
	"github.com/JonMunkholm/crmingest/internal/core"
	_ "github.com/JonMunkholm/crmingest/internal/core/schemas" // register built-in schemas
	"github.com/JonMunkholm/crmingest/internal/store"
)

// App holds one importer and store per served schema.
type App struct {
	Config    *config.Config
	Templates *core.TemplateSet

	importers map[string]*core.Importer
	stores    map[string]store.Store
	keys      []string
	log       *zap.Logger
}

// New registers the configured schema file, loads mapping templates and
// opens a store for every schema. Schemas are the default import.schema
// plus the one from import.schema_file, if any.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config:    cfg,
		importers: make(map[string]*core.Importer),
		stores:    make(map[string]store.Store),
		log:       zap.L().Named("app"),
	}

	keys := []string{cfg.Import.Schema}
	if cfg.Import.SchemaFile != "" {
		s, err := core.LoadSchemaFile(cfg.Import.SchemaFile)
		if err != nil {
			return nil, err
		}
		if _, exists := core.GetSchema(s.Key); !exists {
			core.Register(s)
		}
		if s.Key != cfg.Import.Schema {
			keys = append(keys, s.Key)
		}
	}

	templates, err := core.LoadTemplates(cfg.Import.TemplatesFile)
	if err != nil {
		return nil, err
	}
	a.Templates = templates

	for _, key := range keys {
		schema, ok := core.GetSchema(key)
		if !ok {
			a.Close() //nolint:errcheck
			return nil, eris.Errorf("unknown schema %q", key)
		}
		st, err := store.Open(ctx, cfg.Store, schema)
		if err != nil {
			a.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "open store for %s", key)
		}
		a.stores[key] = st
		a.importers[key] = core.NewImporter(schema, st, core.Options{
			SampleSize:    cfg.Import.SampleSize,
			BatchSize:     cfg.Import.BatchSize,
			Workers:       cfg.Import.Workers,
			Encodings:     cfg.Import.Encodings,
			DefaultSource: cfg.Import.DefaultSource,
			Templates:     templates,
			Logger:        zap.L(),
		})
		a.keys = append(a.keys, key)
	}

	a.log.Info("application ready",
		zap.Strings("schemas", a.keys),
		zap.String("store", cfg.Store.Driver),
		zap.Int("templates", templates.Len()),
	)
	return a, nil
}

// Importer returns the importer for key; an empty key means the default.
func (a *App) Importer(key string) (*core.Importer, error) {
	if key == "" {
		key = a.Config.Import.Schema
	}
	im, ok := a.importers[key]
	if !ok {
		return nil, eris.Errorf("unknown schema %q", key)
	}
	return im, nil
}

// Importers returns every importer, default schema first.
func (a *App) Importers() []*core.Importer {
	out := make([]*core.Importer, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, a.importers[k])
	}
	return out
}

// Store returns the default schema's store.
func (a *App) Store() store.Store {
	return a.stores[a.Config.Import.Schema]
}

// Migrate runs every store's migration.
func (a *App) Migrate(ctx context.Context) error {
	for _, k := range a.keys {
		if err := a.stores[k].Migrate(ctx); err != nil {
			return eris.Wrapf(err, "migrate %s", k)
		}
	}
	return nil
}

// Close closes all stores.
func (a *App) Close() error {
	var first error
	for k, st := range a.stores {
		if err := st.Close(); err != nil && first == nil {
			first = eris.Wrapf(err, "close store for %s", k)
		}
	}
	return first
}
