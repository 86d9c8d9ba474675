// Package logging configures the process-wide zap logger.
//
// It integrates with chi's RequestID middleware so every log entry written
// while serving a request carries its request_id.
package logging

import (
	"context"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Setup builds a logger for level and format and installs it as zap's
// global logger. Format "console" gives the human-readable development
// encoder; anything else logs JSON.
func Setup(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, eris.Wrap(err, "logging: parse level")
	}
	cfg.Level.SetLevel(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "logging: build logger")
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// FromContext returns the global logger, tagged with the chi request ID
// when ctx carries one.
//
//	func handleImport(w http.ResponseWriter, r *http.Request) {
//	    log := logging.FromContext(r.Context())
//	    log.Info("import started", zap.String("schema", key))
//	}
func FromContext(ctx context.Context) *zap.Logger {
	logger := zap.L()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With(zap.String("request_id", reqID))
	}
	return logger
}

// WithFields returns a request-scoped logger with additional fields, for
// operation loggers that carry the same context through several steps.
func WithFields(ctx context.Context, fields ...zap.Field) *zap.Logger {
	return FromContext(ctx).With(fields...)
}
