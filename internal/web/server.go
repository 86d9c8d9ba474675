// Package web provides the HTTP API for previewing, importing and
// diagnosing CSV uploads.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/JonMunkholm/crmingest/internal/config"
	"github.com/JonMunkholm/crmingest/internal/core"
	mw "github.com/JonMunkholm/crmingest/internal/web/middleware"
)

// HealthChecker is the part of the record store /health needs.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the ingestion API.
type Server struct {
	cfg       *config.Config
	importers map[string]*core.Importer
	health    HealthChecker
	limiter   *core.ImportLimiter
	batches   *batchCache
	rate      *rateLimiter
	rateHeavy *rateLimiter
	router    *chi.Mux
	server    *http.Server
	log       *zap.Logger
}

// NewServer creates a server for the given importers, one per schema.
// health may be nil when no store is configured.
func NewServer(cfg *config.Config, importers []*core.Importer, health HealthChecker) *Server {
	s := &Server{
		cfg:       cfg,
		importers: make(map[string]*core.Importer, len(importers)),
		health:    health,
		limiter:   core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		batches:   newBatchCache(cfg.Import.BatchTTL),
		router:    chi.NewRouter(),
		log:       zap.L().Named("web"),
	}
	for _, im := range importers {
		s.importers[im.Schema().Key] = im
	}
	if cfg.Rate.Enabled {
		s.rate = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		if cfg.Rate.ImportLimit > 0 {
			s.rateHeavy = newRateLimiter(cfg.Rate.ImportLimit, time.Minute)
		}
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(mw.Metrics)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))
		if s.rate != nil {
			r.Use(s.rate.middleware)
		}

		r.With(s.requestTimeout).Get("/schemas", s.handleListSchemas)
		r.Route("/templates", func(r chi.Router) {
			r.Use(s.requestTimeout)
			r.Get("/", s.handleListTemplates)
			r.Get("/match", s.handleMatchTemplates)
			r.Get("/{name}", s.handleGetTemplate)
		})
		r.Delete("/batches/{batchID}", s.handleDiscardBatch)

		// Uploads run under import.timeout rather than the request timeout.
		r.Group(func(r chi.Router) {
			if s.rateHeavy != nil {
				r.Use(s.rateHeavy.middleware)
			}
			r.Post("/preview", s.handlePreview)
			r.Post("/import", s.handleImport)
			r.Post("/diagnose", s.handleDiagnose)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.log.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for running imports to finish
// and releases background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if drainErr := s.limiter.WaitForDrain(ctx); drainErr != nil && err == nil {
		err = eris.Wrap(drainErr, "web: wait for imports")
	}
	s.batches.close()
	if s.rate != nil {
		s.rate.close()
	}
	if s.rateHeavy != nil {
		s.rateHeavy.close()
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Limiter returns the import limiter.
func (s *Server) Limiter() *core.ImportLimiter {
	return s.limiter
}

// requestTimeout applies server.request_timeout when one is configured.
func (s *Server) requestTimeout(next http.Handler) http.Handler {
	if s.cfg.Server.RequestTimeout <= 0 {
		return next
	}
	return middleware.Timeout(s.cfg.Server.RequestTimeout)(next)
}

// importContext bounds an upload handler by import.timeout.
func (s *Server) importContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.Import.Timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
}

// schemaKeys returns the served schema keys in order.
func (s *Server) schemaKeys() []string {
	keys := make([]string, 0, len(s.importers))
	for k := range s.importers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("json encode error", zap.Error(err))
	}
}
