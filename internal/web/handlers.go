package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/JonMunkholm/crmingest/internal/core"
	"github.com/JonMunkholm/crmingest/internal/logging"
)

const (
	// maxPreviewRows caps the rows query parameter.
	maxPreviewRows = 1000

	// multipartOverhead is the body allowance beyond the file itself.
	multipartOverhead = 1 << 20

	// maxMemory is how much of a multipart form is held in memory.
	maxMemory = 32 << 20
)

// SchemaInfo describes a served schema.
type SchemaInfo struct {
	Key       string      `json:"key"`
	Label     string      `json:"label"`
	Default   bool        `json:"default"`
	Fields    []FieldInfo `json:"fields"`
	Mandatory []string    `json:"mandatory"`
}

// FieldInfo describes one canonical field.
type FieldInfo struct {
	Name      string   `json:"name"`
	Label     string   `json:"label,omitempty"`
	Type      string   `json:"type"`
	Mandatory bool     `json:"mandatory"`
	Aliases   []string `json:"aliases,omitempty"`
	Choices   []string `json:"choices,omitempty"`
	Default   string   `json:"default,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string             `json:"status"`
	Store   string             `json:"store"`
	Imports core.LimiterStatus `json:"imports"`
	Batches int                `json:"cached_batches"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Store:   "none",
		Imports: s.limiter.Status(),
		Batches: s.batches.len(),
	}
	status := http.StatusOK
	if s.health != nil {
		resp.Store = "ok"
		if err := s.health.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Warn("health: store ping failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Store = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	out := make([]SchemaInfo, 0, len(s.importers))
	for _, key := range s.schemaKeys() {
		schema := s.importers[key].Schema()
		info := SchemaInfo{
			Key:       schema.Key,
			Label:     schema.Label,
			Default:   schema.Key == s.cfg.Import.Schema,
			Fields:    []FieldInfo{},
			Mandatory: []string{},
		}
		for _, f := range schema.Fields() {
			info.Fields = append(info.Fields, FieldInfo{
				Name:      string(f.Name),
				Label:     f.Label,
				Type:      f.Type.String(),
				Mandatory: f.Mandatory,
				Aliases:   f.Aliases,
				Choices:   f.Choices,
				Default:   f.Default,
			})
		}
		for _, f := range schema.Mandatory() {
			info.Mandatory = append(info.Mandatory, string(f))
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePreview parses an upload and returns the dry run plus a batch_id
// that /api/import accepts instead of the file.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	im, err := s.importerFor(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	raw, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	opts, err := importOptions(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	ctx, cancel := s.importContext(r)
	defer cancel()

	p, err := im.Prepare(ctx, raw)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	result, err := im.PreviewBatch(ctx, p, previewRows(r, s.cfg.Import.PreviewRows), opts)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	s.batches.put(im.Schema().Key, p)
	writeJSON(w, http.StatusOK, result)
}

// handleImport imports an uploaded file, or a batch cached by a preview.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	im, err := s.importerFor(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer s.limiter.Release()

	ctx, cancel := s.importContext(r)
	defer cancel()

	var p *core.Prepared
	if id := r.URL.Query().Get("batch_id"); id != "" {
		cached, ok := s.batches.get(id, im.Schema().Key)
		if !ok {
			respondError(w, r, eris.Wrapf(errBatchNotFound, "batch %s", id), http.StatusNotFound)
			return
		}
		p = cached
	} else {
		raw, err := s.readUpload(w, r)
		if err != nil {
			respondError(w, r, err, statusFor(err))
			return
		}
		if p, err = im.Prepare(ctx, raw); err != nil {
			respondError(w, r, err, statusFor(err))
			return
		}
	}

	opts, err := importOptions(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	report, err := im.ImportBatch(ctx, p, opts)
	if err != nil {
		var schemaErr *core.SchemaError
		if errors.As(err, &schemaErr) && report != nil {
			respondErrorDetails(w, r, err, http.StatusUnprocessableEntity, report)
			return
		}
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("import finished",
		zap.String("import_id", report.ImportID),
		zap.String("batch_id", p.ID),
		zap.Int("succeeded", report.Counts.Succeeded),
		zap.Int("failed", report.Counts.Failed),
	)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	im, err := s.importerFor(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	raw, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	ctx, cancel := s.importContext(r)
	defer cancel()

	d, err := im.Diagnose(ctx, raw)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDiscardBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")
	if !s.batches.remove(id) {
		respondError(w, r, eris.Wrapf(errBatchNotFound, "batch %s", id), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// importerFor picks the importer named by ?schema=, or the default one.
func (s *Server) importerFor(r *http.Request) (*core.Importer, error) {
	key := r.URL.Query().Get("schema")
	if key == "" {
		key = s.cfg.Import.Schema
	}
	im, ok := s.importers[key]
	if !ok {
		return nil, eris.Errorf("unknown schema %q", key)
	}
	return im, nil
}

// readUpload reads the multipart "file" field, bounded by import.max_file_size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errFileTooLarge
		}
		return nil, eris.Wrap(errNoFile, err.Error())
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	defer file.Close()

	if header.Size > maxSize {
		return nil, errFileTooLarge
	}

	raw, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, eris.Wrap(err, "upload: read file")
	}
	if int64(len(raw)) > maxSize {
		return nil, errFileTooLarge
	}
	return raw, nil
}

// importOptions reads the optional mapping, template and source parameters.
func importOptions(r *http.Request) (core.ImportOptions, error) {
	opts := core.ImportOptions{
		Template:         r.FormValue("template"),
		DefaultSourceTag: r.FormValue("source"),
	}
	if raw := r.FormValue("mapping"); raw != "" {
		var mapping map[string]core.CanonicalField
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			return opts, eris.Wrap(err, "invalid mapping json")
		}
		opts.MappingOverride = mapping
	}
	return opts, nil
}

func previewRows(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("rows"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxPreviewRows)
}
