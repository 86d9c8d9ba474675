package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
)

var (
	errTemplateNotFound = eris.New("unknown mapping template")
	errNoHeaders        = eris.New("missing headers parameter")
)

// handleListTemplates returns the mapping templates usable with a schema.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	im, err := s.importerFor(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, im.Templates().List(im.Schema().Key))
}

// handleMatchTemplates suggests templates for a comma separated header list.
func (s *Server) handleMatchTemplates(w http.ResponseWriter, r *http.Request) {
	im, err := s.importerFor(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	headersStr := r.URL.Query().Get("headers")
	if headersStr == "" {
		respondError(w, r, errNoHeaders, http.StatusBadRequest)
		return
	}

	headers := strings.Split(headersStr, ",")
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	matches := im.Templates().Match(im.Schema().Key, headers)
	if matches == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// handleGetTemplate returns a single mapping template by name.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	im, err := s.importerFor(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	name := chi.URLParam(r, "name")
	tmpl, ok := im.Templates().Get(name)
	if !ok || (tmpl.Schema != "" && tmpl.Schema != im.Schema().Key) {
		respondError(w, r, eris.Wrapf(errTemplateNotFound, "%q", name), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}
