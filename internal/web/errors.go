package web

// errors.go turns pipeline errors into JSON responses.
//
// The technical error is logged with the request ID; the client gets the
// user message from core.MapError.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/JonMunkholm/crmingest/internal/core"
	"github.com/JonMunkholm/crmingest/internal/logging"
)

var (
	errNoFile        = eris.New("no file provided")
	errFileTooLarge  = eris.New("file too large")
	errBatchNotFound = eris.New("batch not found or expired")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	// Details carries the rejected report for mapping errors.
	Details any `json:"details,omitempty"`
}

// respondError logs err and writes its user-facing form with statusCode.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	respondErrorDetails(w, r, err, statusCode, nil)
}

func respondErrorDetails(w http.ResponseWriter, r *http.Request, err error, statusCode int, details any) {
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
		zap.Int("status", statusCode),
		zap.String("code", userMsg.Code),
		zap.Error(err),
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error("request error", fields...)
	} else {
		log.Warn("request error", fields...)
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error:   err.Error(),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Details: details,
	})
}

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	var decErr *core.DecodeError
	var schemaErr *core.SchemaError
	switch {
	case errors.As(err, &decErr), errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	code := core.MapError(err).Code
	switch {
	case code == "MAP003", code == "IMP002":
		return http.StatusNotFound
	case code == "FILE001":
		return http.StatusRequestEntityTooLarge
	case code == "IMP001", code == "RATE001":
		return http.StatusTooManyRequests
	case strings.HasPrefix(code, "FILE"), strings.HasPrefix(code, "MAP"):
		return http.StatusBadRequest
	case strings.HasPrefix(code, "DB"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
