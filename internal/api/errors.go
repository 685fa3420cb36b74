package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/invite"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v any) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// writeServiceError maps a service error onto a status code. Anything that
// is not a domain error is logged, reported to Sentry and hidden from the
// client behind fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", domain.Message(err, "invalid request"))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusBadRequest, "conflict", domain.Message(err, "conflict"))
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", domain.Message(err, "forbidden"))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", domain.Message(err, "not found"))
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", domain.Message(err, "too many requests"))
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", domain.Message(err, "service unavailable"))
	default:
		reportError(r, err)
		if errors.Is(err, invite.ErrSendFailed) {
			fallback = invite.ErrSendFailed.Error()
		}
		writeError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

func reportError(r *http.Request, err error) {
	reqID := chimw.GetReqID(r.Context())
	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", reqID,
		"error", err,
	)
	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", reqID)
		scope.SetRequest(r)
		hub.CaptureException(err)
	})
}
