package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HeaderAdminKey carries the admin key when no bearer token is sent.
const HeaderAdminKey = "X-Admin-Key"

// AdminMiddleware rejects requests without a valid admin key with 401. It
// passes everything through when the guard is disabled.
func AdminMiddleware(g *Guard, onFailure ...func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			key := extractBearerToken(r)
			if key == "" {
				key = strings.TrimSpace(r.Header.Get(HeaderAdminKey))
			}
			if key == "" {
				writeUnauthorized(w, "missing admin key")
				return
			}
			if !g.Check(key) {
				for _, fn := range onFailure {
					fn()
				}
				writeUnauthorized(w, "invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: "unauthorized", Message: message},
	})
}
