package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
)

// Malformed ids in the path or query are lookups of something that cannot
// exist, so they report notFound. Body ids are checked by validate tags.

func pathID(r *http.Request, key string, notFound error) (id.ID, error) {
	v, err := id.Parse(chi.URLParam(r, key))
	if err != nil {
		return "", notFound
	}
	return v, nil
}

// queryID reads a required id from the query string.
func queryID(r *http.Request, key string, notFound error) (id.ID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return "", domain.Validationf("%s is required", key)
	}
	v, err := id.Parse(raw)
	if err != nil {
		return "", notFound
	}
	return v, nil
}

// optionalQueryID returns the zero id when key is absent.
func optionalQueryID(r *http.Request, key string, notFound error) (id.ID, error) {
	if r.URL.Query().Get(key) == "" {
		return "", nil
	}
	return queryID(r, key, notFound)
}

// queryIDs accepts repeated keys and comma-separated values.
func queryIDs(r *http.Request, key string) ([]id.ID, error) {
	var raw []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				raw = append(raw, part)
			}
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	ids, err := id.ParseAll(raw)
	if err != nil {
		return nil, domain.Validationf("%s must be valid ids", key)
	}
	return ids, nil
}

func queryLimit(r *http.Request, def, max int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	l, err := strconv.Atoi(s)
	if err != nil || l < 1 {
		return 0, domain.Validationf("limit must be a positive integer")
	}
	return min(l, max), nil
}

// bodyID converts an id already checked by a uuid validate tag.
func bodyID(s string) id.ID {
	if s == "" {
		return ""
	}
	v, err := id.Parse(s)
	if err != nil {
		return ""
	}
	return v
}

func bodyIDs(ss []string) []id.ID {
	out := make([]id.ID, 0, len(ss))
	for _, s := range ss {
		out = append(out, bodyID(s))
	}
	return out
}
