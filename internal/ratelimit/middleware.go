package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
)

// KeyFunc picks the bucket for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote host. Run chi's RealIP middleware first
// when behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces limiter per key. It always sets the X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset (unix seconds) headers and
// answers 429 with the JSON error envelope when the bucket is empty.
func Middleware(limiter *Limiter, key KeyFunc, onReject ...func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" || limiter.rate <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			q := limiter.Status(k)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(q.ResetAt.Unix(), 10))

			if !limiter.Allow(k) {
				for _, fn := range onReject {
					fn()
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":    "rate_limited",
						"message": "Too many invitations. Try again later.",
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
