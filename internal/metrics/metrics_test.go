package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/alecgard/mergeflow/internal/audit"
)

type sink struct{ events []audit.Event }

func (s *sink) Record(ev audit.Event) { s.events = append(s.events, ev) }

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		t.Fatal(err)
	}
	return pb.GetCounter().GetValue()
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/teams/{teamId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/api/teams/a", "/api/teams/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := counterValue(t, m.HTTPRequestsTotal.WithLabelValues("GET", "/api/teams/{teamId}", "404"))
	if got != 2 {
		t.Fatalf("expected 2 requests on the route pattern, got %v", got)
	}
}

func TestSummary(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/health", 200, 10*time.Millisecond)
	m.ObserveHTTP("POST", "/api/member", 400, 20*time.Millisecond)
	m.ObserveInvite(true)
	m.ObserveInvite(true)
	m.ObserveInvite(false)
	m.IncInviteRejection("client")
	m.ObserveAuditFlush(3, nil)
	m.ObserveAuditFlush(2, errors.New("db down"))
	m.RegisterDBPoolCollector(func() PoolStats { return PoolStats{Total: 4, Idle: 3, Acquired: 1, Max: 10} })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var s Summary
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		got, want float64
	}{
		{"requests", s.HTTP.TotalRequests, 2},
		{"error rate", s.HTTP.ErrorRate, 0.5},
		{"invites sent", s.Invites.Sent, 2},
		{"invites failed", s.Invites.Failed, 1},
		{"rejections", s.Invites.Rejections, 1},
		{"flushes", s.Audit.Flushes, 2},
		{"flush errors", s.Audit.FlushErrors, 1},
		{"events written", s.Audit.EventsWritten, 3},
		{"pool total", s.DB.TotalConns, 4},
		{"pool max", s.DB.MaxConns, 10},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if s.HTTP.P50Latency <= 0 {
		t.Errorf("p50 latency should be positive, got %v", s.HTTP.P50Latency)
	}
}

func TestRecorderCountsActions(t *testing.T) {
	m := New()
	next := &sink{}
	rec := m.Recorder(next)

	rec.Record(audit.Event{Action: audit.MemberCreated})
	rec.Record(audit.Event{Action: audit.MemberCreated})
	rec.Record(audit.Event{Action: audit.GroupDeleted})

	if len(next.events) != 3 {
		t.Fatalf("events not forwarded: %d", len(next.events))
	}
	if got := counterValue(t, m.MutationsTotal.WithLabelValues(audit.MemberCreated)); got != 2 {
		t.Fatalf("member.created = %v", got)
	}
}

func TestHistogramPercentileEmpty(t *testing.T) {
	if got := histogramPercentile(nil, 0.5); got != 0 {
		t.Fatalf("nil family: %v", got)
	}
}
