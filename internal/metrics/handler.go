package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON view of the registry served at /metrics/summary.
type Summary struct {
	HTTP    httpSummary   `json:"http"`
	Invites inviteSummary `json:"invites"`
	Audit   auditSummary  `json:"audit"`
	DB      dbSummary     `json:"db"`
	Server  serverSummary `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type inviteSummary struct {
	Sent       float64 `json:"sent"`
	Failed     float64 `json:"failed"`
	Rejections float64 `json:"rejections"`
}

type auditSummary struct {
	Mutations     float64 `json:"mutations"`
	Flushes       float64 `json:"flushes"`
	FlushErrors   float64 `json:"flushErrors"`
	EventsWritten float64 `json:"eventsWritten"`
}

type dbSummary struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
	MaxConns      float64 `json:"maxConns"`
}

type serverSummary struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Handler serves the current Summary as JSON.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Summarize()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(s)
	}
}

// Summarize gathers the registry into a Summary.
func (m *Metrics) Summarize() (*Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	requests := fam["mergeflow_http_requests_total"]
	latency := fam["mergeflow_http_request_duration_seconds"]
	started := gaugeValue(fam["mergeflow_server_start_time_seconds"])

	return &Summary{
		HTTP: httpSummary{
			TotalRequests: sumCounter(requests, nil),
			ErrorRate:     errorRate(requests),
			P50Latency:    histogramPercentile(latency, 0.50),
			P95Latency:    histogramPercentile(latency, 0.95),
			P99Latency:    histogramPercentile(latency, 0.99),
		},
		Invites: inviteSummary{
			Sent:       sumCounter(fam["mergeflow_invites_total"], label("result", "sent")),
			Failed:     sumCounter(fam["mergeflow_invites_total"], label("result", "failed")),
			Rejections: sumCounter(fam["mergeflow_invite_rejections_total"], nil),
		},
		Audit: auditSummary{
			Mutations:     sumCounter(fam["mergeflow_mutations_total"], nil),
			Flushes:       sumCounter(fam["mergeflow_audit_flushes_total"], nil),
			FlushErrors:   sumCounter(fam["mergeflow_audit_flushes_total"], label("status", "error")),
			EventsWritten: sumCounter(fam["mergeflow_audit_events_written_total"], nil),
		},
		DB: dbSummary{
			TotalConns:    gaugeValue(fam["mergeflow_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["mergeflow_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["mergeflow_db_pool_acquired_conns"]),
			MaxConns:      gaugeValue(fam["mergeflow_db_pool_max_conns"]),
		},
		Server: serverSummary{
			StartTime:     started,
			UptimeSeconds: float64(time.Now().Unix()) - started,
		},
	}, nil
}

// label returns a filter matching metrics that carry name=value.
func label(name, value string) func(*dto.Metric) bool {
	return func(m *dto.Metric) bool {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				return true
			}
		}
		return false
	}
}

func sumCounter(f *dto.MetricFamily, keep func(*dto.Metric) bool) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil && (keep == nil || keep(m)) {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil || len(f.GetMetric()) == 0 {
		return 0
	}
	return f.GetMetric()[0].GetGauge().GetValue()
}

// errorRate is the share of requests answered with a 4xx or 5xx status.
func errorRate(f *dto.MetricFamily) float64 {
	total := sumCounter(f, nil)
	if total == 0 {
		return 0
	}
	failed := sumCounter(f, func(m *dto.Metric) bool {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" && lp.GetValue() >= "400" {
				return true
			}
		}
		return false
	})
	return failed / total
}

// histogramPercentile estimates quantile q over every series of f by linear
// interpolation inside the bucket holding the rank.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}
	var count uint64
	cumulative := make(map[float64]uint64)
	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		count += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if count == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(cumulative))
	for ub := range cumulative {
		if !math.IsInf(ub, 1) {
			bounds = append(bounds, ub)
		}
	}
	sort.Float64s(bounds)

	rank := q * float64(count)
	var prevBound float64
	var prevCount uint64
	for _, ub := range bounds {
		c := cumulative[ub]
		if float64(c) >= rank {
			inBucket := c - prevCount
			if inBucket == 0 {
				return ub
			}
			return prevBound + (rank-float64(prevCount))/float64(inBucket)*(ub-prevBound)
		}
		prevBound, prevCount = ub, c
	}
	if len(bounds) > 0 {
		return bounds[len(bounds)-1]
	}
	return 0
}
