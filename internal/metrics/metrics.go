// Package metrics owns the Prometheus registry of the service and the
// collectors the other packages report into.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alecgard/mergeflow/internal/audit"
)

// Metrics holds all collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	InvitesTotal          *prometheus.CounterVec
	InviteRejectionsTotal *prometheus.CounterVec

	MutationsTotal *prometheus.CounterVec

	AuditFlushesTotal *prometheus.CounterVec
	AuditEventsTotal  prometheus.Counter

	ServerStartTime prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mergeflow_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mergeflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		InvitesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mergeflow_invites_total",
			Help: "Invitation emails by delivery result.",
		}, []string{"result"}),

		InviteRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mergeflow_invite_rejections_total",
			Help: "Invitation sends refused by the rate limiter.",
		}, []string{"scope"}),

		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mergeflow_mutations_total",
			Help: "Committed mutations by audit action.",
		}, []string{"action"}),

		AuditFlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mergeflow_audit_flushes_total",
			Help: "Audit collector flushes by status.",
		}, []string{"status"}),

		AuditEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mergeflow_audit_events_written_total",
			Help: "Audit events written to the store.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mergeflow_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InvitesTotal,
		m.InviteRejectionsTotal,
		m.MutationsTotal,
		m.AuditFlushesTotal,
		m.AuditEventsTotal,
		m.ServerStartTime,
	)
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector exposes pool gauges read from statFunc.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveInvite counts one invitation attempt. It satisfies invite.Observer.
func (m *Metrics) ObserveInvite(ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.InvitesTotal.WithLabelValues(result).Inc()
}

// IncInviteRejection counts a throttled send. scope is "team" or "client".
func (m *Metrics) IncInviteRejection(scope string) {
	m.InviteRejectionsTotal.WithLabelValues(scope).Inc()
}

// ObserveAuditFlush matches audit.Collector.OnFlush.
func (m *Metrics) ObserveAuditFlush(n int, err error) {
	if err != nil {
		m.AuditFlushesTotal.WithLabelValues("error").Inc()
		return
	}
	m.AuditFlushesTotal.WithLabelValues("ok").Inc()
	m.AuditEventsTotal.Add(float64(n))
}

// Recorder counts every event by action before handing it to next.
func (m *Metrics) Recorder(next audit.Recorder) audit.Recorder {
	return countingRecorder{m: m, next: next}
}

type countingRecorder struct {
	m    *Metrics
	next audit.Recorder
}

func (r countingRecorder) Record(ev audit.Event) {
	r.m.MutationsTotal.WithLabelValues(ev.Action).Inc()
	r.next.Record(ev)
}
