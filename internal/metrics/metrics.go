package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on collector names.
type Metrics struct {
	registry *prometheus.Registry

	reconciles   *prometheus.CounterVec
	mutations    *prometheus.CounterVec
	gestures     *prometheus.CounterVec
	workspaces   prometheus.Gauge
	auditEvents  *prometheus.CounterVec
	authFailures *prometheus.CounterVec
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		reconciles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pullsheet_reconcile_total",
			Help: "Remote ledger writes by operation and result",
		}, []string{"op", "result"}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pullsheet_mutations_total",
			Help: "Ledger mutations by kind",
		}, []string{"kind"}),
		gestures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pullsheet_gestures_total",
			Help: "Press events by outcome",
		}, []string{"outcome"}),
		workspaces: f.NewGauge(prometheus.GaugeOpts{
			Name: "pullsheet_open_workspaces",
			Help: "Actors with a loaded ledger",
		}),
		auditEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pullsheet_audit_events_total",
			Help: "Audit log entries written by action",
		}, []string{"action"}),
		authFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pullsheet_auth_failures_total",
			Help: "Rejected requests by reason",
		}, []string{"reason"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pullsheet_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pullsheet_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveReconcile(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconciles.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveMutation(kind string) {
	m.mutations.WithLabelValues(kind).Inc()
}

// ObserveGesture counts a press as "started" or "ignored" when one was
// already in progress.
func (m *Metrics) ObserveGesture(outcome string) {
	m.gestures.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WorkspaceOpened() { m.workspaces.Inc() }
func (m *Metrics) WorkspaceClosed() { m.workspaces.Dec() }

func (m *Metrics) ObserveAudit(action string) {
	m.auditEvents.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveAuthFailure(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}
