package observability

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

const namespace = "capacity"

// Metrics owns a private prometheus registry. Every method is safe on a nil receiver so
// components can run without metrics wired in.
type Metrics struct {
	reg *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	tierLookups    *prometheus.CounterVec
	tierLatency    *prometheus.HistogramVec
	tierPromotions *prometheus.CounterVec

	searchRequests  *prometheus.CounterVec
	searchLatency   *prometheus.HistogramVec
	fuzzyCandidates prometheus.Histogram

	jobRuns    *prometheus.CounterVec
	jobRecords *prometheus.CounterVec

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
}

func NewMetrics(log *logger.Logger) *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		reg: r,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "http_requests_inflight",
		}),
		tierLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tier_lookups_total",
		}, []string{"tier", "outcome"}),
		tierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tier_lookup_duration_seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}, []string{"tier"}),
		tierPromotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tier_promotions_total",
		}, []string{"tier", "status"}),
		searchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_requests_total",
		}, []string{"kind", "status"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_duration_seconds", Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		fuzzyCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fuzzy_candidates", Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "job_runs_total",
		}, []string{"job", "status"}),
		jobRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "job_records_total",
		}, []string{"job", "outcome"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "upstream_requests_total",
		}, []string{"resource", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "upstream_request_duration_seconds", Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
	}
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.tierLookups, m.tierLatency, m.tierPromotions,
		m.searchRequests, m.searchLatency, m.fuzzyCandidates,
		m.jobRuns, m.jobRecords,
		m.upstreamRequests, m.upstreamLatency,
	)
	if log != nil {
		log.Debug("metrics registry initialized")
	}
	return m
}

// RegisterDB exports connection pool stats for the relational store.
func (m *Metrics) RegisterDB(sqlDB *sql.DB, dbName string) {
	if m == nil || sqlDB == nil {
		return
	}
	_ = m.reg.Register(collectors.NewDBStatsCollector(sqlDB, dbName))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveTierLookup records one tier read; outcome is hit, miss or error.
func (m *Metrics) ObserveTierLookup(tier, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	tier = orUnknown(tier)
	m.tierLookups.WithLabelValues(tier, outcome).Inc()
	m.tierLatency.WithLabelValues(tier).Observe(dur.Seconds())
}

func (m *Metrics) IncTierPromotion(tier string, ok bool) {
	if m == nil {
		return
	}
	m.tierPromotions.WithLabelValues(orUnknown(tier), statusLabel(ok)).Inc()
}

func (m *Metrics) ObserveSearch(kind string, ok bool, dur time.Duration) {
	if m == nil {
		return
	}
	kind = orUnknown(kind)
	m.searchRequests.WithLabelValues(kind, statusLabel(ok)).Inc()
	m.searchLatency.WithLabelValues(kind).Observe(dur.Seconds())
}

func (m *Metrics) ObserveFuzzyCandidates(n int) {
	if m == nil {
		return
	}
	m.fuzzyCandidates.Observe(float64(n))
}

// IncJobRun counts job outcomes: completed, partial or failed.
func (m *Metrics) IncJobRun(job, status string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(orUnknown(job), orUnknown(status)).Inc()
}

func (m *Metrics) AddJobRecords(job, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.jobRecords.WithLabelValues(orUnknown(job), orUnknown(outcome)).Add(float64(n))
}

func (m *Metrics) ObserveUpstream(resource string, ok bool, dur time.Duration) {
	if m == nil {
		return
	}
	resource = orUnknown(resource)
	m.upstreamRequests.WithLabelValues(resource, statusLabel(ok)).Inc()
	m.upstreamLatency.WithLabelValues(resource).Observe(dur.Seconds())
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}
