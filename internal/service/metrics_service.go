package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	dbQueryDuration   *prometheus.HistogramVec
	revisionsWritten  *prometheus.CounterVec
	signoffConflicts  *prometheus.CounterVec
	signoffTransition *prometheus.CounterVec
	ledgerSeedFailed  prometheus.Counter

	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	revisionCount        uint64
	conflictCount        uint64
	seedFailureCount     uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	revisionsWritten := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "revisions_written_total",
		Help: "Revision artifacts written, by submission mode",
	}, []string{"mode"})

	signoffConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signoff_conflicts_total",
		Help: "Rejected ledger mutations, by reason",
	}, []string{"reason"})

	signoffTransition := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signoff_transitions_total",
		Help: "Accepted ledger column transitions",
	}, []string{"column", "action"})

	ledgerSeedFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_seed_failures_total",
		Help: "Revisions written without a ledger entry; these need manual reconciliation",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration, revisionsWritten, signoffConflicts, signoffTransition, ledgerSeedFailed, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		dbQueryDuration:   dbQueryDuration,
		revisionsWritten:  revisionsWritten,
		signoffConflicts:  signoffConflicts,
		signoffTransition: signoffTransition,
		ledgerSeedFailed:  ledgerSeedFailed,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// RevisionWritten counts a persisted revision artifact.
func (m *MetricsService) RevisionWritten(mode models.SubmissionMode) {
	if m == nil {
		return
	}
	m.revisionsWritten.WithLabelValues(string(mode)).Inc()
	atomic.AddUint64(&m.revisionCount, 1)
}

// SignoffConflict counts a rejected ledger mutation (stale, busy).
func (m *MetricsService) SignoffConflict(reason string) {
	if m == nil {
		return
	}
	m.signoffConflicts.WithLabelValues(reason).Inc()
	atomic.AddUint64(&m.conflictCount, 1)
}

// SignoffTransition counts an accepted column transition.
func (m *MetricsService) SignoffTransition(column models.SignoffColumn, action string) {
	if m == nil {
		return
	}
	m.signoffTransition.WithLabelValues(string(column), action).Inc()
}

// LedgerSeedFailed counts a revision left without a ledger entry.
func (m *MetricsService) LedgerSeedFailed() {
	if m == nil {
		return
	}
	m.ledgerSeedFailed.Inc()
	atomic.AddUint64(&m.seedFailureCount, 1)
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() models.ServiceMetrics {
	if m == nil {
		return models.ServiceMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	return models.ServiceMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		RevisionsWritten:         atomic.LoadUint64(&m.revisionCount),
		SignoffConflicts:         atomic.LoadUint64(&m.conflictCount),
		LedgerSeedFailures:       atomic.LoadUint64(&m.seedFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
