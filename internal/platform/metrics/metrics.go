package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the profile service.
// Methods are nil-safe so services can run without metrics in tests.
type Metrics struct {
	CacheRequests        *prometheus.CounterVec
	CacheDegraded        prometheus.Gauge
	AuditAppended        *prometheus.CounterVec
	AuditExportFailures  prometheus.Counter
	AuditExportDropped   prometheus.Counter
	KYCTransitions       *prometheus.CounterVec
	EnrichmentReviews    *prometheus.CounterVec
	ProfileLockWait      prometheus.Histogram
	CollaboratorRequests *prometheus.CounterVec
	MirrorFailures       prometheus.Counter
	RateLimited          *prometheus.CounterVec
	RequestLatency       *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg (tests pass a fresh registry).
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_cache_requests_total",
			Help: "Cache lookups by entity kind and result (hit, miss, error)",
		}, []string{"kind", "result"}),
		CacheDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "profile_cache_backend_degraded",
			Help: "1 while the external cache circuit is open and reads fall through to the store",
		}),
		AuditAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_audit_entries_appended_total",
			Help: "Audit entries appended by action",
		}, []string{"action"}),
		AuditExportFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "profile_audit_export_failures_total",
			Help: "Audit entries that could not be exported to the event stream",
		}),
		AuditExportDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "profile_audit_export_dropped_total",
			Help: "Audit entries dropped because the export buffer was full",
		}),
		KYCTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_kyc_transitions_total",
			Help: "KYC workflow transitions by resulting status",
		}, []string{"status"}),
		EnrichmentReviews: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_enrichment_reviews_total",
			Help: "Enrichment checker decisions",
		}, []string{"decision"}),
		ProfileLockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "profile_lock_wait_seconds",
			Help:    "Time spent holding the per-profile lock",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		CollaboratorRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_collaborator_requests_total",
			Help: "Outbound collaborator calls by collaborator and outcome",
		}, []string{"collaborator", "outcome"}),
		MirrorFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "profile_mirror_failures_total",
			Help: "Best-effort entity mirror writes that failed",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_rate_limited_total",
			Help: "Customer mutations rejected by the per-user quota",
		}, []string{"action"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profile_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (m *Metrics) IncrementCache(kind, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) SetCacheDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.CacheDegraded.Set(1)
		return
	}
	m.CacheDegraded.Set(0)
}

func (m *Metrics) IncrementAuditAppended(action string) {
	if m == nil {
		return
	}
	m.AuditAppended.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementAuditExportFailure() {
	if m == nil {
		return
	}
	m.AuditExportFailures.Inc()
}

func (m *Metrics) IncrementAuditExportDropped() {
	if m == nil {
		return
	}
	m.AuditExportDropped.Inc()
}

func (m *Metrics) IncrementKYCTransition(status string) {
	if m == nil {
		return
	}
	m.KYCTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementEnrichmentReview(decision string) {
	if m == nil {
		return
	}
	m.EnrichmentReviews.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveLockHeld(d time.Duration) {
	if m == nil {
		return
	}
	m.ProfileLockWait.Observe(d.Seconds())
}

func (m *Metrics) IncrementCollaborator(collaborator, outcome string) {
	if m == nil {
		return
	}
	m.CollaboratorRequests.WithLabelValues(collaborator, outcome).Inc()
}

func (m *Metrics) IncrementMirrorFailure() {
	if m == nil {
		return
	}
	m.MirrorFailures.Inc()
}

func (m *Metrics) IncrementRateLimited(action string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveRequest(route, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(route, method).Observe(d.Seconds())
}
