package providers

import (
	"bakso/internal/structures"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"time"
)

// Ping outcomes reported through IncPings.
const (
	PingResultSent        = "sent"
	PingResultRateLimited = "rate_limited"
	PingResultFailed      = "failed"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	IncPings(result string)
	IncNotifications()
	IncPresenceSyncs()
	IncRegionRejoins()
	IncTransportErrors(op string)
	SetActiveSessions(count int)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	pingsTotal          *prometheus.CounterVec
	notificationsTotal  prometheus.Counter
	presenceSyncs       prometheus.Counter
	regionRejoins       prometheus.Counter
	transportErrors     *prometheus.CounterVec
	activeSessions      prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncPings(result string) {
	m.pingsTotal.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) IncNotifications() {
	m.notificationsTotal.Inc()
}

func (m *MetricsProvider) IncPresenceSyncs() {
	m.presenceSyncs.Inc()
}

func (m *MetricsProvider) IncRegionRejoins() {
	m.regionRejoins.Inc()
}

func (m *MetricsProvider) IncTransportErrors(op string) {
	m.transportErrors.WithLabelValues(op).Inc()
}

func (m *MetricsProvider) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bakso_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bakso_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bakso_cache_hits_total",
			Help: "Total number of ping ledger cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bakso_cache_misses_total",
			Help: "Total number of ping ledger cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bakso_persistence_duration_seconds",
			Help:    "Duration of ledger persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		pingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bakso_pings_total",
			Help: "Buyer pings by outcome",
		}, []string{"result"}),

		notificationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bakso_notifications_total",
			Help: "Total number of notifications delivered to sellers",
		}),

		presenceSyncs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bakso_presence_syncs_total",
			Help: "Total number of processed presence syncs",
		}),

		regionRejoins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bakso_region_rejoins_total",
			Help: "Total number of region channel rejoins",
		}),

		transportErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bakso_transport_errors_total",
			Help: "Realtime transport failures by operation",
		}, []string{"op"}),

		activeSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bakso_active_sessions",
			Help: "Number of active tracking sessions",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncPings(_ string)                                {}
func (n *noopMetrics) IncNotifications()                                {}
func (n *noopMetrics) IncPresenceSyncs()                                {}
func (n *noopMetrics) IncRegionRejoins()                                {}
func (n *noopMetrics) IncTransportErrors(_ string)                      {}
func (n *noopMetrics) SetActiveSessions(_ int)                          {}
