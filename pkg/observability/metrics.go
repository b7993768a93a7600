package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Organization lifecycle metrics
	OrganizationsCreated  prometheus.Counter
	OrganizationsShutdown prometheus.Counter
	OwnershipTransfers    prometheus.Counter
	DomainAutoJoins       prometheus.Counter

	// Invite metrics
	InvitesCreated  prometheus.Counter
	InvitesAccepted prometheus.Counter
	InvitesRejected prometheus.Counter
	InvitesRevoked  prometheus.Counter
	InvitesExpired  prometheus.Counter

	// Ability metrics
	AbilityChecksTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Rate limit metrics
	RateLimitRejections *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roster_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roster_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		OrganizationsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_organizations_created_total",
				Help: "Total number of organizations created",
			},
		),
		OrganizationsShutdown: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_organizations_shutdown_total",
				Help: "Total number of organizations shut down",
			},
		),
		OwnershipTransfers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_ownership_transfers_total",
				Help: "Total number of completed ownership transfers",
			},
		),
		DomainAutoJoins: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_domain_auto_joins_total",
				Help: "Total number of memberships created by domain auto-join",
			},
		),

		InvitesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_invites_created_total",
				Help: "Total number of invites created",
			},
		),
		InvitesAccepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_invites_accepted_total",
				Help: "Total number of invites accepted",
			},
		),
		InvitesRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_invites_rejected_total",
				Help: "Total number of invites rejected",
			},
		),
		InvitesRevoked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_invites_revoked_total",
				Help: "Total number of invites revoked",
			},
		),
		InvitesExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_invites_expired_total",
				Help: "Total number of expired invites removed by the cleanup worker",
			},
		),

		AbilityChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_ability_checks_total",
				Help: "Total number of ability checks by outcome",
			},
			[]string{"action", "subject", "allowed"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_rate_limit_rejections_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"limiter"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "roster_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "roster_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.OrganizationsCreated,
		m.OrganizationsShutdown,
		m.OwnershipTransfers,
		m.DomainAutoJoins,
		m.InvitesCreated,
		m.InvitesAccepted,
		m.InvitesRejected,
		m.InvitesRevoked,
		m.InvitesExpired,
		m.AbilityChecksTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RateLimitRejections,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
