package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routemap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routemap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routemap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Overlay engine metrics
	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routemap",
		Subsystem: "overlay",
		Name:      "reconciliations_total",
		Help:      "Total channel reconciliations applied",
	}, []string{"channel", "policy"})

	Instructions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routemap",
		Subsystem: "overlay",
		Name:      "instructions_total",
		Help:      "Total overlay and viewport instructions emitted",
	}, []string{"kind"})

	ReconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routemap",
		Subsystem: "overlay",
		Name:      "reconcile_duration_seconds",
		Help:      "Duration of a selection change from fetch to emitted plan",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"channel"})

	StaleBatchesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routemap",
		Subsystem: "overlay",
		Name:      "stale_batches_discarded_total",
		Help:      "Fetch batches discarded because a newer selection superseded them",
	}, []string{"channel"})

	DrawFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routemap",
		Subsystem: "overlay",
		Name:      "draw_failures_total",
		Help:      "Entities whose drawing was rolled back after a provider error",
	}, []string{"provider"})

	ActiveSurfaces = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routemap",
		Subsystem: "overlay",
		Name:      "active_surfaces",
		Help:      "Current number of registered rendering surfaces",
	})

	PayloadFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routemap",
		Subsystem: "payload",
		Name:      "fetch_errors_total",
		Help:      "Total coordinate payload fetch errors",
	}, []string{"source"})

	PayloadFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routemap",
		Subsystem: "payload",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of coordinate payload fetches",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"source"})

	PayloadEntriesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routemap",
		Subsystem: "payload",
		Name:      "entries_dropped_total",
		Help:      "Unparseable coordinate entries dropped during normalization",
	}, []string{"kind"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routemap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routemap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routemap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routemap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routemap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routemap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of *pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
