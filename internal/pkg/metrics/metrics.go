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
		Namespace: "casahunt",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "casahunt",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "casahunt",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Geocoding
	GeocodeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casahunt",
		Subsystem: "geocode",
		Name:      "cache_lookups_total",
		Help:      "Geocode cache lookups by result (hit, negative_hit, miss)",
	}, []string{"result"})

	GeocodeCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "casahunt",
		Subsystem: "geocode",
		Name:      "cache_evictions_total",
		Help:      "Entries evicted from the local geocode cache",
	})

	GeocodeProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casahunt",
		Subsystem: "geocode",
		Name:      "provider_requests_total",
		Help:      "Upstream geocoding requests by outcome (found, not_found, error, throttled)",
	}, []string{"outcome"})

	GeocodeProviderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "casahunt",
		Subsystem: "geocode",
		Name:      "provider_duration_seconds",
		Help:      "Duration of upstream geocoding requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// Transit routes
	RouteFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "casahunt",
		Subsystem: "transit",
		Name:      "route_fetch_duration_seconds",
		Help:      "Duration of routing-data provider queries",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15},
	}, []string{"route_type", "outcome"})

	RouteFeatures = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "casahunt",
		Subsystem: "transit",
		Name:      "route_features",
		Help:      "LineString features returned per transit route",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	// Listing events
	ListingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casahunt",
		Subsystem: "listings",
		Name:      "events_total",
		Help:      "Listing enrichment events by type",
	}, []string{"type"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "casahunt",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "casahunt",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "casahunt",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "casahunt",
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
		path := c.Route().Path // route pattern keeps cardinality bounded
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
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat reported as gauges.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics updates database pool gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
