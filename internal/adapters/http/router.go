package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/casahunt/internal/pkg/metrics"
)

// RequestTimeout bounds every /api handler. It is longer than the geocode
// and routing provider timeouts so those surface as their own errors.
const RequestTimeout = 20 * time.Second

// RouterOptions tunes middleware that differs between deployments and tests.
type RouterOptions struct {
	// RateLimit is the number of requests per minute per IP; 0 disables it.
	RateLimit int
}

// DefaultRouterOptions returns production settings.
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{RateLimit: 120}
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies, opts RouterOptions) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(TracingMiddleware())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Geocoding upstreams are rate limited, so are we.
	if opts.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited",
					"too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/api/health", HealthHandler(deps))
	app.Get("/api/ready", ReadyHandler(deps))

	api := app.Group("/api")
	api.Get("/geocode", withTimeout(GeocodeHandler(deps)))
	api.Post("/geocode/batch", withTimeout(GeocodeBatchHandler(deps)))
	api.Get("/transit-route", withTimeout(TransitRouteHandler(deps)))
	api.Get("/transit-line/parse", TransitLineParseHandler(deps))
	api.Get("/transit-line", withTimeout(TransitLineHandler(deps)))
	api.Post("/distance/filter", withTimeout(DistanceFilterHandler(deps)))
	api.Get("/listings/nearby", withTimeout(NearbyListingsHandler(deps)))
	api.Get("/listings/:id", withTimeout(GetListingHandler(deps)))

	app.Post("/graphql", withTimeout(GraphQLHandler(deps)))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, RequestTimeout)
}
