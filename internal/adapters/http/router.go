package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/routemap/internal/pkg/metrics"
)

// requestTimeout bounds REST handlers; payload fetches have their own timeout below it.
const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP; map clients select often
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws"
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware("/v1/surfaces", "/metrics"))
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(legacyRoutes))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Coordinate notations and payload normalization
	v1.Post("/coordinates/dec", ConvertDecHandler(deps))
	v1.Post("/coordinates/deg", ConvertDegHandler(deps))
	v1.Post("/coordinates/mms", ConvertMmsHandler(deps))
	v1.Post("/coordinates/parse", ParsePayloadHandler())
	v1.Post("/coordinates/legacy", ParsePayloadHandler())

	// Stored payloads
	v1.Get("/payloads/:channel/:id", timeout.NewWithContext(PayloadPointsHandler(deps), requestTimeout))
	v1.Delete("/payloads/:channel/:id", InvalidatePayloadHandler(deps))

	// Surfaces
	v1.Post("/surfaces", CreateSurfaceHandler(deps))
	v1.Get("/surfaces", ListSurfacesHandler(deps))
	v1.Get("/surfaces/:id", GetSurfaceHandler(deps))
	v1.Delete("/surfaces/:id", DeleteSurfaceHandler(deps))
	v1.Get("/surfaces/:id/geojson", SurfaceGeoJSONHandler(deps))
	v1.Put("/surfaces/:id/selection/:channel", timeout.NewWithContext(SelectHandler(deps), requestTimeout))
	v1.Post("/surfaces/:id/clear", ClearHandler(deps))
	v1.Put("/surfaces/:id/provider", SwitchProviderHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.OpenAPIPath)

	// WebSocket command relay
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS, deps.Surfaces)))
}
