package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/surveyplot/internal/pkg/metrics"
)

// requestTimeout bounds every engine and storage request.
const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited",
				"too many requests, please try again later", nil)
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

	app.Use(DeprecationMiddleware(legacyRoutes))
	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	with := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }

	// Engine
	v1.Post("/traverses", with(TraverseHandler(deps)))
	v1.Post("/plot", with(TraverseHandler(deps))) // legacy alias
	v1.Post("/bearings/parse", with(ParseBearingHandler(deps)))
	v1.Get("/bearings/format", with(FormatBearingHandler(deps)))
	v1.Post("/geodesic", with(GeodesicHandler(deps)))
	v1.Post("/imports/kml", with(ImportKMLHandler(deps)))
	v1.Post("/imports/mirror", with(MirrorLayerHandler(deps)))
	v1.Post("/plots/render", with(RenderHandler(deps)))
	v1.Post("/exports/script", with(ExportScriptHandler(deps)))
	v1.Post("/exports/geojson", with(ExportGeoJSONHandler(deps)))

	// Saved plots
	v1.Post("/plots", with(CreatePlotHandler(deps)))
	v1.Get("/plots", with(ListPlotsHandler(deps)))
	v1.Get("/plots/:id", with(GetPlotHandler(deps)))
	v1.Delete("/plots/:id", with(DeletePlotHandler(deps)))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	}
}
