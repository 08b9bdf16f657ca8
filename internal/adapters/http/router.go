package http

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/turbinemap/internal/pkg/metrics"
)

const (
	apiVersion     = "1.0.0"
	queryTimeout   = 15 * time.Second
	defaultPerMin  = 120
	legacySunset   = "2027-06-30"
	legacyBBoxPath = "/api/turbines"
)

// AppConfig holds server-level settings for NewApp.
type AppConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewApp creates a Fiber app that encodes JSON with goccy/go-json and
// renders unhandled errors as APIError bodies.
func NewApp(cfg AppConfig) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "turbinemap",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          ErrorHandler,
	})
}

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

	perMin := deps.RateLimit
	if perMin <= 0 {
		perMin = defaultPerMin
	}
	app.Use(limiter.New(limiter.Config{
		Max:        perMin,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			// probes and scrapes are never throttled
			p := c.Path()
			return p == "/metrics" || p == "/v1/health" || p == "/v1/ready"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, KindRateLimited, "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", apiVersion)
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	sunset, _ := time.Parse(time.DateOnly, legacySunset)
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: legacyBBoxPath, SunsetDate: sunset, Alternative: "/v1/turbines/bbox"},
	}))

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	bbox := timeout.NewWithContext(BBoxHandler(deps), queryTimeout)
	nearest := timeout.NewWithContext(NearestHandler(deps), queryTimeout)

	v1 := app.Group("/v1")
	v1.Get("/turbines/bbox", bbox)
	v1.Get("/turbines/nearest", nearest)
	v1.Get("/turbines/stats", timeout.NewWithContext(StatsHandler(deps), queryTimeout))

	// Legacy map page paths; same handlers, same contract.
	api := app.Group("/api")
	api.Get("/turbines/bbox", bbox)
	api.Get("/turbines/nearest", nearest)
	api.Get("/turbines", timeout.NewWithContext(LegacyBBoxHandler(deps), queryTimeout))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), queryTimeout))

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
