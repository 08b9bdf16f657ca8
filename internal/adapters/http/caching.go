package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses by endpoint unless
// the handler already set one. Error responses are never cached.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Get(fiber.HeaderCacheControl) != "" {
			return err
		}
		if err != nil || c.Response().StatusCode() >= 400 {
			c.Set(fiber.HeaderCacheControl, "no-store")
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "no-cache"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasSuffix(path, "/turbines/stats"):
			ttl = "public, max-age=3600" // dataset changes rarely

		case strings.HasSuffix(path, "/turbines/nearest"):
			ttl = "public, max-age=300"

		case strings.Contains(path, "/turbines"):
			ttl = "public, max-age=60" // viewport queries

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=600"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}
