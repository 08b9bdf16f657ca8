package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/core/usecases"
)

// BBoxHandler returns the turbines inside the box given by the minLon,
// minLat, maxLon, and maxLat query parameters, ordered by id. An optional
// limit lowers the server cap.
func BBoxHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		box, err := domain.ParseBoundingBox(c.Query("minLon"), c.Query("minLat"), c.Query("maxLon"), c.Query("maxLat"))
		if err != nil {
			return respondError(c, err)
		}
		limit, err := optionalInt(c, "limit")
		if err != nil {
			return respondError(c, err)
		}

		turbines, err := deps.Turbines.InBoundingBox(c.UserContext(), box, limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(turbines)
	}
}

// LegacyBBoxHandler serves the unversioned /api/turbines path. It accepts
// the same parameters as BBoxHandler.
func LegacyBBoxHandler(deps *Dependencies) fiber.Handler {
	return BBoxHandler(deps)
}

// NearestHandler returns the three turbines closest to lon/lat, nearest
// first, each with its planar distance in degrees.
func NearestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := domain.ParseGeoPoint(c.Query("lon"), c.Query("lat"))
		if err != nil {
			return respondError(c, err)
		}

		nearby, err := deps.Turbines.Nearest(c.UserContext(), p, usecases.DefaultNearest)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(nearby)
	}
}

// StatsHandler returns the dataset summary.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Turbines.Stats(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(stats)
	}
}

// optionalInt parses an integer query parameter; absent means 0.
func optionalInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(key, raw)
	}
	return n, nil
}

func invalidParam(key, raw string) error {
	return &paramError{key: key, raw: raw}
}

type paramError struct{ key, raw string }

func (e *paramError) Error() string {
	return "invalid argument: " + e.key + " must be an integer, got " + strconv.Quote(e.raw)
}

func (e *paramError) Unwrap() error { return domain.ErrInvalidArgument }
