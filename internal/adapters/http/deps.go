package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/turbinemap/internal/core/ports"
	"github.com/samirrijal/turbinemap/internal/core/usecases"
)

// Pinger is anything the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Turbines  *usecases.TurbineService
	Store     ports.TurbineRepository // probed by /v1/ready
	Cache     Pinger                  // nil when caching is disabled
	NATS      *nats.Conn              // nil disables /ws
	RateLimit int                     // requests per minute per IP; 0 means 120
}
