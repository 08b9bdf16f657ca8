package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/turbinemap/internal/adapters/http"
	"github.com/samirrijal/turbinemap/internal/adapters/memory"
	natsadapter "github.com/samirrijal/turbinemap/internal/adapters/nats"
	"github.com/samirrijal/turbinemap/internal/adapters/postgres"
	"github.com/samirrijal/turbinemap/internal/adapters/resilient"
	"github.com/samirrijal/turbinemap/internal/adapters/sqlite"
	"github.com/samirrijal/turbinemap/internal/adapters/valkey"
	"github.com/samirrijal/turbinemap/internal/core/ports"
	"github.com/samirrijal/turbinemap/internal/core/usecases"
	"github.com/samirrijal/turbinemap/internal/pkg/config"
	"github.com/samirrijal/turbinemap/internal/pkg/logging"
	"github.com/samirrijal/turbinemap/internal/pkg/metrics"
	"github.com/samirrijal/turbinemap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("turbinemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Spatial store
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("spatial store: %v", err)
	}
	defer closeStore()

	guarded := resilient.Wrap(store, resilient.Settings{
		Name:         "spatial-store",
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     time.Duration(cfg.Breaker.Interval) * time.Second,
		Timeout:      time.Duration(cfg.Breaker.Timeout) * time.Second,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
	})

	// Cache. A nil *valkey.Cache must not leak into the interfaces.
	var (
		cache  ports.CacheService
		pinger http.Pinger
	)
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr, "turbinemap:")
		if err != nil {
			slog.Warn("valkey unavailable, query cache disabled", "error", err)
		} else {
			defer vc.Close()
			cache, pinger = vc, vc
		}
	}

	svc := usecases.NewTurbineService(guarded, cache, usecases.QueryLimits{
		MaxResults: cfg.Query.MaxResults,
		MaxNearest: cfg.Query.MaxNearest,
		CacheTTL:   cfg.Query.CacheTTL,
	})

	// NATS: dataset-change invalidation and the WebSocket relay
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
			natsConn = nil
		} else {
			defer natsConn.Close()
			sub := natsadapter.NewSubscriber(natsConn)
			if err := sub.SubscribeDatasetUpdates(ctx, svc.OnDatasetChanged); err != nil {
				slog.Warn("dataset subscription failed", "error", err)
			}
			defer sub.Close()
		}
	}

	deps := &http.Dependencies{
		Turbines:  svc,
		Store:     guarded,
		Cache:     pinger,
		NATS:      natsConn,
		RateLimit: cfg.Server.RateLimit,
	}

	// Fiber
	app := http.NewApp(http.AppConfig{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "store", cfg.Store.Driver, "table", cfg.Store.Table)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// openStore builds the configured spatial store and its release function.
func openStore(ctx context.Context, cfg *config.Config) (ports.TurbineRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		go reportPool(ctx, db)
		return postgres.NewTurbineRepo(db, cfg.Store.Table), db.Close, nil

	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Store.DatasetPath, cfg.Store.Table)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil

	case config.DriverMemory:
		st, err := memory.Load(cfg.Store.DatasetPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("dataset loaded into memory", "path", cfg.Store.DatasetPath)
		return st, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func reportPool(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}
