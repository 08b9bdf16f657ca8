package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	natsadapter "github.com/samirrijal/turbinemap/internal/adapters/nats"
	"github.com/samirrijal/turbinemap/internal/adapters/postgres"
	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/pkg/config"
	"github.com/samirrijal/turbinemap/internal/pkg/logging"
)

var (
	upFiles = []string{
		"migrations/001_init_extensions.up.sql",
		"migrations/002_turbines.up.sql",
	}
	downFiles = []string{
		"migrations/002_turbines.down.sql",
	}
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|notify [version]>")
	}

	cfg, err := config.Load("turbinemap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "up":
		run(ctx, cfg, upFiles)
	case "down":
		run(ctx, cfg, downFiles)
	case "notify":
		version := ""
		if len(os.Args) > 2 {
			version = os.Args[2]
		}
		notify(ctx, cfg, version)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func run(ctx context.Context, cfg *config.Config, files []string) {
	db, err := postgres.New(ctx, cfg.Database.DSN(), 1)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		sql := postgres.RenderMigration(string(data), cfg.Store.Table)
		if _, err := db.Pool.Exec(ctx, sql); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	slog.Info("migrations applied", "files", len(files), "table", cfg.Store.Table)
}

// notify tells running API instances that the dataset was reloaded.
func notify(ctx context.Context, cfg *config.Config, version string) {
	conn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer conn.Close()

	ev := domain.DatasetEvent{Version: version, ChangedAt: time.Now().UTC()}
	if err := natsadapter.NewPublisher(conn).PublishDatasetChanged(ctx, "reloaded", ev); err != nil {
		log.Fatalf("publish: %v", err)
	}
	slog.Info("dataset change published", "version", version)
}
