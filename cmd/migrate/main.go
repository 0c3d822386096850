package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"motopos/backend/internal/config"
	"motopos/backend/internal/logger"
	pgstore "motopos/backend/internal/store/postgres"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	if cfg.DatabaseURL == "" {
		requireResource(context.Background(), logg, "config", fmt.Errorf("DATABASE_URL is required"))
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	switch *cmd {
	case "up", "down", "status", "version", "redo", "reset":
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	requireResource(ctx, logg, "database", err)
	defer pg.Close()

	logg.Info(ctx, "migrate ready")
	if err := pgstore.Migrate(ctx, pg.DB(), *cmd, flag.Args()...); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
