package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"coachsync/internal/app"
	"coachsync/pkg/config"
	"coachsync/pkg/logger"
)

func main() {
	// build metadata - set via ldflags during release
	var version = "dev"

	_ = godotenv.Load(".env")

	cfgPath := flag.String("config", "", "path to config.yaml")
	dbPath := flag.String("db", "", "override storage db path")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		log.Printf("coachsync %s", version)
		return
	}

	path := *cfgPath
	if path == "" {
		path = os.Getenv("COACHSYNC_CONFIG")
	}
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Storage.DBPath = *dbPath
	}

	logger.InitWithLevel(cfg.Logging.Level)
	logger.Info("starting", "version", version, "db", cfg.Storage.DBPath)

	a, err := app.New(cfg)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = a.Run(ctx)
	a.Close()
	if err != nil {
		logger.Error("engine_failed", "error", err)
		os.Exit(1)
	}
}
