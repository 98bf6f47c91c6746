package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pratik-mahalle/skuprice/internal/app"
	"github.com/pratik-mahalle/skuprice/internal/config"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "error"}).ErrorWithErr(err, "Failed to load config")
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.ErrorWithErr(err, "Failed to initialize")
		os.Exit(1)
	}
	defer a.Close()

	log.WithFields(map[string]interface{}{
		"db_driver":  cfg.Database.Driver,
		"sku_source": cfg.Azure.Source,
		"schedule":   cfg.Pipeline.Schedule,
	}).Info("skuprice starting")

	if err := a.Serve(ctx); err != nil {
		log.ErrorWithErr(err, "Server stopped with error")
		a.Close()
		os.Exit(1)
	}
	log.Info("skuprice stopped")
}
