// Package app assembles the harvester from configuration: database, SKU
// source, retail price client, pipeline, admin API and scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/pratik-mahalle/skuprice/internal/api/handlers"
	"github.com/pratik-mahalle/skuprice/internal/api/router"
	"github.com/pratik-mahalle/skuprice/internal/config"
	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	"github.com/pratik-mahalle/skuprice/internal/extractor"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/pkg/validator"
	"github.com/pratik-mahalle/skuprice/internal/providers"
	"github.com/pratik-mahalle/skuprice/internal/providers/retailprices"
	"github.com/pratik-mahalle/skuprice/internal/repository/postgres"
	"github.com/pratik-mahalle/skuprice/internal/services"
	"github.com/pratik-mahalle/skuprice/internal/worker"
	"github.com/pratik-mahalle/skuprice/migrations"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *postgres.DB
	Registry *sku.Registry

	Pricing  *postgres.PricingRepository
	History  *postgres.HistoryRepository
	Runs     *postgres.RunRepository
	Pipeline *services.Pipeline
}

// New connects to the database, applies pending migrations and wires the
// pipeline.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := postgres.New(cfg.Database)
	if err != nil {
		return nil, err
	}

	applied, err := postgres.RunMigrations(ctx, db, migrations.FS())
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, name := range applied {
		log.With("migration", name).Info("Applied migration")
	}

	source, err := NewSKUSource(cfg.Azure, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := sku.DefaultRegistry()
	refresher := postgres.NewRefresher(db, log)
	resources := postgres.NewResourceRepository(db, refresher)
	ratesRepo := postgres.NewRatesRepository(db, refresher)
	pricingRepo := postgres.NewPricingRepository(db, refresher)
	runs := postgres.NewRunRepository(db)
	historyRepo := postgres.NewHistoryRepository(db)

	client := retailprices.NewClient(retailprices.Config{
		BaseURL:           cfg.Pricing.BaseURL,
		APIVersion:        cfg.Pricing.APIVersion,
		Filter:            cfg.Pricing.Filter,
		RetryDelay:        cfg.Pricing.RetryDelay,
		Timeout:           cfg.Pricing.Timeout,
		RequestsPerSecond: cfg.Pricing.RequestsPerSecond,
	}, log)

	pipeline := services.NewPipeline(services.PipelineConfig{
		SubscriptionID:    cfg.Azure.SubscriptionID,
		ResourceTypes:     cfg.Pipeline.ResourceTypes,
		RateStageAttempts: cfg.Pipeline.RateStageAttempts,
	}, services.PipelineDeps{
		Registry:  registry,
		Source:    source,
		Extractor: extractor.New(log, cfg.Pipeline.ExtractConcurrency),
		Resources: resources,
		Fetcher:   client,
		Rates:     ratesRepo,
		Engine:    services.NewPricingEngine(resources, ratesRepo, pricingRepo, log),
		History:   services.NewHistoryRecorder(historyRepo, log),
		Runs:      runs,
	}, log)

	return &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Registry: registry,
		Pricing:  pricingRepo,
		History:  historyRepo,
		Runs:     runs,
		Pipeline: pipeline,
	}, nil
}

// NewSKUSource builds the SKU metadata source selected by configuration
func NewSKUSource(cfg config.AzureConfig, log *logger.Logger) (providers.SKUSource, error) {
	switch cfg.Source {
	case "file":
		return providers.NewFileSKUSource(cfg.FixtureDir), nil
	case "azure", "":
		return providers.NewAzureSKUSource(providers.AzureCredentials{
			TenantID:       cfg.TenantID,
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			SubscriptionID: cfg.SubscriptionID,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported SKU source: %s", cfg.Source)
	}
}

// Handler builds the admin API
func (a *App) Handler() http.Handler {
	val := validator.New()
	return router.New(a.Config, a.Logger, &router.Handlers{
		Health:  handlers.NewHealthHandler(a.DB, a.Logger),
		Run:     handlers.NewRunHandler(a.Pipeline, a.Runs, val, a.Logger),
		Pricing: handlers.NewPricingHandler(a.Pricing, a.History, val, a.Logger),
		Schema:  handlers.NewSchemaHandler(a.Registry),
	})
}

// Serve runs the scheduler and, when enabled, the admin API until ctx is
// cancelled. In-flight runs are allowed to finish before it returns.
func (a *App) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	scheduler := worker.NewScheduler(a.Pipeline, a.Config.Pipeline.Schedule, a.Config.Pipeline.RunOnStart, a.Logger)
	g.Go(func() error {
		return scheduler.Start(gctx)
	})

	if a.Config.Server.Enabled {
		srv := &http.Server{
			Addr:         net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port)),
			Handler:      a.Handler(),
			ReadTimeout:  a.Config.Server.ReadTimeout,
			WriteTimeout: a.Config.Server.WriteTimeout,
		}

		g.Go(func() error {
			a.Logger.With("addr", srv.Addr).Info("Admin API listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin API: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			a.Logger.Info("Shutting down admin API")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	a.Pipeline.Wait()
	return err
}

// Close releases the database connection
func (a *App) Close() error {
	return a.DB.Close()
}
