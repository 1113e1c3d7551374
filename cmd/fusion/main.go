package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/air-quality-fusion/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/air-quality-fusion/internal/adapter/kafka"
	"github.com/couchcryptid/air-quality-fusion/internal/adapter/mapbox"
	"github.com/couchcryptid/air-quality-fusion/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/air-quality-fusion/internal/adapter/redis"
	"github.com/couchcryptid/air-quality-fusion/internal/config"
	"github.com/couchcryptid/air-quality-fusion/internal/dispersion"
	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/estimate"
	"github.com/couchcryptid/air-quality-fusion/internal/forecast"
	"github.com/couchcryptid/air-quality-fusion/internal/fusion"
	"github.com/couchcryptid/air-quality-fusion/internal/hotspot"
	"github.com/couchcryptid/air-quality-fusion/internal/observability"
	"github.com/couchcryptid/air-quality-fusion/internal/pipeline"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// modelTTL bounds how long a persisted forecast model outlives its last refit.
const modelTTL = 7 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := fusion.Deps{Logger: logger, Metrics: metrics}
	checks := readiness{}

	// Persistence is optional: without POSTGRES_DSN the store starts empty on
	// every boot.
	if cfg.PostgresDSN != "" {
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		deps.Snapshots = pg
		checks = append(checks, pg)
		logger.Info("measurement snapshots enabled")
	}

	if cfg.RedisAddr != "" {
		client, err := redisadapter.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		models := redisadapter.NewModelStore(client, modelTTL)
		deps.Models = models
		checks = append(checks, models)
		logger.Info("forecast model store enabled", "addr", cfg.RedisAddr)
	}

	// Reverse geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		deps.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	engine := fusion.New(engineConfig(cfg), deps)
	if err := engine.Restore(ctx); err != nil {
		return err
	}
	logger.Info("engine started", "measurements", engine.Snapshot().Len())

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	loader := pipeline.NewLoader(engine, writer, logger, metrics)

	p := pipeline.New(reader, pipeline.NewTransformer(logger), loader, logger, metrics, cfg.BatchSize)
	checks = append(checks, p, engine)

	srv := httpadapter.NewServer(cfg.HTTPAddr, checks, engine, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start fusion pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func engineConfig(cfg *config.Config) fusion.Config {
	return fusion.Config{
		Store: store.Options{
			Precision: cfg.DedupPrecision,
			Rules: domain.Rules{
				Ceiling: cfg.ImplausibleCeiling,
				Area:    cfg.AreaOfInterest,
			},
		},
		Estimate: estimate.Options{
			Neighbors: cfg.IDWNeighbors,
			Power:     cfg.IDWPower,
			EpsilonKm: cfg.IDWEpsilonKm,
			MinPoints: cfg.IDWMinPoints,
		},
		Hotspot: hotspot.Options{
			DefaultClusters: cfg.HotspotK,
			MaxIterations:   cfg.HotspotMaxIter,
		},
		Forecast: forecast.Options{
			RadiusKm:      cfg.ForecastRadiusKm,
			RefitFraction: cfg.ForecastRefitFraction,
			Ridge:         cfg.ForecastRidge,
			UTCOffset:     cfg.ForecastUTCOffset,
		},
		Dispersion: dispersion.Options{
			StagnationKmh: cfg.StagnationWindKmh,
			WashoutMM:     cfg.WashoutPrecipMM,
			ColocationKm:  cfg.ColocationRadiusKm,
		},
	}
}

// readiness is ready when every check passes.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return fmt.Errorf("%T: %w", c, err)
		}
	}
	return nil
}
