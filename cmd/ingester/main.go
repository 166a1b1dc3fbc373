package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jiwelabs/threatwatch/internal/config"
	"github.com/jiwelabs/threatwatch/internal/fetch"
	"github.com/jiwelabs/threatwatch/internal/ingest"
	"github.com/jiwelabs/threatwatch/internal/observability"
	db "github.com/jiwelabs/threatwatch/internal/storage"
)

func main() {
	// Setup logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setLogLevel(cfg.LogLevel)

	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load sources file")
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// Connect storage and run migrations
	database, err := db.New(ctx, cfg.PostgresDSN, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Start health/metrics server
	healthServer := observability.NewServer(database, cfg.HealthPort, &logger)

	go func() {
		logger.Info().Int("port", cfg.HealthPort).Msg("Starting health server")

		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Health server error")
		}
	}()

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	source := fetch.NewSource(
		fetch.NewKaspersky(sources.Stats.BaseURL, sources.Countries, cfg.FetchRPS, httpClient, &logger),
		fetch.NewGoogleNews("", sources.FeedCountry, cfg.FetchRPS, &logger),
	)

	engine := ingest.New(database, source, cfg.NewsCutoff(), &logger)

	logger.Info().Msg("Starting ingester")

	if err := runLoop(ctx, engine, sources.SearchTerms, cfg.ScrapeInterval, &logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Ingester error")
	}

	logger.Info().Msg("Ingester stopped")
}

// runLoop executes one ingestion run, then repeats on the configured interval
// until the context is canceled. A zero interval means run once.
func runLoop(ctx context.Context, engine *ingest.Engine, searchTerms []string, interval time.Duration, logger *zerolog.Logger) error {
	if err := runOnce(ctx, engine, searchTerms, logger); err != nil {
		return err
	}

	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := runOnce(ctx, engine, searchTerms, logger); err != nil {
				return err
			}
		}
	}
}

func runOnce(ctx context.Context, engine *ingest.Engine, searchTerms []string, logger *zerolog.Logger) error {
	start := time.Now()

	stats, err := engine.Run(ctx, searchTerms)

	observability.IngestionRunDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		observability.IngestionRuns.WithLabelValues("error").Inc()

		return err
	}

	observability.IngestionRuns.WithLabelValues("ok").Inc()
	logger.Info().
		Int("inserted", stats.Inserted).
		Dur("took", time.Since(start)).
		Msg("Run complete")

	return nil
}

// setLogLevel sets the global log level based on the configuration.
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
