// Package app wires the application together and exposes its run modes:
//
//   - Server mode: the feed API plus the ingest trigger, with an optional
//     periodic ingest ticker.
//   - Ingest mode: run ingest cycles without the API, once or on a ticker.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/companion-radar/internal/api"
	"github.com/lueurxax/companion-radar/internal/clusterer"
	"github.com/lueurxax/companion-radar/internal/connectors"
	"github.com/lueurxax/companion-radar/internal/core/domain"
	"github.com/lueurxax/companion-radar/internal/normalize"
	"github.com/lueurxax/companion-radar/internal/pipeline"
	"github.com/lueurxax/companion-radar/internal/platform/config"
	"github.com/lueurxax/companion-radar/internal/platform/worker"
	"github.com/lueurxax/companion-radar/internal/ranker"
	"github.com/lueurxax/companion-radar/internal/storage"
)

const (
	hoursPerDay    = 24
	ingestLoopName = "ingest"
)

var errNoSources = errors.New("no feed sources configured")

type App struct {
	cfg      *config.Config
	database *storage.DB
	logger   *zerolog.Logger
}

func New(cfg *config.Config, database *storage.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// newRunner builds the full ingest pipeline from configuration.
func (a *App) newRunner() *pipeline.Runner {
	llmClient := normalize.NewClient(normalize.Options{
		Provider:       a.cfg.LLMProvider,
		APIKey:         a.cfg.LLMAPIKey,
		Model:          a.cfg.LLMModel,
		Attempts:       a.cfg.LLMMaxRetries,
		RequestTimeout: a.cfg.LLMTimeout,
		RateLimitRPS:   float64(a.cfg.LLMRateRPS),
	}, a.logger)

	normalizer := normalize.New(
		a.database,
		llmClient,
		normalize.NewImageFetcher(a.logger),
		a.cfg.MinConfidenceThreshold,
		a.logger,
	)

	cl := clusterer.New(a.database, clusterer.Config{
		SimilarityThreshold: a.cfg.ClusterSimilarityThreshold,
		TrgmThreshold:       a.cfg.ClusterTrgmThreshold,
		ActiveWindow:        time.Duration(a.cfg.ClusterActiveDays) * hoursPerDay * time.Hour,
	}, a.logger)

	rk := ranker.New(a.database, ranker.Config{
		MaxDomains: a.cfg.RankingMaxDomains,
		DecayHours: float64(a.cfg.RankingRecencyDecayHours),
	}, a.logger)

	registry := connectors.NewRegistry(connectors.NewFeedConnector(a.logger))

	return pipeline.NewRunner(
		a.database,
		registry,
		a.sources(),
		normalizer,
		cl,
		rk,
		pipeline.Config{
			MaxItems:       a.cfg.DirectModeMaxItems,
			Timeout:        a.cfg.DirectModeTimeout(),
			LLMConcurrency: a.cfg.DirectModeLLMConcurrency,
		},
		a.logger,
	)
}

func (a *App) sources() []connectors.SourceConfig {
	parsed := a.cfg.ParseFeedSources()

	sources := make([]connectors.SourceConfig, 0, len(parsed))
	for _, src := range parsed {
		sources = append(sources, connectors.SourceConfig{
			Name:    src.Name,
			Type:    domain.SourceMedia,
			FeedURL: src.URL,
			Enabled: true,
		})
	}

	return sources
}

// RunServer serves the feed API. When INGEST_INTERVAL is set, a background
// ticker also runs ingest cycles.
func (a *App) RunServer(ctx context.Context) error {
	a.logger.Info().Msg("starting server mode")

	runner := a.newRunner()

	if a.cfg.IngestInterval > 0 {
		go func() {
			err := worker.Loop(ctx, ingestLoopName, a.cfg.IngestInterval, a.logger, func(ctx context.Context) error {
				_, err := runner.RunCycle(ctx)

				return err
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("ingest loop error")
			}
		}()
	}

	srv := api.NewServer(
		a.database,
		runner,
		a.cfg.IngestSecret,
		a.cfg.CronSecret,
		a.cfg.HTTPPort,
		a.logger,
	)

	return srv.Start(ctx)
}

// RunIngest runs ingest cycles without the API. With once set it runs a
// single cycle and exits; otherwise it requires INGEST_INTERVAL and loops.
func (a *App) RunIngest(ctx context.Context, once bool) error {
	a.logger.Info().Bool("once", once).Msg("starting ingest mode")

	if len(a.sources()) == 0 {
		return errNoSources
	}

	runner := a.newRunner()

	if once {
		_, err := runner.RunCycle(ctx)

		return err
	}

	interval := a.cfg.IngestInterval
	if interval <= 0 {
		return errors.New("INGEST_INTERVAL must be set for continuous ingest mode")
	}

	return worker.Loop(ctx, ingestLoopName, interval, a.logger, func(ctx context.Context) error {
		_, err := runner.RunCycle(ctx)

		return err
	})
}
