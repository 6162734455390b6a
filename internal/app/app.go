// Package app assembles the pipeline from configuration. Both the HTTP server
// and the CLI build their dependencies through it.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"threatscope/internal/adapters/fanout"
	"threatscope/internal/adapters/groq"
	"threatscope/internal/adapters/kafka"
	pg "threatscope/internal/adapters/postgres"
	"threatscope/internal/adapters/web"
	"threatscope/internal/catalog"
	"threatscope/internal/config"
	"threatscope/internal/detector"
	"threatscope/internal/metrics"
	"threatscope/internal/ports"
	"threatscope/internal/scoring"
	"threatscope/internal/services/analyzer"
	"threatscope/internal/services/history"
)

type App struct {
	Analyzer *analyzer.Service
	// History is nil when no database is configured.
	History *history.Service
	Metrics *metrics.Metrics
	DB      *pg.DB

	closers []func()
}

// Options adjust a build without touching the environment.
type Options struct {
	// SkipInsights disables the insight generator even when a key is set.
	SkipInsights bool
}

func Build(ctx context.Context, cfg config.Config, log *logrus.Logger, opts Options) (*App, error) {
	a := &App{Metrics: metrics.New()}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		c, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		cat = c
		log.WithField("path", cfg.CatalogPath).Info("catalog loaded")
	}

	policy, err := scoring.ByName(cfg.ScoringPolicy)
	if err != nil {
		return nil, err
	}

	fetcher, err := web.New(web.Options{
		ProxyURL:      cfg.TorProxyURL,
		Timeout:       cfg.FetchTimeout,
		MaxBytes:      cfg.FetchMaxBytes,
		UserAgent:     cfg.FetchUserAgent,
		OverlayMarker: cfg.OverlayMarker,
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	var sinks []ports.ResultSink
	if cfg.DatabaseURL != "" {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx); err != nil {
				a.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}
		a.History = history.New(db)
		sinks = append(sinks, db)
	}
	if len(cfg.KafkaBrokers) > 0 {
		ks := kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, func() {
			if err := ks.Close(); err != nil {
				log.WithError(err).Warn("kafka writer close")
			}
		})
		sinks = append(sinks, ks)
		log.WithField("topic", cfg.KafkaTopic).Info("kafka sink enabled")
	}
	sink := fanout.New(sinks...)
	if sink.Len() == 0 {
		log.Warn("no result sink configured; analyses will not be persisted")
	}

	svcOpts := []analyzer.Option{analyzer.WithMetrics(a.Metrics), analyzer.WithLogger(log)}
	if cfg.GroqAPIKey != "" && !opts.SkipInsights {
		svcOpts = append(svcOpts, analyzer.WithInsights(groq.New(cfg.GroqAPIKey, cfg.GroqModel, cfg.GroqBaseURL, cfg.InsightTimeout)))
	}
	a.Analyzer = analyzer.New(fetcher, detector.New(cat), policy, sink, svcOpts...)
	return a, nil
}

// Close releases sinks in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
