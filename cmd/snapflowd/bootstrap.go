package main

import (
	"fmt"
	"time"

	"log/slog"

	"snapflow/internal/archive"
	"snapflow/internal/config"
	"snapflow/internal/daemon"
	"snapflow/internal/logging"
	"snapflow/internal/monitoring"
	"snapflow/internal/pipeline"
	"snapflow/internal/ratelimit"
	"snapflow/internal/scanner"
	"snapflow/internal/services/caption"
	"snapflow/internal/services/instagram"
	"snapflow/internal/services/vision"
	"snapflow/internal/store"
)

// bootstrap assembles the full processing stack from configuration.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	st, err := store.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	report, err := st.Recover()
	if err != nil {
		return nil, fmt.Errorf("recover store: %w", err)
	}
	if report.DuplicatesFixed > 0 || report.OrphansRemoved > 0 {
		logger.Info("crash recovery repaired interrupted moves",
			logging.Int("duplicates_fixed", report.DuplicatesFixed),
			logging.Int("orphans_removed", report.OrphansRemoved),
		)
	}
	logger.Info("work items indexed", logging.Int("items", report.Indexed))

	var arc *archive.Store
	if cfg.Archive.Enabled {
		arc, err = archive.Open(cfg.Archive.Path)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
	}

	counters := monitoring.NewCounters()
	limiter := ratelimit.New(
		time.Duration(cfg.RateLimit.MinDelayMinutes)*time.Minute,
		cfg.RateLimit.Scope,
		logger,
	)

	mgr := pipeline.New(cfg, pipeline.Deps{
		Store:   st,
		Scanner: scanner.New(cfg, st, logger),
		Limiter: limiter,
		Analyzer: vision.NewClient(vision.Config{
			APIKey:         cfg.Analysis.APIKey,
			BaseURL:        cfg.Analysis.BaseURL,
			Model:          cfg.Analysis.Model,
			TimeoutSeconds: cfg.Analysis.TimeoutSeconds,
		}),
		Captioner: caption.NewClient(caption.Config{
			APIKey:         cfg.Caption.APIKey,
			BaseURL:        cfg.Caption.BaseURL,
			Model:          cfg.Caption.Model,
			Temperature:    cfg.Caption.Temperature,
			UseHashtags:    cfg.Caption.UseHashtags,
			MaxHashtags:    cfg.Caption.MaxHashtags,
			TimeoutSeconds: cfg.Caption.TimeoutSeconds,
		}),
		Publisher: instagram.NewClient(instagram.Config{
			BaseURL:        cfg.Publish.BaseURL,
			TimeoutSeconds: cfg.Publish.TimeoutSeconds,
		}),
		Notifier: monitoring.NewNotifier(cfg),
		Counters: counters,
		Archiver: archiverOrNil(arc),
		Logger:   logger,
	})

	return daemon.New(cfg, st, mgr, counters, arc, logger)
}

// archiverOrNil keeps the pipeline's optional archiver genuinely nil when the
// archive is disabled, instead of a typed nil inside the interface.
func archiverOrNil(arc *archive.Store) pipeline.Archiver {
	if arc == nil {
		return nil
	}
	return arc
}
