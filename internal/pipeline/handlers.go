package pipeline

import (
	"context"
	"log/slog"
	"time"

	"snapflow/internal/logging"
	"snapflow/internal/monitoring"
	"snapflow/internal/services"
	"snapflow/internal/store"
)

type advanceOutcome struct {
	advanced    int
	published   int
	retried     int
	failed      int
	rateLimited int
}

// advance drives one item through at most one stage transition.
func (m *Manager) advance(ctx context.Context, item *store.Item) advanceOutcome {
	switch item.Stage {
	case store.StageDiscovered:
		return m.advanceDiscovered(ctx, item)
	case store.StageAnalyzing:
		return m.advanceAnalyzing(ctx, item)
	case store.StageCaptioning:
		return m.advanceCaptioning(ctx, item)
	case store.StagePublishing:
		return m.advancePublishing(ctx, item)
	default:
		return advanceOutcome{}
	}
}

func (m *Manager) advanceDiscovered(ctx context.Context, item *store.Item) advanceOutcome {
	_, log := m.stageContext(ctx, item)
	if err := m.store.MoveToStage(item, store.StageAnalyzing); err != nil {
		log.Warn("could not enter analysis queue", logging.Error(err))
		return advanceOutcome{}
	}
	log.Info("entered pipeline")
	m.counters.Add(monitoring.CounterAdvanced, 1)
	return advanceOutcome{advanced: 1}
}

func (m *Manager) advanceAnalyzing(ctx context.Context, item *store.Item) advanceOutcome {
	ctx, log := m.stageContext(ctx, item)

	actx, cancel := m.adapterContext(ctx)
	analysis, err := m.analyzer.Analyze(actx, item.Path, string(item.Kind))
	cancel()
	item.IncrementAttempt(store.StageAnalyzing)
	if err != nil {
		return m.handleFailure(ctx, item, "analyze", err, log)
	}

	item.Analysis = &analysis
	item.NextAttemptAt = time.Time{}
	if err := m.store.MoveToStage(item, store.StageCaptioning); err != nil {
		log.Warn("could not record analysis", logging.Error(err))
		return advanceOutcome{}
	}
	log.Info("analysis complete",
		logging.Int("labels", len(analysis.Labels)),
		logging.String("category", analysis.Category),
	)
	m.counters.Add(monitoring.CounterAdvanced, 1)
	return advanceOutcome{advanced: 1}
}

func (m *Manager) advanceCaptioning(ctx context.Context, item *store.Item) advanceOutcome {
	ctx, log := m.stageContext(ctx, item)

	// A caption generated on an earlier tick is reused, never regenerated;
	// the rate-limit gate below can hold an item here across many ticks.
	if item.Caption == "" {
		style := ""
		if user, ok := m.cfg.UserByName(item.User); ok {
			style = user.CaptionStyle
		}
		var analysis services.Analysis
		if item.Analysis != nil {
			analysis = *item.Analysis
		}
		req := services.CaptionRequest{
			Analysis:  analysis,
			User:      item.User,
			Style:     style,
			MediaKind: string(item.Kind),
			MaxLength: m.cfg.Caption.MaxLength,
		}

		cctx, cancel := m.adapterContext(ctx)
		caption, err := m.captioner.GenerateCaption(cctx, req)
		cancel()
		item.IncrementAttempt(store.StageCaptioning)
		if err != nil {
			return m.handleFailure(ctx, item, "generate caption", err, log)
		}
		item.Caption = caption
		if err := m.store.SaveItem(item); err != nil {
			log.Warn("could not record caption", logging.Error(err))
			return advanceOutcome{}
		}
		log.Info("caption generated", logging.Int("length", len(caption)))
	}

	scope := m.limiter.ScopeFor(item.User)
	if ok, wait := m.limiter.CanPublishNow(scope); !ok {
		// Not a failure: the item waits here with its caption intact.
		log.Debug("publish gate closed",
			logging.String("scope", scope),
			logging.Duration("wait", wait),
		)
		m.counters.Add(monitoring.CounterRateLimited, 1)
		return advanceOutcome{rateLimited: 1}
	}

	item.NextAttemptAt = time.Time{}
	if err := m.store.MoveToStage(item, store.StagePublishing); err != nil {
		log.Warn("could not enter publish queue", logging.Error(err))
		return advanceOutcome{}
	}
	m.counters.Add(monitoring.CounterAdvanced, 1)
	return advanceOutcome{advanced: 1}
}

func (m *Manager) advancePublishing(ctx context.Context, item *store.Item) advanceOutcome {
	ctx, log := m.stageContext(ctx, item)

	// Per-scope serialization: two items sharing a scope can never race
	// through the gate and double-publish inside the minimum delay.
	scope := m.limiter.ScopeFor(item.User)
	lock := m.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	if ok, wait := m.limiter.CanPublishNow(scope); !ok {
		log.Debug("publish gate closed at publish time",
			logging.String("scope", scope),
			logging.Duration("wait", wait),
		)
		m.counters.Add(monitoring.CounterRateLimited, 1)
		return advanceOutcome{rateLimited: 1}
	}

	req := services.PublishRequest{
		FilePath:  item.Path,
		MediaKind: string(item.Kind),
		Caption:   item.Caption,
		Credentials: services.Credentials{
			AccountID:   m.cfg.Publish.AccountID,
			AccessToken: m.cfg.Publish.AccessToken,
		},
	}

	pctx, cancel := m.adapterContext(ctx)
	result, err := m.publisher.Publish(pctx, req)
	cancel()
	item.IncrementAttempt(store.StagePublishing)
	if err != nil {
		return m.handleFailure(ctx, item, "publish", err, log)
	}

	// Ledger update only after the platform confirmed the post.
	m.limiter.RecordPublish(scope, m.now())

	item.PostID = result.PostID
	item.NextAttemptAt = time.Time{}
	if err := m.store.MoveToStage(item, store.StageDone); err != nil {
		log.Error("published but could not record completion",
			logging.String("post_id", result.PostID),
			logging.Error(err),
		)
		return advanceOutcome{}
	}
	log.Info("published", logging.String("post_id", result.PostID))

	m.counters.Add(monitoring.CounterAdvanced, 1)
	m.counters.Add(monitoring.CounterSucceeded, 1)
	m.statsMu.Lock()
	m.sessionSucceeded++
	m.statsMu.Unlock()

	m.recordOutcome(ctx, item)
	m.notifyAsync(ctx, log, "publish notification failed", func(nctx context.Context) error {
		return m.notifier.NotifyPublished(nctx, item.User, item.OriginalName, result.PostID)
	})
	return advanceOutcome{advanced: 1, published: 1}
}

// handleFailure applies the retry policy to one failed adapter call. The
// attempt was already counted by the caller.
func (m *Manager) handleFailure(ctx context.Context, item *store.Item, operation string, cause error, log *slog.Logger) advanceOutcome {
	stage := item.Stage
	classified := services.ClassifyAdapterError(string(stage), operation, cause)
	consumed := item.AttemptCount(stage)
	isFinal := services.IsPermanent(classified) || consumed >= m.cfg.Pipeline.MaxAttemptsFor(string(stage))

	if isFinal {
		if err := m.store.RecordFailureFinal(item, classified); err != nil {
			log.Error("could not record final failure", logging.Error(err))
			return advanceOutcome{}
		}
		log.Warn("item failed",
			logging.Int("attempts", consumed),
			logging.Bool("permanent", services.IsPermanent(classified)),
			logging.Error(classified),
		)
		m.counters.Add(monitoring.CounterFailed, 1)
		m.statsMu.Lock()
		m.sessionFailed++
		m.statsMu.Unlock()

		m.recordOutcome(ctx, item)
		m.notifyAsync(ctx, log, "failure notification failed", func(nctx context.Context) error {
			return m.notifier.NotifyItemFailed(nctx, item.User, item.OriginalName, string(stage), classified)
		})
		return advanceOutcome{failed: 1}
	}

	delay := m.backoff.Delay(consumed)
	if services.IsRateLimited(classified) && delay < m.rateMinDelay {
		// Platform throttle: cool down at least as long as the configured
		// minimum publish spacing.
		delay = m.rateMinDelay
	}
	if err := m.store.RecordFailureRetry(item, classified, m.now().Add(delay)); err != nil {
		log.Error("could not record retry", logging.Error(err))
		return advanceOutcome{}
	}
	log.Warn("attempt failed, will retry",
		logging.Int("attempt", consumed),
		logging.Duration("backoff", delay),
		logging.Error(classified),
	)
	m.counters.Add(monitoring.CounterRetried, 1)
	return advanceOutcome{retried: 1}
}

func (m *Manager) recordOutcome(ctx context.Context, item *store.Item) {
	if m.archiver == nil {
		return
	}
	if err := m.archiver.Record(ctx, item); err != nil {
		m.logger.Warn("archive record failed",
			logging.String(logging.FieldItemID, item.ID),
			logging.Error(err),
		)
	}
}

func (m *Manager) adapterContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.adapterTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.adapterTimeout)
}
