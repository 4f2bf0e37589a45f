package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"snapflow/internal/config"
	"snapflow/internal/logging"
	"snapflow/internal/monitoring"
	"snapflow/internal/ratelimit"
	"snapflow/internal/scanner"
	"snapflow/internal/services"
	"snapflow/internal/store"
)

// FileScanner is the discovery surface the manager drives each tick.
type FileScanner interface {
	Scan(ctx context.Context) (scanner.Report, error)
}

// Archiver indexes terminal outcomes. Optional; a nil archiver disables the
// history index without affecting the pipeline.
type Archiver interface {
	Record(ctx context.Context, item *store.Item) error
}

// Deps collects the manager's collaborators.
type Deps struct {
	Store     *store.Store
	Scanner   FileScanner
	Limiter   *ratelimit.Limiter
	Analyzer  services.Analyzer
	Captioner services.Captioner
	Publisher services.Publisher
	Notifier  monitoring.Notifier
	Counters  *monitoring.Counters
	Archiver  Archiver
	Logger    *slog.Logger
}

// Option customizes manager construction.
type Option func(*Manager)

// WithNow overrides the clock (used in tests).
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// TickStats summarizes one scheduler tick.
type TickStats struct {
	Admitted    int
	Advanced    int
	Published   int
	Retried     int
	Failed      int
	RateLimited int
	Purged      int
	Skipped     bool
}

// Manager is the scheduler loop. It is the only component that performs
// stage transitions; bounded worker fan-out within a tick is its only
// parallelism. Ticks never overlap: a tick arriving while the previous one
// still runs is skipped.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	scanner   FileScanner
	limiter   *ratelimit.Limiter
	analyzer  services.Analyzer
	captioner services.Captioner
	publisher services.Publisher
	notifier  monitoring.Notifier
	counters  *monitoring.Counters
	archiver  Archiver
	logger    *slog.Logger
	now       func() time.Time

	backoff        Backoff
	adapterTimeout time.Duration
	rateMinDelay   time.Duration
	concurrency    int

	tickMu sync.Mutex

	scopeMu    sync.Mutex
	scopeLocks map[string]*sync.Mutex

	notifyWG sync.WaitGroup

	// session bookkeeping for the queue-drained notification
	statsMu          sync.Mutex
	sessionSucceeded int
	sessionFailed    int
	prevActive       int
	lastSweep        time.Time
}

// New constructs the scheduler over its collaborators.
func New(cfg *config.Config, deps Deps, opts ...Option) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:       cfg,
		store:     deps.Store,
		scanner:   deps.Scanner,
		limiter:   deps.Limiter,
		analyzer:  deps.Analyzer,
		captioner: deps.Captioner,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		counters:  deps.Counters,
		archiver:  deps.Archiver,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		now:       time.Now,

		backoff: Backoff{
			Base: time.Duration(cfg.Pipeline.BackoffBaseSeconds) * time.Second,
			Max:  time.Duration(cfg.Pipeline.BackoffMaxSeconds) * time.Second,
		},
		adapterTimeout: time.Duration(cfg.Pipeline.AdapterTimeout) * time.Second,
		rateMinDelay:   time.Duration(cfg.RateLimit.MinDelayMinutes) * time.Minute,
		concurrency:    cfg.Pipeline.Concurrency,

		scopeLocks: make(map[string]*sync.Mutex),
	}
	if m.concurrency < 1 {
		m.concurrency = 1
	}
	if m.notifier == nil {
		m.notifier = monitoring.NewNotifier(cfg)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run drives ticks until the context is canceled. A slow tick delays the
// next one rather than running alongside it.
func (m *Manager) Run(ctx context.Context) error {
	interval := time.Duration(m.cfg.Pipeline.TickSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("scheduler started",
		logging.Duration("tick", interval),
		logging.Int("concurrency", m.concurrency),
	)

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.notifyWG.Wait()
			m.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass: scan, advance ready items up to the
// concurrency cap, sweep retention, publish counters. Store faults are
// logged and the loop continues; nothing escapes to the process boundary.
func (m *Manager) Tick(ctx context.Context) TickStats {
	stats := TickStats{}
	if !m.tickMu.TryLock() {
		stats.Skipped = true
		return stats
	}
	defer m.tickMu.Unlock()

	now := m.now()

	if m.scanner != nil {
		report, err := m.scanner.Scan(ctx)
		if err != nil && ctx.Err() == nil {
			m.logger.Warn("scan pass failed", logging.Error(err))
		}
		stats.Admitted = report.Admitted
		m.counters.Add(monitoring.CounterDiscovered, int64(report.Admitted))
		if report.Admitted > 0 {
			m.statsMu.Lock()
			m.prevActive += report.Admitted
			m.statsMu.Unlock()
		}
		if report.Oversized > 0 {
			m.counters.Add(monitoring.CounterFailed, int64(report.Oversized))
		}
	}

	stats.Purged = m.maybeSweep(now)

	candidates := m.collect(now)
	if len(candidates) > 0 {
		m.advanceAll(ctx, candidates, &stats)
	}

	m.publishGauges()
	m.maybeNotifyDrained(ctx)

	if stats.Advanced > 0 || stats.Failed > 0 || stats.Retried > 0 {
		m.logger.Info("tick complete",
			logging.Int("advanced", stats.Advanced),
			logging.Int("published", stats.Published),
			logging.Int("retried", stats.Retried),
			logging.Int("failed", stats.Failed),
			logging.Int("rate_limited", stats.RateLimited),
		)
	}
	return stats
}

// collect lists the ready items for this tick. Later stages come first so an
// item near publish is never starved by a flood of new discoveries, and
// within one stage users take turns with their oldest items first.
func (m *Manager) collect(now time.Time) []*store.Item {
	var candidates []*store.Item
	for _, stage := range []store.Stage{store.StagePublishing, store.StageCaptioning, store.StageAnalyzing, store.StageDiscovered} {
		items, err := m.store.ListStage(stage)
		if err != nil {
			m.logger.Warn("stage listing failed",
				logging.String(logging.FieldStage, string(stage)),
				logging.Error(err),
			)
			continue
		}
		ready := items[:0]
		for _, item := range items {
			if item.Ready(now) {
				ready = append(ready, item)
			}
		}
		candidates = append(candidates, roundRobinByUser(ready)...)
	}
	return candidates
}

// roundRobinByUser interleaves items across users, preserving oldest-first
// order within each user's run.
func roundRobinByUser(items []*store.Item) []*store.Item {
	if len(items) < 2 {
		return items
	}
	var order []string
	byUser := make(map[string][]*store.Item)
	for _, item := range items {
		if _, seen := byUser[item.User]; !seen {
			order = append(order, item.User)
		}
		byUser[item.User] = append(byUser[item.User], item)
	}

	out := make([]*store.Item, 0, len(items))
	for len(out) < len(items) {
		for _, user := range order {
			queue := byUser[user]
			if len(queue) == 0 {
				continue
			}
			out = append(out, queue[0])
			byUser[user] = queue[1:]
		}
	}
	return out
}

// advanceAll fans candidates out over the worker pool, one stage transition
// per item per tick.
func (m *Manager) advanceAll(ctx context.Context, candidates []*store.Item, stats *TickStats) {
	sem := make(chan struct{}, m.concurrency)
	var wg sync.WaitGroup
	var statsMu sync.Mutex

	for _, item := range candidates {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(item *store.Item) {
			defer wg.Done()
			defer func() { <-sem }()
			outcome := m.advance(ctx, item)
			statsMu.Lock()
			stats.Advanced += outcome.advanced
			stats.Published += outcome.published
			stats.Retried += outcome.retried
			stats.Failed += outcome.failed
			stats.RateLimited += outcome.rateLimited
			statsMu.Unlock()
		}(item)
	}
	wg.Wait()
}

func (m *Manager) maybeSweep(now time.Time) int {
	retention := time.Duration(m.cfg.Pipeline.RetentionDays) * 24 * time.Hour
	if retention <= 0 {
		return 0
	}
	m.statsMu.Lock()
	due := m.lastSweep.IsZero() || now.Sub(m.lastSweep) >= 24*time.Hour
	if due {
		m.lastSweep = now
	}
	m.statsMu.Unlock()
	if !due {
		return 0
	}

	purged, err := m.store.PurgeExpired(now.Add(-retention))
	if err != nil {
		m.logger.Warn("retention sweep failed", logging.Error(err))
	}
	if purged > 0 {
		m.logger.Info("retention sweep complete", logging.Int("purged", purged))
	}
	return purged
}

func (m *Manager) publishGauges() {
	counts := m.store.CountsByStage()
	// Every stage gets written, so a drained stage reads zero instead of
	// holding its last nonzero value.
	for _, stage := range store.AllStages() {
		m.counters.SetGauge("queued_"+string(stage), int64(counts[stage]))
	}
}

// maybeNotifyDrained fires the queue-drained notification on the transition
// from a busy queue to an empty one.
func (m *Manager) maybeNotifyDrained(ctx context.Context) {
	counts := m.store.CountsByStage()
	active := 0
	for _, stage := range store.ActiveStages() {
		active += counts[stage]
	}

	m.statsMu.Lock()
	wasBusy := m.prevActive > 0
	succeeded, failed := m.sessionSucceeded, m.sessionFailed
	if wasBusy && active == 0 {
		m.sessionSucceeded = 0
		m.sessionFailed = 0
	}
	m.prevActive = active
	m.statsMu.Unlock()

	if wasBusy && active == 0 && (succeeded > 0 || failed > 0) {
		m.notifyAsync(ctx, m.logger, "queue drained notification failed", func(nctx context.Context) error {
			return m.notifier.NotifyQueueDrained(nctx, succeeded, failed)
		})
	}
}

// scopeLock serializes publish attempts within one rate-limit scope.
func (m *Manager) scopeLock(scope string) *sync.Mutex {
	m.scopeMu.Lock()
	defer m.scopeMu.Unlock()
	lock, ok := m.scopeLocks[scope]
	if !ok {
		lock = &sync.Mutex{}
		m.scopeLocks[scope] = lock
	}
	return lock
}

// stageContext annotates ctx with the item's identity and a fresh correlation
// id for this advancement, and returns a logger carrying the same fields.
// Adapters receive the annotated context, so log lines on both sides of an
// adapter call correlate.
func (m *Manager) stageContext(ctx context.Context, item *store.Item) (context.Context, *slog.Logger) {
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithUser(ctx, item.User)
	ctx = services.WithStage(ctx, string(item.Stage))
	ctx = services.WithRequestID(ctx, uuid.NewString())
	return ctx, logging.WithContext(ctx, m.logger)
}

// notifyAsync pushes one notification without holding up the tick. The send
// survives tick cancellation; Run drains in-flight sends on shutdown.
func (m *Manager) notifyAsync(ctx context.Context, log *slog.Logger, what string, send func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	m.notifyWG.Add(1)
	go func() {
		defer m.notifyWG.Done()
		if err := send(ctx); err != nil {
			log.Warn(what, logging.Error(err))
		}
	}()
}
