package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"snapflow/internal/archive"
	"snapflow/internal/config"
	"snapflow/internal/logging"
	"snapflow/internal/monitoring"
	"snapflow/internal/pipeline"
	"snapflow/internal/store"
)

// Daemon runs the scheduler and the local API, enforcing single-instance
// execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	manager  *pipeline.Manager
	counters *monitoring.Counters
	archive  *archive.Store
	api      *apiServer
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	QueueCounts  map[store.Stage]int
	Counters     monitoring.Snapshot
	LockFilePath string
	ArchivePath  string
}

// New constructs a daemon with initialized dependencies. The archive may be
// nil when the outcome index is disabled.
func New(cfg *config.Config, st *store.Store, mgr *pipeline.Manager, counters *monitoring.Counters, arc *archive.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || mgr == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, scheduler, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "snapflowd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		manager:  mgr,
		counters: counters,
		archive:  arc,
		logPath:  filepath.Join(cfg.Paths.LogDir, "snapflow.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, launches the scheduler, and binds the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another snapflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			cancel()
			d.cancel = nil
			_ = d.lock.Unlock()
			return err
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.manager.Run(runCtx); err != nil {
			d.logger.Error("scheduler exited", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("snapflow daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the scheduler, closes the API listener, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("snapflow daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.archive != nil {
		return d.archive.Close()
	}
	return nil
}

// APIAddr returns the bound API address, or "" when the API is disabled or
// not yet started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		QueueCounts:  d.store.CountsByStage(),
		LockFilePath: d.lockPath,
	}
	if d.counters != nil {
		st.Counters = d.counters.Snapshot()
	}
	if d.archive != nil {
		st.ArchivePath = d.cfg.Archive.Path
	}
	return st
}

// ListQueue returns work items, optionally filtered by stage and user.
func (d *Daemon) ListQueue(ctx context.Context, stages []store.Stage, user string) ([]*store.Item, error) {
	if len(stages) == 0 {
		stages = append(store.ActiveStages(), store.StageDone, store.StageFailed)
	}
	var items []*store.Item
	for _, stage := range stages {
		listed, err := d.store.ListStage(stage)
		if err != nil {
			return nil, fmt.Errorf("list stage %s: %w", stage, err)
		}
		for _, item := range listed {
			if user != "" && item.User != user {
				continue
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// History returns archived terminal outcomes for a user, newest first.
func (d *Daemon) History(ctx context.Context, user string, limit int) ([]archive.Entry, error) {
	if d.archive == nil {
		return nil, errors.New("outcome archive is not enabled")
	}
	return d.archive.History(ctx, user, limit)
}

// TestNotification sends a test push through the configured topic.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := monitoring.NewNotifier(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
