package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"snapflow/internal/config"
	"snapflow/internal/fileutil"
	"snapflow/internal/logging"
)

// ErrUnknownStage is returned for transitions into an unrecognized stage.
var ErrUnknownStage = errors.New("unknown stage")

// ErrIllegalTransition is returned when a move violates the forward-only
// (plus retry) transition rule.
var ErrIllegalTransition = errors.New("illegal stage transition")

// Option customizes store construction.
type Option func(*Store)

// WithNow overrides the clock (used in tests).
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type indexEntry struct {
	stage Stage
	path  string
}

// Store is the directory-backed work item repository. All mutation goes
// through the scheduler loop; the in-memory index is a pure acceleration of
// what a directory listing would return and is rebuilt by Recover.
type Store struct {
	layout Layout
	users  []string
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	index map[string]indexEntry
}

// New constructs a store over the given layout for the registered users.
func New(layout Layout, users []string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		layout: layout,
		users:  append([]string{}, users...),
		logger: logging.NewComponentLogger(logger, "store"),
		now:    time.Now,
		index:  make(map[string]indexEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds a store over the directory roots in cfg, honoring per-user
// watch overrides, and creates the stage tree.
func Open(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Store, error) {
	layout := Layout{
		WatchDir:     cfg.Paths.WatchDir,
		QueueDir:     cfg.Paths.QueueDir,
		ProcessedDir: cfg.Paths.ProcessedDir,
		FailedDir:    cfg.Paths.FailedDir,
	}
	for _, user := range cfg.Users {
		if strings.TrimSpace(user.WatchDir) == "" {
			continue
		}
		if layout.UserWatchDirs == nil {
			layout.UserWatchDirs = make(map[string]string)
		}
		layout.UserWatchDirs[user.Name] = user.WatchDir
	}

	s := New(layout, cfg.UserNames(), logger, opts...)
	if err := s.EnsureDirectories(); err != nil {
		return nil, err
	}
	return s, nil
}

// Layout exposes the directory mapping (read-only).
func (s *Store) Layout() Layout {
	return s.layout
}

// EnsureDirectories creates the stage directory tree for all users.
func (s *Store) EnsureDirectories() error {
	for _, user := range s.users {
		for _, kind := range []MediaKind{MediaImage, MediaVideo} {
			if err := os.MkdirAll(s.layout.WatchKindDir(user, kind), 0o755); err != nil {
				return fmt.Errorf("create watch dir: %w", err)
			}
		}
		for _, stage := range []Stage{StageAnalyzing, StageCaptioning, StagePublishing, StageDone, StageFailed} {
			if err := os.MkdirAll(s.layout.StageDir(user, stage), 0o755); err != nil {
				return fmt.Errorf("create stage dir: %w", err)
			}
		}
	}
	return nil
}

// Known reports whether a media file has already been admitted (its sidecar
// exists). Used by the scanner to skip files it has seen.
func (s *Store) Known(mediaPath string) bool {
	_, err := os.Stat(SidecarPath(mediaPath))
	return err == nil
}

// HasContent reports whether an item already exists for (user, contentHash)
// in any non-purged state.
func (s *Store) HasContent(user, contentHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[DedupKey(user, contentHash)]
	return ok
}

// Admit creates a work item for a newly observed file. Returns nil when an
// item for the same (user, content hash) already exists in any non-purged
// state: re-dropping identical content is a no-op.
func (s *Store) Admit(user, path string, kind MediaKind) (*Item, error) {
	hash, err := fileutil.HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}

	key := DedupKey(user, hash)
	s.mu.Lock()
	if _, exists := s.index[key]; exists {
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	now := s.now().UTC()
	item := &Item{
		ID:             NewItemID(user, filepath.Base(path), hash),
		User:           user,
		Kind:           kind,
		OriginalName:   filepath.Base(path),
		ContentHash:    hash,
		Stage:          StageDiscovered,
		DiscoveredAt:   now,
		StageEnteredAt: now,
		Path:           path,
	}
	if err := s.writeSidecar(item); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.index[key] = indexEntry{stage: StageDiscovered, path: path}
	s.mu.Unlock()

	s.logger.Info("admitted work item",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldUser, user),
		logging.String("kind", string(kind)),
		logging.String("content_hash", shortHash(hash)),
	)
	return item, nil
}

// AdmitFailed routes a file straight to the failed directory without entering
// the pipeline. An oversized file consumes no adapter attempt.
func (s *Store) AdmitFailed(user, path string, kind MediaKind, reason string) (*Item, error) {
	item, err := s.Admit(user, path, kind)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	if err := s.RecordFailureFinal(item, errors.New(reason)); err != nil {
		return nil, err
	}
	return item, nil
}

// SaveItem rewrites the item's sidecar in place. Used for progress that does
// not change stage (stored analysis, generated caption, attempt counts).
func (s *Store) SaveItem(item *Item) error {
	return s.writeSidecar(item)
}

// MoveToStage advances (or retries) an item, relocating the media file and
// its sidecar into the target stage directory. The media move is a single
// rename on one filesystem; the sidecar is rewritten at the destination
// before the stale source record is removed, so a crash between the two
// leaves a recoverable file, never a lost one.
func (s *Store) MoveToStage(item *Item, target Stage) error {
	if _, ok := stageSet[target]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStage, target)
	}
	if !item.Stage.CanTransition(target) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, item.Stage, target)
	}

	now := s.now().UTC()
	if target == item.Stage {
		// Retry requeue: the item stays put, only its record changes.
		item.StageEnteredAt = now
		return s.writeSidecar(item)
	}

	oldPath := item.Path
	oldSidecar := SidecarPath(oldPath)
	newPath := filepath.Join(s.layout.StageDir(item.User, target), s.stageFileName(item))

	if err := fileutil.MoveFile(oldPath, newPath); err != nil {
		return fmt.Errorf("move %s to %s: %w", item.ID, target, err)
	}

	item.Stage = target
	item.StageEnteredAt = now
	item.Path = newPath
	if target.IsTerminal() {
		completed := now
		item.CompletedAt = &completed
	}

	if err := s.writeSidecar(item); err != nil {
		return err
	}
	if oldSidecar != SidecarPath(newPath) {
		if err := os.Remove(oldSidecar); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("stale sidecar left behind",
				logging.String(logging.FieldItemID, item.ID),
				logging.String("path", oldSidecar),
				logging.Error(err),
			)
		}
	}

	s.mu.Lock()
	s.index[item.DedupKey()] = indexEntry{stage: target, path: newPath}
	s.mu.Unlock()
	return nil
}

// RecordFailureRetry writes error detail for a failed attempt and requeues
// the item at its current stage, gated until nextAttempt. The caller owns
// attempt accounting; the recorded attempt number is the count already
// consumed at this stage.
func (s *Store) RecordFailureRetry(item *Item, stageErr error, nextAttempt time.Time) error {
	item.RecordError(item.Stage, item.AttemptCount(item.Stage), errorMessage(stageErr), s.now().UTC())
	item.NextAttemptAt = nextAttempt.UTC()
	return s.MoveToStage(item, item.Stage)
}

// RecordFailureFinal moves the item to the failed directory with its full
// error history and writes the human-readable error detail file beside it.
func (s *Store) RecordFailureFinal(item *Item, stageErr error) error {
	item.RecordError(item.Stage, item.AttemptCount(item.Stage), errorMessage(stageErr), s.now().UTC())
	if err := s.MoveToStage(item, StageFailed); err != nil {
		return err
	}
	return s.writeErrorDetail(item)
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// ListStage enumerates the items currently at a stage, oldest first by
// discovery time. Individually unreadable records are logged and skipped or
// downgraded rather than failing the listing: the pipeline keeps making
// progress when one file's metadata is corrupt.
func (s *Store) ListStage(stage Stage) ([]*Item, error) {
	var dirs []string
	if stage == StageDiscovered {
		for _, user := range s.users {
			dirs = append(dirs, s.layout.WatchKindDir(user, MediaImage), s.layout.WatchKindDir(user, MediaVideo))
		}
	} else {
		for _, user := range s.users {
			dirs = append(dirs, s.layout.StageDir(user, stage))
		}
	}

	var items []*Item
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			s.logger.Warn("stage directory unreadable",
				logging.String("dir", dir),
				logging.String(logging.FieldStage, string(stage)),
				logging.Error(err),
			)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsSidecar(entry.Name()) {
				continue
			}
			sidecar := filepath.Join(dir, entry.Name())
			item, err := s.loadItem(sidecar, stage)
			if err != nil {
				s.logger.Warn("skipping unreadable work item",
					logging.String("sidecar", sidecar),
					logging.Error(err),
				)
				continue
			}
			if item != nil {
				items = append(items, item)
			}
		}
	}

	sort.Slice(items, func(a, b int) bool {
		if items[a].DiscoveredAt.Equal(items[b].DiscoveredAt) {
			return items[a].ID < items[b].ID
		}
		return items[a].DiscoveredAt.Before(items[b].DiscoveredAt)
	})
	return items, nil
}

// CountsByStage returns the number of indexed items per stage.
func (s *Store) CountsByStage() map[Stage]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Stage]int, len(stageSet))
	for _, entry := range s.index {
		counts[entry.stage]++
	}
	return counts
}

// PurgeExpired removes terminal items completed before the cutoff, freeing
// their (user, content hash) identity for re-admission. Returns the number
// of purged items.
func (s *Store) PurgeExpired(cutoff time.Time) (int, error) {
	purged := 0
	for _, stage := range []Stage{StageDone, StageFailed} {
		items, err := s.ListStage(stage)
		if err != nil {
			return purged, err
		}
		for _, item := range items {
			if item.CompletedAt == nil || item.CompletedAt.After(cutoff) {
				continue
			}
			for _, path := range []string{item.Path, SidecarPath(item.Path), errorDetailPath(item.Path)} {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					s.logger.Warn("purge left file behind", logging.String("path", path), logging.Error(err))
				}
			}
			s.mu.Lock()
			delete(s.index, item.DedupKey())
			s.mu.Unlock()
			purged++
		}
	}
	return purged, nil
}

func (s *Store) stageFileName(item *Item) string {
	ext := strings.ToLower(filepath.Ext(item.OriginalName))
	return item.ID + ext
}

func (s *Store) writeSidecar(item *Item) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar for %s: %w", item.ID, err)
	}
	if err := fileutil.WriteFileAtomic(SidecarPath(item.Path), data, 0o644); err != nil {
		return fmt.Errorf("write sidecar for %s: %w", item.ID, err)
	}
	return nil
}

// loadItem reads a sidecar. A corrupt record is not fatal: the item is
// reconstructed from its physical location with zero attempts, per the
// store-integrity policy.
func (s *Store) loadItem(sidecarPath string, locationStage Stage) (*Item, error) {
	mediaPath, ok := MediaPathFromSidecar(sidecarPath)
	if !ok {
		return nil, fmt.Errorf("not a sidecar path: %s", sidecarPath)
	}
	if _, err := os.Stat(mediaPath); err != nil {
		if os.IsNotExist(err) {
			// Orphaned record, usually the source half of an interrupted
			// cross-device move. Recover cleans these up.
			return nil, fmt.Errorf("media file missing for %s", sidecarPath)
		}
		return nil, err
	}

	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return nil, err
	}

	item := &Item{}
	if err := json.Unmarshal(data, item); err != nil || item.ID == "" || item.User == "" {
		rebuilt, rebuildErr := s.rebuildItem(mediaPath, locationStage)
		if rebuildErr != nil {
			return nil, fmt.Errorf("sidecar corrupt and rebuild failed: %w", rebuildErr)
		}
		s.logger.Warn("sidecar corrupt, rebuilt from location",
			logging.String("sidecar", sidecarPath),
			logging.String(logging.FieldItemID, rebuilt.ID),
		)
		if err := s.writeSidecar(rebuilt); err != nil {
			return nil, err
		}
		return rebuilt, nil
	}

	item.Path = mediaPath
	item.Stage = locationStage
	return item, nil
}

// rebuildItem synthesizes a fresh record for a media file whose sidecar is
// missing or unreadable. Attempts reset to zero; the location keeps its
// stage meaning.
func (s *Store) rebuildItem(mediaPath string, locationStage Stage) (*Item, error) {
	hash, err := fileutil.HashFile(mediaPath)
	if err != nil {
		return nil, err
	}
	user := s.userForPath(mediaPath)
	kind := MediaImage
	if strings.Contains(mediaPath, string(filepath.Separator)+"videos"+string(filepath.Separator)) {
		kind = MediaVideo
	}
	now := s.now().UTC()
	item := &Item{
		ID:             NewItemID(user, filepath.Base(mediaPath), hash),
		User:           user,
		Kind:           kind,
		OriginalName:   filepath.Base(mediaPath),
		ContentHash:    hash,
		Stage:          locationStage,
		DiscoveredAt:   now,
		StageEnteredAt: now,
		Path:           mediaPath,
	}
	s.mu.Lock()
	s.index[item.DedupKey()] = indexEntry{stage: locationStage, path: mediaPath}
	s.mu.Unlock()
	return item, nil
}

func (s *Store) userForPath(path string) string {
	for _, user := range s.users {
		for _, root := range []string{
			s.layout.WatchRoot(user),
			filepath.Join(s.layout.QueueDir, user),
			filepath.Join(s.layout.ProcessedDir, user),
			filepath.Join(s.layout.FailedDir, user),
		} {
			if strings.HasPrefix(path, root+string(filepath.Separator)) {
				return user
			}
		}
	}
	return "unknown"
}

func (s *Store) writeErrorDetail(item *Item) error {
	var b strings.Builder
	fmt.Fprintf(&b, "item: %s\nuser: %s\nfile: %s\n\n", item.ID, item.User, item.OriginalName)
	for _, rec := range item.ErrorHistory {
		fmt.Fprintf(&b, "%s stage=%s attempt=%d %s\n", rec.At.Format(time.RFC3339), rec.Stage, rec.Attempt, rec.Message)
	}
	return fileutil.WriteFileAtomic(errorDetailPath(item.Path), []byte(b.String()), 0o644)
}

func errorDetailPath(mediaPath string) string {
	return mediaPath + ".error.txt"
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
