// Package scanner discovers newly dropped media files in the per-user watch
// directories and admits them into the pipeline.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snapflow/internal/config"
	"snapflow/internal/logging"
	"snapflow/internal/store"
)

// Report summarizes one scan pass.
type Report struct {
	Admitted   int
	Oversized  int
	Duplicates int
	Pending    int // files still inside the quiescence window
}

// Option customizes scanner construction.
type Option func(*Scanner)

// WithNow overrides the clock (used in tests).
func WithNow(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// Scanner walks the watch tree on a wall-clock interval. A file is admitted
// once it has a recognized extension, passes the size limit for its kind, and
// has been quiet (no writes) for the configured window, so a file still being
// copied in is never picked up half-written.
type Scanner struct {
	st     *store.Store
	users  []string
	logger *slog.Logger
	now    func() time.Time

	interval   time.Duration
	quiescence time.Duration
	imageExts  map[string]struct{}
	videoExts  map[string]struct{}
	imageMax   int64
	videoMax   int64
	removeDups bool

	lastScan time.Time
	// seenDuplicates caches kept duplicate paths so they are not re-hashed
	// on every pass.
	seenDuplicates map[string]struct{}
}

// New constructs a scanner over the store's watch directories.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		st:             st,
		users:          cfg.UserNames(),
		logger:         logging.NewComponentLogger(logger, "scanner"),
		now:            time.Now,
		interval:       time.Duration(cfg.Scanner.IntervalMinutes) * time.Minute,
		quiescence:     time.Duration(cfg.Scanner.QuiescenceSeconds) * time.Second,
		imageExts:      extensionSet(cfg.Scanner.ImageExtensions),
		videoExts:      extensionSet(cfg.Scanner.VideoExtensions),
		imageMax:       int64(cfg.Scanner.ImageMaxSizeMB) * 1024 * 1024,
		videoMax:       int64(cfg.Scanner.VideoMaxSizeMB) * 1024 * 1024,
		removeDups:     cfg.Scanner.DuplicatePolicy == config.DuplicateRemove,
		seenDuplicates: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs a pass if the scan interval has elapsed since the previous one.
// Called every scheduler tick; most ticks are a no-op.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	now := s.now()
	if !s.lastScan.IsZero() && now.Sub(s.lastScan) < s.interval {
		return Report{}, nil
	}
	s.lastScan = now
	return s.ScanNow(ctx)
}

// ScanNow runs a pass unconditionally.
func (s *Scanner) ScanNow(ctx context.Context) (Report, error) {
	report := Report{}
	for _, user := range s.users {
		for _, kind := range []store.MediaKind{store.MediaImage, store.MediaVideo} {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := s.scanDir(user, kind, &report); err != nil {
				// One unreadable directory must not stall the others.
				s.logger.Warn("watch directory scan failed",
					logging.String(logging.FieldUser, user),
					logging.String("kind", string(kind)),
					logging.Error(err),
				)
			}
		}
	}

	if report.Admitted > 0 || report.Oversized > 0 || report.Duplicates > 0 {
		s.logger.Info("scan pass complete",
			logging.Int("admitted", report.Admitted),
			logging.Int("oversized", report.Oversized),
			logging.Int("duplicates", report.Duplicates),
			logging.Int("pending", report.Pending),
		)
	}
	return report, nil
}

func (s *Scanner) scanDir(user string, kind store.MediaKind, report *Report) error {
	dir := s.st.Layout().WatchKindDir(user, kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || store.IsSidecar(name) || strings.HasSuffix(name, ".error.txt") {
			continue
		}
		if !s.matchesKind(name, kind) {
			continue
		}

		path := filepath.Join(dir, name)
		if s.st.Known(path) {
			continue
		}
		if _, dup := s.seenDuplicates[path]; dup {
			report.Duplicates++
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if elapsed := s.now().Sub(info.ModTime()); elapsed < s.quiescence {
			if elapsed < 0 {
				// Mtime ahead of the clock: skew, or a file copied in from
				// another host. Treat it as settled instead of holding it
				// forever.
				s.logger.Warn("file modification time ahead of clock, admitting",
					logging.String("path", path),
					logging.Duration("skew", -elapsed),
				)
			} else {
				// Still being written; next pass will see it settled.
				report.Pending++
				continue
			}
		}

		if limit := s.sizeLimit(kind); limit > 0 && info.Size() > limit {
			reason := fmt.Sprintf("%s exceeds size limit: %d bytes (max %d)", kind, info.Size(), limit)
			if _, err := s.st.AdmitFailed(user, path, kind, reason); err != nil {
				s.logger.Warn("could not record oversized file",
					logging.String("path", path),
					logging.Error(err),
				)
				continue
			}
			report.Oversized++
			continue
		}

		item, err := s.st.Admit(user, path, kind)
		if err != nil {
			s.logger.Warn("admission failed",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		if item == nil {
			report.Duplicates++
			s.handleDuplicate(user, path)
			continue
		}
		report.Admitted++
	}
	return nil
}

// handleDuplicate applies the configured duplicate policy to a file whose
// content is already tracked for this user.
func (s *Scanner) handleDuplicate(user, path string) {
	if s.removeDups {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not remove duplicate drop",
				logging.String(logging.FieldUser, user),
				logging.String("path", path),
				logging.Error(err),
			)
			return
		}
		s.logger.Info("removed duplicate drop",
			logging.String(logging.FieldUser, user),
			logging.String("path", path),
		)
		return
	}
	s.seenDuplicates[path] = struct{}{}
	s.logger.Info("ignoring duplicate drop",
		logging.String(logging.FieldUser, user),
		logging.String("path", path),
	)
}

func (s *Scanner) matchesKind(name string, kind store.MediaKind) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if kind == store.MediaVideo {
		_, ok := s.videoExts[ext]
		return ok
	}
	_, ok := s.imageExts[ext]
	return ok
}

func (s *Scanner) sizeLimit(kind store.MediaKind) int64 {
	if kind == store.MediaVideo {
		return s.videoMax
	}
	return s.imageMax
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
