package store

import (
	"os"
	"path/filepath"

	"snapflow/internal/fileutil"
	"snapflow/internal/logging"
)

// RecoveryReport summarizes what Recover found on disk.
type RecoveryReport struct {
	Indexed         int
	DuplicatesFixed int
	OrphansRemoved  int
}

// Recover rebuilds the in-memory index from the directory tree. It is called
// once at startup; afterwards the scheduler resumes as if the last tick had
// just completed, because every item is exactly where its stage says it is.
//
// Recovery also repairs the two artifacts an interrupted cross-device move
// can leave behind: a duplicate (the same content present at both the source
// and destination stage) and an orphaned sidecar whose media file is gone.
// Duplicates resolve in favor of the destination copy when its checksum
// matches the recorded content hash; otherwise the destination is discarded
// and the source copy stands.
func (s *Store) Recover() (RecoveryReport, error) {
	report := RecoveryReport{}

	s.mu.Lock()
	s.index = make(map[string]indexEntry)
	s.mu.Unlock()

	// Later stages are scanned first so the duplicate check always sees the
	// destination copy before the stale source copy.
	scanOrder := []Stage{StageDone, StageFailed, StagePublishing, StageCaptioning, StageAnalyzing, StageDiscovered}

	for _, stage := range scanOrder {
		items, err := s.ListStage(stage)
		if err != nil {
			return report, err
		}
		for _, item := range items {
			key := item.DedupKey()
			s.mu.Lock()
			existing, dup := s.index[key]
			s.mu.Unlock()

			if dup {
				fixed := s.resolveDuplicate(existing, item)
				if fixed {
					report.DuplicatesFixed++
				}
				continue
			}

			s.mu.Lock()
			s.index[key] = indexEntry{stage: item.Stage, path: item.Path}
			s.mu.Unlock()
			report.Indexed++
		}

		report.OrphansRemoved += s.removeOrphanSidecars(stage)
	}

	s.logger.Info("store recovery complete",
		logging.Int("indexed", report.Indexed),
		logging.Int("duplicates_fixed", report.DuplicatesFixed),
		logging.Int("orphans_removed", report.OrphansRemoved),
	)
	return report, nil
}

// resolveDuplicate keeps the destination copy (already indexed, from a later
// stage) when it verifies, and removes the stale source copy. When the
// destination is corrupt the source copy wins instead. Returns true when the
// conflict was repaired.
func (s *Store) resolveDuplicate(kept indexEntry, stale *Item) bool {
	keptHash, err := fileutil.HashFile(kept.path)
	if err == nil && keptHash == stale.ContentHash {
		s.discard(stale.Path)
		s.logger.Warn("removed stale duplicate from interrupted move",
			logging.String(logging.FieldItemID, stale.ID),
			logging.String("kept", kept.path),
			logging.String("removed", stale.Path),
		)
		return true
	}

	// Destination copy missing or corrupt: the source copy is authoritative.
	s.discard(kept.path)
	s.mu.Lock()
	s.index[stale.DedupKey()] = indexEntry{stage: stale.Stage, path: stale.Path}
	s.mu.Unlock()
	s.logger.Warn("discarded corrupt destination copy, source copy restored",
		logging.String(logging.FieldItemID, stale.ID),
		logging.String("kept", stale.Path),
		logging.String("removed", kept.path),
	)
	return true
}

func (s *Store) discard(mediaPath string) {
	for _, path := range []string{mediaPath, SidecarPath(mediaPath)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not remove duplicate artifact", logging.String("path", path), logging.Error(err))
		}
	}
}

// removeOrphanSidecars deletes metadata records whose media file is gone.
func (s *Store) removeOrphanSidecars(stage Stage) int {
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

	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsSidecar(entry.Name()) {
				continue
			}
			sidecar := filepath.Join(dir, entry.Name())
			mediaPath, _ := MediaPathFromSidecar(sidecar)
			if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
				if err := os.Remove(sidecar); err == nil {
					removed++
					s.logger.Warn("removed orphaned sidecar", logging.String("path", sidecar))
				}
			}
		}
	}
	return removed
}
