package store

import (
	"path/filepath"
)

// SidecarSuffix is appended to a media filename to name its metadata record.
const SidecarSuffix = ".meta.json"

// Layout maps stages to physical directories.
//
//	watch/<user>/{images,videos}/  stage = discovered
//	queue/<user>/<stage>/          in-flight stages
//	processed/<user>/              terminal success
//	failed/<user>/                 terminal failure
type Layout struct {
	WatchDir     string
	QueueDir     string
	ProcessedDir string
	FailedDir    string

	// UserWatchDirs optionally overrides the watch root for individual
	// users (shared-folder deployments mount per-user drops anywhere).
	UserWatchDirs map[string]string
}

// WatchRoot returns the watch directory for one user.
func (l Layout) WatchRoot(user string) string {
	if dir, ok := l.UserWatchDirs[user]; ok && dir != "" {
		return dir
	}
	return filepath.Join(l.WatchDir, user)
}

// WatchKindDir returns the watch subdirectory for a media kind.
func (l Layout) WatchKindDir(user string, kind MediaKind) string {
	sub := "images"
	if kind == MediaVideo {
		sub = "videos"
	}
	return filepath.Join(l.WatchRoot(user), sub)
}

// StageDir returns the directory holding a user's items at the given stage.
func (l Layout) StageDir(user string, stage Stage) string {
	switch stage {
	case StageDone:
		return filepath.Join(l.ProcessedDir, user)
	case StageFailed:
		return filepath.Join(l.FailedDir, user)
	default:
		return filepath.Join(l.QueueDir, user, string(stage))
	}
}

// SidecarPath returns the metadata record path for a media file path.
func SidecarPath(mediaPath string) string {
	return mediaPath + SidecarSuffix
}

// MediaPathFromSidecar reverses SidecarPath.
func MediaPathFromSidecar(sidecarPath string) (string, bool) {
	if len(sidecarPath) <= len(SidecarSuffix) {
		return "", false
	}
	cut := len(sidecarPath) - len(SidecarSuffix)
	if sidecarPath[cut:] != SidecarSuffix {
		return "", false
	}
	return sidecarPath[:cut], true
}

// IsSidecar reports whether the path names a metadata record.
func IsSidecar(path string) bool {
	_, ok := MediaPathFromSidecar(path)
	return ok
}
