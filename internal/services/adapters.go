package services

import "context"

// Analysis is the result of content analysis for one media file.
type Analysis struct {
	Labels     []string           `json:"labels"`
	Confidence map[string]float64 `json:"confidence,omitempty"`
	Category   string             `json:"category,omitempty"`
}

// Analyzer inspects a media file and returns descriptive labels.
type Analyzer interface {
	Analyze(ctx context.Context, filePath, mediaKind string) (Analysis, error)
}

// CaptionRequest carries everything the caption adapter needs for one call.
type CaptionRequest struct {
	Analysis  Analysis
	User      string
	Style     string
	MediaKind string
	MaxLength int
}

// Captioner turns analysis output into platform-ready caption text.
type Captioner interface {
	GenerateCaption(ctx context.Context, req CaptionRequest) (string, error)
}

// Credentials identifies the platform account used for publishing. The
// pipeline threads these through without interpreting them, so per-user
// credentials are a configuration change rather than a scheduler change.
type Credentials struct {
	AccountID   string
	AccessToken string
}

// PublishRequest carries one publish attempt.
type PublishRequest struct {
	FilePath    string
	MediaKind   string
	Caption     string
	Credentials Credentials
}

// PublishResult is returned on a confirmed successful publish.
type PublishResult struct {
	PostID string
}

// Publisher pushes one media file with its caption to the platform.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
}
