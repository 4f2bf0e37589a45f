package config

const (
	defaultWatchDir     = "~/.local/share/snapflow/watch"
	defaultQueueDir     = "~/.local/share/snapflow/queue"
	defaultProcessedDir = "~/.local/share/snapflow/processed"
	defaultFailedDir    = "~/.local/share/snapflow/failed"
	defaultLogDir       = "~/.local/share/snapflow/logs"
	defaultAPIBind      = "127.0.0.1:8343"

	defaultScanIntervalMinutes = 30
	defaultQuiescenceSeconds   = 5
	defaultImageMaxSizeMB      = 8
	defaultVideoMaxSizeMB      = 100
	defaultDuplicatePolicy     = DuplicateKeep

	defaultTickSeconds        = 10
	defaultConcurrency        = 2
	defaultMaxAttempts        = 3
	defaultBackoffBaseSeconds = 30
	defaultBackoffMaxSeconds  = 1800
	defaultAdapterTimeout     = 120
	defaultRetentionDays      = 30

	defaultRateLimitMinutes = 60
	defaultRateLimitScope   = "user"

	defaultAnalysisBaseURL = "https://api.openai.com/v1"
	defaultAnalysisModel   = "gpt-4o-mini"
	defaultAnalysisTimeout = 60

	defaultCaptionBaseURL     = "https://api.openai.com/v1"
	defaultCaptionModel       = "gpt-4o"
	defaultCaptionTemperature = 0.7
	defaultCaptionMaxLength   = 2200
	defaultCaptionMaxHashtags = 30
	defaultCaptionTimeout     = 60

	defaultPublishBaseURL = "https://graph.facebook.com/v19.0"
	defaultPublishTimeout = 180

	defaultNotifyRequestTimeout = 10

	defaultArchivePath = "~/.local/share/snapflow/archive.db"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:     defaultWatchDir,
			QueueDir:     defaultQueueDir,
			ProcessedDir: defaultProcessedDir,
			FailedDir:    defaultFailedDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Scanner: Scanner{
			IntervalMinutes:   defaultScanIntervalMinutes,
			QuiescenceSeconds: defaultQuiescenceSeconds,
			ImageExtensions:   []string{".jpg", ".jpeg", ".png", ".webp"},
			VideoExtensions:   []string{".mp4", ".mov", ".m4v"},
			ImageMaxSizeMB:    defaultImageMaxSizeMB,
			VideoMaxSizeMB:    defaultVideoMaxSizeMB,
			DuplicatePolicy:   defaultDuplicatePolicy,
		},
		Pipeline: Pipeline{
			TickSeconds:        defaultTickSeconds,
			Concurrency:        defaultConcurrency,
			MaxAttempts:        defaultMaxAttempts,
			BackoffBaseSeconds: defaultBackoffBaseSeconds,
			BackoffMaxSeconds:  defaultBackoffMaxSeconds,
			AdapterTimeout:     defaultAdapterTimeout,
			RetentionDays:      defaultRetentionDays,
		},
		RateLimit: RateLimit{
			MinDelayMinutes: defaultRateLimitMinutes,
			Scope:           defaultRateLimitScope,
		},
		Analysis: Analysis{
			BaseURL:        defaultAnalysisBaseURL,
			Model:          defaultAnalysisModel,
			TimeoutSeconds: defaultAnalysisTimeout,
		},
		Caption: Caption{
			BaseURL:        defaultCaptionBaseURL,
			Model:          defaultCaptionModel,
			Temperature:    defaultCaptionTemperature,
			MaxLength:      defaultCaptionMaxLength,
			UseHashtags:    true,
			MaxHashtags:    defaultCaptionMaxHashtags,
			TimeoutSeconds: defaultCaptionTimeout,
		},
		Publish: Publish{
			BaseURL:        defaultPublishBaseURL,
			TimeoutSeconds: defaultPublishTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Published:      true,
			Failures:       true,
			QueueDrained:   true,
		},
		Archive: Archive{
			Enabled: true,
			Path:    defaultArchivePath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
