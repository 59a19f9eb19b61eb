package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxUploadSizeMB = 10
	DefaultCleanupInterval = 1 * time.Hour

	// Processing defaults
	DefaultTaskTimeout = 600 * time.Second
	DefaultCacheTTL    = 60 * time.Minute

	// Inference defaults
	DefaultHealthCheckInterval     = 30 * time.Second
	DefaultInferenceRequestTimeout = 30 * time.Second
	DefaultInferenceMaxRetries     = 3

	// Enrichment defaults
	DefaultEnrichmentBatchSize    = 32
	DefaultEnrichmentPoolSize     = 2
	DefaultEnrichmentTotalTimeout = 10 * time.Minute

	// Analysis defaults
	DefaultDateOrder              = "dmy"
	DefaultTopEmojis              = 10
	DefaultTopWords               = 20
	DefaultNeutralThreshold       = 0.70
	DefaultStrongEmotionThreshold = 0.30

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
