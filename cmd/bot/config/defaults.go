package config

import "time"

// Значения по умолчанию для конфигурации бота.
const (
	DefaultBackendURL      = "http://localhost:8080"
	DefaultPollingInterval = 3 * time.Second
	DefaultHTTPTimeout     = 60 * time.Second
	DefaultMaxFileSizeMB   = 10
	DefaultMaxPollErrors   = 5
	DefaultTopN            = 5

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
