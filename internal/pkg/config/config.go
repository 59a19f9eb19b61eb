// Package config предоставляет управление конфигурацией приложения
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Server содержит конфигурацию сервера
type Server struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxUploadSizeMB int           `json:"max_upload_size_mb" yaml:"max_upload_size_mb"`
}

// InferenceEndpoint содержит адрес одного экземпляра сервиса инференса
type InferenceEndpoint struct {
	ID    string `json:"id" yaml:"id"`
	URL   string `json:"url" yaml:"url"`
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Inference содержит конфигурацию пула сервисов инференса
type Inference struct {
	Endpoints           []InferenceEndpoint `json:"endpoints" yaml:"endpoints"`
	HealthCheckInterval time.Duration       `json:"health_check_interval" yaml:"health_check_interval"`
	RequestTimeout      time.Duration       `json:"request_timeout" yaml:"request_timeout"`
	MaxRetries          int                 `json:"max_retries" yaml:"max_retries"`
}

// Enrichment содержит конфигурацию сервиса обогащения сообщений
type Enrichment struct {
	BatchSize    int           `json:"batch_size" yaml:"batch_size"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	TotalTimeout time.Duration `json:"total_timeout" yaml:"total_timeout"`
}

// Analysis содержит параметры анализа чата
type Analysis struct {
	DateOrder              string  `json:"date_order" yaml:"date_order"` // dmy или mdy
	TopEmojis              int     `json:"top_emojis" yaml:"top_emojis"`
	TopWords               int     `json:"top_words" yaml:"top_words"`
	NeutralThreshold       float64 `json:"neutral_threshold" yaml:"neutral_threshold"`
	StrongEmotionThreshold float64 `json:"strong_emotion_threshold" yaml:"strong_emotion_threshold"`
	Anonymize              bool    `json:"anonymize" yaml:"anonymize"`
}

// Processing содержит конфигурацию обработки
type Processing struct {
	TaskTimeout time.Duration `json:"task_timeout" yaml:"task_timeout"` // 0 - без ограничений
	CacheTTL    time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// Security содержит ключ сервера для расшифровки загрузок
type Security struct {
	// PrivateKey — закрытый ключ X25519 в base64. Пустое значение отключает
	// прием зашифрованных загрузок.
	PrivateKey string `json:"private_key" yaml:"private_key"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// Config содержит конфигурацию приложения
type Config struct {
	Server     Server     `json:"server" yaml:"server"`
	Inference  Inference  `json:"inference" yaml:"inference"`
	Enrichment Enrichment `json:"enrichment" yaml:"enrichment"`
	Analysis   Analysis   `json:"analysis" yaml:"analysis"`
	Processing Processing `json:"processing" yaml:"processing"`
	Security   Security   `json:"security" yaml:"security"`
	Logging    Logging    `json:"logging" yaml:"logging"`
}

// defaultConfig возвращает конфигурацию со значениями по умолчанию
func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Host:            DefaultServerHost,
			Port:            DefaultServerPort,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxUploadSizeMB: DefaultMaxUploadSizeMB,
		},
		Inference: Inference{
			HealthCheckInterval: DefaultHealthCheckInterval,
			RequestTimeout:      DefaultInferenceRequestTimeout,
			MaxRetries:          DefaultInferenceMaxRetries,
		},
		Enrichment: Enrichment{
			BatchSize:    DefaultEnrichmentBatchSize,
			PoolSize:     DefaultEnrichmentPoolSize,
			TotalTimeout: DefaultEnrichmentTotalTimeout,
		},
		Analysis: Analysis{
			DateOrder:              DefaultDateOrder,
			TopEmojis:              DefaultTopEmojis,
			TopWords:               DefaultTopWords,
			NeutralThreshold:       DefaultNeutralThreshold,
			StrongEmotionThreshold: DefaultStrongEmotionThreshold,
		},
		Processing: Processing{
			TaskTimeout: DefaultTaskTimeout,
			CacheTTL:    DefaultCacheTTL,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем YAML-файл
// (если он существует), затем переменные окружения и .env файл.
func LoadConfig(path string) (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path != "" {
		if err := loadFromYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("не удалось применить переменные окружения: %w", err)
	}

	return cfg, nil
}

// loadFromYAML накладывает значения из YAML-файла поверх cfg.
// Отсутствие файла не является ошибкой.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return nil
}

// applyEnv переопределяет отдельные значения из переменных окружения
func applyEnv(cfg *Config) error {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("недопустимый SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SERVER_PRIVATE_KEY"); v != "" {
		cfg.Security.PrivateKey = v
	}
	if v := os.Getenv("INFERENCE_URL"); v != "" {
		// Одиночный адрес из окружения заменяет список из файла.
		cfg.Inference.Endpoints = []InferenceEndpoint{{ID: "env", URL: v, Token: os.Getenv("INFERENCE_TOKEN")}}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes возвращает ограничение размера загрузки в байтах
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadSizeMB) << 20
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if len(c.Inference.Endpoints) == 0 {
		return fmt.Errorf("конфигурация inference.endpoints не найдена или пуста")
	}
	seen := make(map[string]bool, len(c.Inference.Endpoints))
	for i, e := range c.Inference.Endpoints {
		if e.URL == "" {
			return fmt.Errorf("inference.endpoints[%d].url не может быть пустым", i)
		}
		if e.ID != "" && seen[e.ID] {
			return fmt.Errorf("inference.endpoints[%d].id %q повторяется", i, e.ID)
		}
		seen[e.ID] = true
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout должно быть положительным")
	}

	if c.Server.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("server.max_upload_size_mb должно быть положительным")
	}

	if c.Inference.HealthCheckInterval <= 0 {
		return fmt.Errorf("inference.health_check_interval должно быть положительным")
	}

	if c.Inference.RequestTimeout <= 0 {
		return fmt.Errorf("inference.request_timeout должно быть положительным")
	}

	if c.Inference.MaxRetries < 0 {
		return fmt.Errorf("inference.max_retries должно быть неотрицательным")
	}

	if c.Enrichment.BatchSize <= 0 {
		return fmt.Errorf("enrichment.batch_size должно быть положительным")
	}

	if c.Enrichment.PoolSize <= 0 {
		return fmt.Errorf("enrichment.pool_size должно быть положительным")
	}

	if c.Enrichment.TotalTimeout <= 0 {
		return fmt.Errorf("enrichment.total_timeout должно быть положительным")
	}

	switch c.Analysis.DateOrder {
	case "dmy", "mdy":
	default:
		return fmt.Errorf("analysis.date_order должен быть одним из: dmy, mdy")
	}

	if c.Analysis.TopEmojis <= 0 || c.Analysis.TopWords <= 0 {
		return fmt.Errorf("analysis.top_emojis и analysis.top_words должны быть положительными")
	}

	if c.Analysis.NeutralThreshold <= 0 || c.Analysis.NeutralThreshold > 1 {
		return fmt.Errorf("analysis.neutral_threshold должен лежать в (0, 1]")
	}

	if c.Analysis.StrongEmotionThreshold < 0 || c.Analysis.StrongEmotionThreshold >= 1 {
		return fmt.Errorf("analysis.strong_emotion_threshold должен лежать в [0, 1)")
	}

	if c.Processing.TaskTimeout < 0 {
		return fmt.Errorf("processing.task_timeout должно быть неотрицательным (0 для отсутствия ограничений)")
	}

	if c.Processing.CacheTTL <= 0 {
		return fmt.Errorf("processing.cache_ttl должно быть положительным")
	}

	if c.Security.PrivateKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.Security.PrivateKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("security.private_key должен быть 32-байтовым ключом в base64")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format должен быть одним из: json, text")
	}

	return nil
}
