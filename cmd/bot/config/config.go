// Package config содержит конфигурацию Telegram-бота.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// BotConfig содержит конфигурацию для Telegram-бота
type BotConfig struct {
	Token           string        `yaml:"token"`
	BackendURL      string        `yaml:"backend_url"`
	PollingInterval time.Duration `yaml:"polling_interval"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	MaxFileSizeMB   int           `yaml:"max_file_size_mb"`
	// MaxPollErrors — число подряд неудачных опросов статуса, после
	// которого бот прекращает ждать задачу.
	MaxPollErrors  int  `yaml:"max_poll_errors"`
	TopN           int  `yaml:"top_n"`
	EncryptUploads bool `yaml:"encrypt_uploads"`
}

// Logging содержит конфигурацию логирования бота
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config является оберткой для соответствия структуре YAML файла.
type Config struct {
	Bot     BotConfig `yaml:"bot"`
	Logging Logging   `yaml:"logging"`
}

func defaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			BackendURL:      DefaultBackendURL,
			PollingInterval: DefaultPollingInterval,
			HTTPTimeout:     DefaultHTTPTimeout,
			MaxFileSizeMB:   DefaultMaxFileSizeMB,
			MaxPollErrors:   DefaultMaxPollErrors,
			TopN:            DefaultTopN,
		},
		Logging: Logging{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// LoadBotConfig загружает конфигурацию бота: значения по умолчанию, файл
// (если существует), затем BOT_TOKEN и BACKEND_URL из окружения или .env.
func LoadBotConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read bot config file %s: %w", filename, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bot config: %w", err)
		}
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Bot.BackendURL = v
	}
	return cfg, nil
}

// MaxFileBytes возвращает ограничение размера принимаемого файла в байтах.
func (c *BotConfig) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// Validate проверяет корректность конфигурации бота без учета токена.
func (c *BotConfig) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("bot.backend_url cannot be empty")
	}
	if c.PollingInterval <= 0 {
		return fmt.Errorf("bot.polling_interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("bot.http_timeout must be positive")
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("bot.max_file_size_mb must be positive")
	}
	if c.MaxPollErrors <= 0 {
		return fmt.Errorf("bot.max_poll_errors must be positive")
	}
	if c.TopN <= 0 {
		return fmt.Errorf("bot.top_n must be positive")
	}
	return nil
}

// ValidateFull дополнительно требует токен.
func (c *BotConfig) ValidateFull() error {
	if c.Token == "" || c.Token == "YOUR_TELEGRAM_BOT_TOKEN" {
		return fmt.Errorf("bot.token is not configured")
	}
	return c.Validate()
}
