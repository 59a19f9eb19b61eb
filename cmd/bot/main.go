package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chat-insights/cmd/bot/config"
	"chat-insights/internal/bot"
	"chat-insights/internal/log"
	"chat-insights/internal/pkg/term"
)

func main() {
	configPath := flag.String("config", "bot_config.yml", "path to bot YAML config")
	flag.Parse()

	// Загрузка конфигурации бота
	cfg, err := config.LoadBotConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load bot config: %v\n", err)
		os.Exit(1)
	}

	// Токен можно ввести вручную, если он не задан в файле или окружении.
	if cfg.Bot.Token == "" {
		tty := term.NewTerminal()
		if tty.Interactive() {
			token, err := tty.ReadSecret("Telegram bot token: ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to read token: %v\n", err)
				os.Exit(1)
			}
			cfg.Bot.Token = token
		}
	}

	if err := cfg.Bot.ValidateFull(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to validate bot config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера с маскировкой токена
	logger := log.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format, cfg.Bot.Token)
	slog.SetDefault(logger)

	var clientOpts []bot.ClientOption
	if cfg.Bot.EncryptUploads {
		clientOpts = append(clientOpts, bot.WithEncryption())
	}
	serverClient := bot.NewServerClient(cfg.Bot.BackendURL, cfg.Bot.HTTPTimeout, clientOpts...)

	b, err := bot.NewBot(cfg.Bot, serverClient, bot.NewTaskStore(), logger.With(slog.String("component", "bot")))
	if err != nil {
		slog.Error("failed to create bot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("Bot created successfully, starting...", slog.Bool("encrypt_uploads", cfg.Bot.EncryptUploads))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start возвращается после отмены ctx и завершения опросов задач.
	b.Start(ctx)

	slog.Info("Bot stopped gracefully")
}
