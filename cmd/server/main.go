package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chat-insights/internal/app"
	"chat-insights/internal/cache"
	"chat-insights/internal/log"
	"chat-insights/internal/pkg/config"
	"chat-insights/internal/security"
	"chat-insights/internal/server"
	"chat-insights/internal/server/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	configPath := flag.String("config", "config.yml", "path to YAML config")
	flag.Parse()

	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера с маскировкой ключа и токенов
	secrets := []string{cfg.Security.PrivateKey}
	for _, e := range cfg.Inference.Endpoints {
		secrets = append(secrets, e.Token)
	}
	logger := log.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format, secrets...)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	var opener *security.Opener
	if cfg.Security.PrivateKey != "" {
		opener, err = security.NewOpener(cfg.Security.PrivateKey)
		if err != nil {
			return fmt.Errorf("failed to load server key: %w", err)
		}
		logger.Info("Encrypted uploads enabled", "public_key", opener.PublicKey())
	}

	// 4. Инициализация зависимостей
	pipeline, err := app.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	cacheStore := cache.NewCacheStore()
	analyzer := usecase.NewAnalyzeChatUseCase(pipeline.Analyzer, cacheStore, cfg.Processing.CacheTTL,
		usecase.WithLogger(logger.With("component", "usecase")))
	srv := server.New(cfg, analyzer, server.NewTaskStore(0), opener,
		server.WithLogger(logger.With("component", "http")))

	// 5. Запуск сервера и graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(cacheStore)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	slog.Info("Signal received, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := <-serverErr; err != nil {
		return err
	}

	slog.Info("Application exited gracefully")
	return nil
}
