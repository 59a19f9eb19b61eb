// Package app собирает конвейер анализа из конфигурации. Используется
// HTTP-сервером и локальной утилитой.
package app

import (
	"fmt"
	"log/slog"

	"chat-insights/internal/adapters/nlp"
	"chat-insights/internal/adapters/parser"
	"chat-insights/internal/core/services"
	"chat-insights/internal/inference/router"
	"chat-insights/internal/pkg/config"
)

// Pipeline — собранный сервис анализа и пул сервисов инференса,
// который нужно остановить после работы.
type Pipeline struct {
	Analyzer *services.AnalysisService
	Router   *router.Router
}

// Close останавливает фоновые проверки пула инференса.
func (p *Pipeline) Close() {
	p.Router.Stop()
}

// NewPipeline создает роутер инференса, нормализатор и сервисы анализа.
func NewPipeline(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	order, err := parser.ParseDateOrder(cfg.Analysis.DateOrder)
	if err != nil {
		return nil, err
	}

	normalizer, err := nlp.New(nlp.WithLogger(logger.With("component", "normalizer")))
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}

	r, err := router.NewRouter(
		router.WithLogger(logger.With("component", "inference_router")),
		router.WithServerConfigs(cfg.Inference),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference router: %w", err)
	}

	analyzer := services.NewAnalysisService(
		parser.NewTranscriptParser(parser.WithDateOrder(order), parser.WithLogger(logger.With("component", "parser"))),
		services.NewExtractionService(),
		services.NewEnrichmentService(r, r,
			services.WithBatchSize(cfg.Enrichment.BatchSize),
			services.WithPoolSize(cfg.Enrichment.PoolSize),
			services.WithTotalTimeout(cfg.Enrichment.TotalTimeout),
			services.WithLogger(logger.With("component", "enrichment")),
		),
		services.NewStatisticsService(normalizer,
			services.WithTopEmojis(cfg.Analysis.TopEmojis),
			services.WithTopWords(cfg.Analysis.TopWords),
			services.WithStatsLogger(logger.With("component", "statistics")),
		),
		services.NewEmotionService(
			services.WithNeutralThreshold(cfg.Analysis.NeutralThreshold),
			services.WithStrongThreshold(cfg.Analysis.StrongEmotionThreshold),
		),
		services.WithAnalysisLogger(logger.With("component", "analysis")),
	)

	return &Pipeline{Analyzer: analyzer, Router: r}, nil
}
