package services

import (
	"context"
	"fmt"
	"log/slog"

	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

// AnalysisOption — функциональная опция для настройки AnalysisService.
type AnalysisOption func(*AnalysisService)

// WithAnalysisLogger устанавливает логгер для сервиса анализа.
func WithAnalysisLogger(l *slog.Logger) AnalysisOption {
	return func(s *AnalysisService) {
		if l != nil {
			s.log = l
		}
	}
}

// AnalysisService выполняет полный анализ: разбор, метаданные, обогащение,
// статистику и агрегацию эмоций. Внешние сервисы передаются при создании,
// их жизненным циклом управляет вызывающая сторона.
type AnalysisService struct {
	parser    ports.Parser
	extractor ports.MetadataExtractor
	enricher  ports.EnrichmentService
	stats     *StatisticsService
	emotions  *EmotionService
	log       *slog.Logger
}

// NewAnalysisService собирает сервис анализа из компонентов.
func NewAnalysisService(
	p ports.Parser,
	ex ports.MetadataExtractor,
	en ports.EnrichmentService,
	st *StatisticsService,
	em *EmotionService,
	opts ...AnalysisOption,
) *AnalysisService {
	s := &AnalysisService{
		parser:    p,
		extractor: ex,
		enricher:  en,
		stats:     st,
		emotions:  em,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze разбирает текст экспорта и строит отчет.
// Возвращает либо полный отчет, либо ошибку: ParseError, ValidationError
// или ProcessingError.
func (s *AnalysisService) Analyze(ctx context.Context, text string) (*domain.Report, error) {
	records, err := s.parser.Parse(text)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to parse transcript", "error", err)
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	s.log.InfoContext(ctx, "Transcript parsed", "records", len(records))
	return s.AnalyzeRecords(ctx, records)
}

// AnalyzeRecords строит отчет по уже разобранным сообщениям.
func (s *AnalysisService) AnalyzeRecords(ctx context.Context, records []domain.MessageRecord) (*domain.Report, error) {
	meta, err := s.extractor.Extract(records)
	if err != nil {
		s.log.WarnContext(ctx, "Chat metadata is invalid", "error", err)
		return nil, fmt.Errorf("extract metadata: %w", err)
	}

	enriched, err := s.enricher.Enrich(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("enrich messages: %w", err)
	}

	stats, err := s.stats.Compute(ctx, records, meta)
	if err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}

	scored := 0
	for _, r := range enriched {
		if r.Scored() {
			scored++
		}
	}

	report := &domain.Report{
		Metadata:            meta,
		OverallSentimentAvg: AverageSentiment(enriched),
		Emotions:            s.emotions.Aggregate(enriched, meta.Users),
		Statistics:          stats,
		MessagesAnalyzed:    scored,
	}

	s.log.InfoContext(ctx, "Chat analyzed",
		"users", len(meta.Users),
		"messages", meta.TotalMessages,
		"scored", scored,
	)
	return report, nil
}
