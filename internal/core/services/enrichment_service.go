package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

// Config хранит конфигурацию для EnrichmentService.
type Config struct {
	// TotalTimeout — максимальная продолжительность обогащения всего чата.
	TotalTimeout time.Duration
	// BatchSize — количество текстов в одном запросе к классификатору.
	BatchSize int
	// PoolSize — количество пакетов, обрабатываемых одновременно.
	PoolSize int
}

// Option — функциональная опция для настройки EnrichmentService.
type Option func(*EnrichmentService)

// WithTotalTimeout устанавливает общий таймаут для процесса обогащения.
func WithTotalTimeout(d time.Duration) Option {
	return func(s *EnrichmentService) {
		if d > 0 {
			s.config.TotalTimeout = d
		}
	}
}

// WithBatchSize устанавливает размер пакета.
func WithBatchSize(n int) Option {
	return func(s *EnrichmentService) {
		if n > 0 {
			s.config.BatchSize = n
		}
	}
}

// WithPoolSize устанавливает количество одновременно обрабатываемых пакетов.
func WithPoolSize(n int) Option {
	return func(s *EnrichmentService) {
		if n > 0 {
			s.config.PoolSize = n
		}
	}
}

// WithLogger устанавливает логгер для сервиса.
func WithLogger(l *slog.Logger) Option {
	return func(s *EnrichmentService) {
		if l != nil {
			s.log = l
		}
	}
}

// EnrichmentService дополняет текстовые сообщения оценками классификатора эмоций
// и анализатора тональности. Сервис не хранит состояние и безопасен для
// одновременного использования.
type EnrichmentService struct {
	classifier ports.EmotionClassifier
	scorer     ports.SentimentScorer
	config     Config
	log        *slog.Logger
}

// NewEnrichmentService создает новый EnrichmentService с использованием функциональных опций.
func NewEnrichmentService(c ports.EmotionClassifier, sc ports.SentimentScorer, opts ...Option) *EnrichmentService {
	s := &EnrichmentService{
		classifier: c,
		scorer:     sc,
		config: Config{
			TotalTimeout: 10 * time.Minute,
			BatchSize:    32,
			PoolSize:     1,
		},
		log: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Enrich возвращает копии всех записей в исходном порядке. Оценки получают
// только текстовые сообщения (не медиа и не системные). Любой сбой внешнего
// сервиса или нарушение контракта ответа возвращается как ProcessingError,
// частичный результат не возвращается.
func (s *EnrichmentService) Enrich(ctx context.Context, records []domain.MessageRecord) ([]domain.EnrichedRecord, error) {
	out := make([]domain.EnrichedRecord, len(records))
	targets := make([]int, 0, len(records))
	for i, r := range records {
		out[i] = domain.EnrichedRecord{MessageRecord: r}
		if !r.IsMedia && !r.IsSystem {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return out, nil
	}

	cfg := s.config

	ctx, cancel := context.WithTimeout(ctx, cfg.TotalTimeout)
	defer cancel()

	batches := (len(targets) + cfg.BatchSize - 1) / cfg.BatchSize
	s.log.InfoContext(ctx, "Starting enrichment process",
		"messages", len(targets),
		"batches", batches,
		"pool_size", cfg.PoolSize,
		"total_timeout", cfg.TotalTimeout,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.PoolSize)
	for start := 0; start < len(targets); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(targets))
		batch := targets[start:end]
		g.Go(func() error {
			// Каждый пакет пишет только в свои индексы out.
			return s.enrichBatch(gctx, records, batch, out)
		})
	}

	if err := g.Wait(); err != nil {
		s.log.WarnContext(ctx, "Enrichment process failed", "error", err)
		return nil, err
	}

	s.log.InfoContext(ctx, "Enrichment process finished successfully", "enriched_count", len(targets))
	return out, nil
}

func (s *EnrichmentService) enrichBatch(ctx context.Context, records []domain.MessageRecord, batch []int, out []domain.EnrichedRecord) error {
	texts := make([]string, len(batch))
	for j, idx := range batch {
		texts[j] = records[idx].Text
	}

	vectors, err := s.classifier.Classify(ctx, texts)
	if err != nil {
		return domain.NewProcessingError("classifier", err)
	}
	if len(vectors) != len(texts) {
		return domain.NewProcessingError("classifier",
			fmt.Errorf("expected %d score vectors, got %d", len(texts), len(vectors)))
	}

	emotions := make([]domain.EmotionScores, len(batch))
	for j, v := range vectors {
		if err := checkScores(v); err != nil {
			return domain.NewProcessingError("classifier", fmt.Errorf("vector %d: %w", j, err))
		}
		copy(emotions[j][:], v)
	}

	sentiments := make([]domain.Sentiment, len(batch))
	for j, text := range texts {
		sent, err := s.scorer.Score(ctx, text)
		if err != nil {
			return domain.NewProcessingError("sentiment", err)
		}
		if math.IsNaN(sent.Compound) || sent.Compound < -1 || sent.Compound > 1 {
			return domain.NewProcessingError("sentiment", fmt.Errorf("compound %v out of [-1, 1]", sent.Compound))
		}
		sentiments[j] = sent
	}

	for j, idx := range batch {
		out[idx].Emotions = &emotions[j]
		out[idx].Sentiment = &sentiments[j]
	}
	s.log.DebugContext(ctx, "Batch enriched", "size", len(batch), "first_index", batch[0])
	return nil
}

// checkScores проверяет длину вектора и диапазон оценок.
func checkScores(v []float64) error {
	if len(v) != domain.NumEmotions {
		return fmt.Errorf("expected %d scores, got %d", domain.NumEmotions, len(v))
	}
	for i, x := range v {
		if math.IsNaN(x) || x < 0 || x > 1 {
			return fmt.Errorf("score %q = %v out of [0, 1]", domain.Emotions[i], x)
		}
	}
	return nil
}
