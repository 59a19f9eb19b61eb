// Package usecase содержит сценарий анализа загруженного экспорта
// с кэшированием отчетов по хешу содержимого.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-insights/internal/adapters/source"
	"chat-insights/internal/cache"
	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

// Option — функциональная опция для AnalyzeChatUseCase.
type Option func(*AnalyzeChatUseCase)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(uc *AnalyzeChatUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

// AnalyzeChatUseCase декодирует загрузку, берет отчет из кэша или
// запускает анализ и кэширует результат.
type AnalyzeChatUseCase struct {
	analyzer   ports.Analyzer
	cacheStore *cache.CacheStore
	cacheTTL   time.Duration
	log        *slog.Logger
}

// NewAnalyzeChatUseCase создает новый экземпляр AnalyzeChatUseCase.
func NewAnalyzeChatUseCase(analyzer ports.Analyzer, cacheStore *cache.CacheStore, cacheTTL time.Duration, opts ...Option) *AnalyzeChatUseCase {
	uc := &AnalyzeChatUseCase{
		analyzer:   analyzer,
		cacheStore: cacheStore,
		cacheTTL:   cacheTTL,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// AnalyzeChat анализирует содержимое экспорта.
func (uc *AnalyzeChatUseCase) AnalyzeChat(ctx context.Context, data []byte) (*domain.Report, error) {
	hash := cache.HashContent(data)
	if item, found := uc.cacheStore.Get(hash); found {
		uc.log.InfoContext(ctx, "Попадание в кеш", "hash", hash)
		return item.Report, nil
	}

	text, err := source.ReadText(source.NewMemorySource(data))
	if err != nil {
		return nil, fmt.Errorf("decode upload: %w", err)
	}

	report, err := uc.analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}

	uc.cacheStore.Put(hash, report, uc.cacheTTL)
	uc.log.InfoContext(ctx, "Отчет кеширован", "hash", hash, "ttl", uc.cacheTTL.String())
	return report, nil
}

// CachedReport возвращает ранее построенный отчет по SHA-256 содержимого.
func (uc *AnalyzeChatUseCase) CachedReport(hash string) (*domain.Report, bool) {
	item, found := uc.cacheStore.Get(hash)
	if !found {
		return nil, false
	}
	return item.Report, true
}
