package ports

import (
	"context"

	"chat-insights/internal/domain"
)

// DataSource определяет интерфейс для получения исходных данных чата.
type DataSource interface {
	// Fetch загружает данные из источника и возвращает их в виде байтового среза.
	Fetch() ([]byte, error)
}

// Parser определяет интерфейс для разбора текстового экспорта чата.
type Parser interface {
	// Parse преобразует текст экспорта в упорядоченный список сообщений.
	Parse(text string) ([]domain.MessageRecord, error)
}

// MetadataExtractor вычисляет сводные данные чата по списку сообщений.
type MetadataExtractor interface {
	Extract(records []domain.MessageRecord) (domain.ChatMetadata, error)
}

// EmotionClassifier — внешний многометочный классификатор эмоций.
// Для каждого текста возвращает 28 оценок в порядке domain.Emotions.
type EmotionClassifier interface {
	Classify(ctx context.Context, texts []string) ([][]float64, error)
}

// SentimentScorer — внешний анализатор тональности.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (domain.Sentiment, error)
}

// Normalizer — внешний лемматизатор с разметкой частей речи.
type Normalizer interface {
	Normalize(ctx context.Context, text string) ([]domain.Token, error)
}

// EnrichmentService дополняет текстовые сообщения оценками эмоций и тональности.
type EnrichmentService interface {
	Enrich(ctx context.Context, records []domain.MessageRecord) ([]domain.EnrichedRecord, error)
}

// Analyzer выполняет полный анализ экспорта чата.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*domain.Report, error)
}

// Exporter определяет интерфейс для вывода результата.
type Exporter interface {
	// Export принимает итоговый отчет и выводит его.
	Export(report *domain.Report) error
}
