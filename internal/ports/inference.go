package ports

import (
	"context"

	"chat-insights/internal/domain"
)

// InferenceClient определяет публичный интерфейс клиента сервиса инференса.
type InferenceClient interface {
	Classify(ctx context.Context, texts []string) ([][]float64, error)
	Sentiment(ctx context.Context, text string) (domain.Sentiment, error)
	Health(ctx context.Context) error
	ID() string
}

// Router определяет интерфейс для роутера клиентов инференса.
type Router interface {
	GetClient(ctx context.Context) (InferenceClient, error)
	Stop()
}

// Strategy определяет интерфейс для стратегии выбора клиента.
type Strategy interface {
	Next(clients []InferenceClient) (InferenceClient, error)
}
