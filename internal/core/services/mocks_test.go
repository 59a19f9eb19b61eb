package services

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"chat-insights/internal/domain"
)

// mockClassifier — мок для интерфейса ports.EmotionClassifier.
type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, texts []string) ([][]float64, error) {
	args := m.Called(ctx, texts)
	if res := args.Get(0); res != nil {
		return res.([][]float64), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockScorer — мок для интерфейса ports.SentimentScorer.
type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Score(ctx context.Context, text string) (domain.Sentiment, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(domain.Sentiment), args.Error(1)
}

// keywordClassifier выставляет оценку 0.9 эмоции, имя которой встречается в тексте,
// и 0.8 нейтральной метке в остальных случаях.
type keywordClassifier struct {
	mu      sync.Mutex
	batches [][]string
}

func (k *keywordClassifier) Classify(_ context.Context, texts []string) ([][]float64, error) {
	k.mu.Lock()
	k.batches = append(k.batches, texts)
	k.mu.Unlock()

	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, domain.NumEmotions)
		v[domain.NeutralIndex] = 0.8
		for j, label := range domain.Emotions {
			if strings.Contains(text, label) {
				v[j] = 0.9
				v[domain.NeutralIndex] = 0.1
				break
			}
		}
		out[i] = v
	}
	return out, nil
}

// lengthScorer возвращает compound, зависящий от длины текста.
type lengthScorer struct{}

func (lengthScorer) Score(_ context.Context, text string) (domain.Sentiment, error) {
	c := float64(len(text)%10) / 10
	return domain.Sentiment{Positive: c, Neutral: 1 - c, Compound: c}, nil
}
