package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-insights/internal/domain"
)

func uniform(v float64) []float64 {
	out := make([]float64, domain.NumEmotions)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEnrichmentService_Enrich_Success(t *testing.T) {
	classifier := new(mockClassifier)
	scorer := new(mockScorer)
	service := NewEnrichmentService(classifier, scorer, WithLogger(discardLogger()))

	records := []domain.MessageRecord{
		msg(at(2024, 3, 1, 9), "Alice", "hello"),
		media(at(2024, 3, 1, 10), "Bob", domain.MediaPhoto),
		sysMsg(at(2024, 3, 1, 11), "Bob left"),
		msg(at(2024, 3, 1, 12), "Bob", "bye"),
	}

	classifier.On("Classify", mock.Anything, []string{"hello", "bye"}).
		Return([][]float64{uniform(0.1), uniform(0.2)}, nil).Once()
	scorer.On("Score", mock.Anything, "hello").Return(domain.Sentiment{Compound: 0.5}, nil).Once()
	scorer.On("Score", mock.Anything, "bye").Return(domain.Sentiment{Compound: -0.2}, nil).Once()

	enriched, err := service.Enrich(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, enriched, 4)

	assert.True(t, enriched[0].Scored())
	assert.Equal(t, 0.1, enriched[0].Emotions[0])
	assert.Equal(t, 0.5, enriched[0].Sentiment.Compound)

	assert.False(t, enriched[1].Scored(), "медиа не оценивается")
	assert.Nil(t, enriched[1].Sentiment)
	assert.False(t, enriched[2].Scored(), "системное сообщение не оценивается")

	assert.Equal(t, 0.2, enriched[3].Emotions[0])
	assert.Equal(t, -0.2, enriched[3].Sentiment.Compound)

	for i := range records {
		assert.Equal(t, records[i], enriched[i].MessageRecord)
	}
	classifier.AssertExpectations(t)
	scorer.AssertExpectations(t)
}

func TestEnrichmentService_Enrich_ContractViolations(t *testing.T) {
	records := []domain.MessageRecord{
		msg(at(2024, 3, 1, 9), "Alice", "hello"),
		msg(at(2024, 3, 1, 10), "Bob", "bye"),
	}

	tests := []struct {
		name         string
		vectors      [][]float64
		classifyErr  error
		collaborator string
	}{
		{"Вектор длины 27", [][]float64{uniform(0.1), uniform(0.1)[:27]}, nil, "classifier"},
		{"Оценка вне [0,1]", [][]float64{uniform(0.1), uniform(1.5)}, nil, "classifier"},
		{"Число векторов не совпадает", [][]float64{uniform(0.1)}, nil, "classifier"},
		{"Классификатор недоступен", nil, errors.New("connection refused"), "classifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := new(mockClassifier)
			classifier.On("Classify", mock.Anything, mock.Anything).Return(tt.vectors, tt.classifyErr).Once()
			scorer := new(mockScorer)
			scorer.On("Score", mock.Anything, mock.Anything).Return(domain.Sentiment{}, nil).Maybe()

			service := NewEnrichmentService(classifier, scorer, WithLogger(discardLogger()))
			enriched, err := service.Enrich(context.Background(), records)

			require.Error(t, err)
			assert.Nil(t, enriched, "частичный результат не возвращается")
			assert.True(t, errors.Is(err, domain.ErrProcessing))
			var pe *domain.ProcessingError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.collaborator, pe.Collaborator)
		})
	}

	t.Run("Сбой анализатора тональности", func(t *testing.T) {
		classifier := new(mockClassifier)
		classifier.On("Classify", mock.Anything, mock.Anything).
			Return([][]float64{uniform(0.1), uniform(0.1)}, nil).Once()
		scorer := new(mockScorer)
		scorer.On("Score", mock.Anything, "hello").Return(domain.Sentiment{}, errors.New("timeout")).Once()

		service := NewEnrichmentService(classifier, scorer, WithLogger(discardLogger()))
		_, err := service.Enrich(context.Background(), records)

		var pe *domain.ProcessingError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "sentiment", pe.Collaborator)
	})

	t.Run("Compound вне [-1,1]", func(t *testing.T) {
		classifier := new(mockClassifier)
		classifier.On("Classify", mock.Anything, mock.Anything).
			Return([][]float64{uniform(0.1), uniform(0.1)}, nil).Once()
		scorer := new(mockScorer)
		scorer.On("Score", mock.Anything, mock.Anything).Return(domain.Sentiment{Compound: 2}, nil)

		service := NewEnrichmentService(classifier, scorer, WithLogger(discardLogger()))
		_, err := service.Enrich(context.Background(), records)
		assert.True(t, errors.Is(err, domain.ErrProcessing))
	})
}

// TestEnrichmentService_Enrich_ParallelBatches проверяет, что при параллельной
// обработке пакетов оценки возвращаются к своим сообщениям.
func TestEnrichmentService_Enrich_ParallelBatches(t *testing.T) {
	var records []domain.MessageRecord
	for i := 0; i < 50; i++ {
		text := fmt.Sprintf("message %d", i)
		if i%5 == 0 {
			text = fmt.Sprintf("so much joy %d", i)
		}
		records = append(records, msg(at(2024, 3, 1+i%20, i%24), []string{"Alice", "Bob"}[i%2], text))
		if i%7 == 0 {
			records = append(records, media(at(2024, 3, 1+i%20, i%24), "Bob", domain.MediaSticker))
		}
	}

	classifier := &keywordClassifier{}
	service := NewEnrichmentService(classifier, lengthScorer{},
		WithBatchSize(4),
		WithPoolSize(4),
		WithTotalTimeout(5*time.Second),
		WithLogger(discardLogger()),
	)

	enriched, err := service.Enrich(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, enriched, len(records))
	assert.Len(t, classifier.batches, 13, "50 текстов пакетами по 4")

	joy, _ := domain.EmotionIndex("joy")
	for i, r := range enriched {
		assert.Equal(t, records[i], r.MessageRecord)
		if r.IsMedia {
			assert.False(t, r.Scored())
			continue
		}
		require.True(t, r.Scored(), "record %d", i)
		wantJoy := 0.0
		if DominantEmotion(*r.Emotions, DefaultNeutralThreshold) == "joy" {
			wantJoy = 0.9
		}
		assert.Equal(t, wantJoy, r.Emotions[joy])
		assert.Equal(t, float64(len(r.Text)%10)/10, r.Sentiment.Compound)
		if len(r.Text) >= 3 && r.Text[:3] == "so " {
			assert.Equal(t, "joy", DominantEmotion(*r.Emotions, DefaultNeutralThreshold))
		} else {
			assert.Equal(t, "neutral", DominantEmotion(*r.Emotions, DefaultNeutralThreshold))
		}
	}
}

func TestEnrichmentService_Enrich_NothingToScore(t *testing.T) {
	classifier := new(mockClassifier)
	service := NewEnrichmentService(classifier, new(mockScorer), WithLogger(discardLogger()))

	records := []domain.MessageRecord{media(at(2024, 3, 1, 9), "Alice", domain.MediaPhoto)}
	enriched, err := service.Enrich(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.False(t, enriched[0].Scored())
	classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestEnrichmentService_Enrich_TotalTimeout(t *testing.T) {
	classifier := new(mockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()

	service := NewEnrichmentService(classifier, new(mockScorer),
		WithTotalTimeout(20*time.Millisecond),
		WithLogger(discardLogger()),
	)

	_, err := service.Enrich(context.Background(), []domain.MessageRecord{msg(at(2024, 3, 1, 9), "Alice", "hi")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProcessing))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
