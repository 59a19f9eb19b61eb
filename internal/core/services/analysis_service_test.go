package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-insights/internal/adapters/parser"
	"chat-insights/internal/domain"
)

func newTestAnalysis(classifier *keywordClassifier) *AnalysisService {
	log := discardLogger()
	return NewAnalysisService(
		parser.NewTranscriptParser(parser.WithLogger(log)),
		NewExtractionService(),
		NewEnrichmentService(classifier, lengthScorer{}, WithBatchSize(2), WithPoolSize(2), WithLogger(log)),
		NewStatisticsService(&fakeNormalizer{}, WithStatsLogger(log)),
		NewEmotionService(),
		WithAnalysisLogger(log),
	)
}

func TestAnalysisService_Analyze(t *testing.T) {
	transcript := strings.Join([]string{
		"14/03/2024, 10:00 - Alice: Hello 😀",
		"14/03/2024, 10:01 - Bob: so much joy here",
		"and a second line",
		"15/03/2024, 21:15 - Alice: <Media omitted>",
		"15/03/2024, 21:16 - Bob: pizza tonight?",
		"16/03/2024, 09:00 - Bob left",
	}, "\n")

	report, err := newTestAnalysis(&keywordClassifier{}).Analyze(context.Background(), transcript)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Metadata.TotalMessages)
	assert.Equal(t, []string{"Alice", "Bob"}, report.Metadata.Users)
	assert.Equal(t, 1, report.Metadata.MediaCount)
	assert.Equal(t, time.Date(2024, 3, 15, 21, 16, 0, 0, time.UTC), report.Metadata.EndDate)

	assert.Equal(t, 3, report.MessagesAnalyzed)
	assert.Equal(t, 3, report.Emotions.Overall.MessageCount)
	assert.Equal(t, 1, report.Emotions.Overall.Get("joy").Frequency)
	assert.Equal(t, 2, report.Emotions.PerUser["Bob"].MessageCount)

	assert.Equal(t, 2, report.Statistics.LongestStreak.Days)
	assert.Equal(t, []domain.EmojiCount{{Emoji: "😀", Count: 1}}, report.Statistics.TopEmojis["Alice"])
	assert.NotZero(t, report.OverallSentimentAvg)
}

func TestAnalysisService_Errors(t *testing.T) {
	t.Run("ParseError для текста без сообщений", func(t *testing.T) {
		_, err := newTestAnalysis(&keywordClassifier{}).Analyze(context.Background(), "nothing here")
		assert.True(t, errors.Is(err, domain.ErrParse))
	})

	t.Run("ValidationError для одного участника", func(t *testing.T) {
		_, err := newTestAnalysis(&keywordClassifier{}).Analyze(context.Background(),
			"14/03/2024, 10:00 - Alice: Hello\n14/03/2024, 10:05 - Alice: anyone?")
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("ProcessingError без частичного отчета", func(t *testing.T) {
		classifier := new(mockClassifier)
		classifier.On("Classify", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))

		log := discardLogger()
		svc := NewAnalysisService(
			parser.NewTranscriptParser(),
			NewExtractionService(),
			NewEnrichmentService(classifier, lengthScorer{}, WithLogger(log)),
			NewStatisticsService(&fakeNormalizer{}, WithStatsLogger(log)),
			NewEmotionService(),
			WithAnalysisLogger(log),
		)
		report, err := svc.Analyze(context.Background(), "14/03/2024, 10:00 - Alice: Hello\n14/03/2024, 10:01 - Bob: Hi")
		assert.Nil(t, report)
		assert.True(t, errors.Is(err, domain.ErrProcessing))
	})
}
