package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-insights/internal/domain"
)

func scores(m map[string]float64) *domain.EmotionScores {
	s := domain.EmotionScoresFromMap(m)
	return &s
}

func TestDominantEmotion(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   string
	}{
		{"Нейтральная выше порога", map[string]float64{"neutral": 0.75, "joy": 0.40}, "neutral"},
		{"Нейтральная ниже порога уступает следующей", map[string]float64{"neutral": 0.65, "joy": 0.50}, "joy"},
		{"Максимум у не-нейтральной", map[string]float64{"anger": 0.9, "neutral": 0.2}, "anger"},
		{"Все нули", map[string]float64{}, "neutral"},
		{"Только нейтральная ниже порога", map[string]float64{"neutral": 0.3}, "neutral"},
		{"Нейтральная 0.5 при нулевых остальных", map[string]float64{"neutral": 0.5}, "neutral"},
		{"Нейтральная ниже порога и слабая эмоция", map[string]float64{"neutral": 0.5, "fear": 0.01}, "fear"},
		{"Равные оценки — раньше в списке", map[string]float64{"joy": 0.5, "admiration": 0.5}, "admiration"},
		{"Порог включительный", map[string]float64{"neutral": 0.70, "joy": 0.60}, "neutral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DominantEmotion(*scores(tt.scores), DefaultNeutralThreshold))
		})
	}
}

func TestEmotionService_Aggregate(t *testing.T) {
	records := []domain.EnrichedRecord{
		{MessageRecord: msg(at(2024, 3, 1, 9), "Alice", "yay"), Emotions: scores(map[string]float64{"joy": 0.8, "neutral": 0.1})},
		{MessageRecord: msg(at(2024, 3, 1, 10), "Alice", "ok"), Emotions: scores(map[string]float64{"joy": 0.2, "neutral": 0.9})},
		{MessageRecord: msg(at(2024, 3, 1, 11), "Bob", "grr"), Emotions: scores(map[string]float64{"anger": 0.6, "neutral": 0.5})},
		{MessageRecord: media(at(2024, 3, 1, 12), "Bob", domain.MediaPhoto)},
	}

	summary := NewEmotionService().Aggregate(records, []string{"Alice", "Bob"})

	t.Run("Общее распределение", func(t *testing.T) {
		overall := summary.Overall
		require.Equal(t, 3, overall.MessageCount)

		joy := overall.Get("joy")
		assert.InDelta(t, (0.8+0.2)/3, joy.Avg, 1e-9)
		assert.Equal(t, 0.8, joy.Max)
		assert.Equal(t, 1, joy.Frequency)
		assert.InDelta(t, 100.0/3, joy.Percentage, 1e-9)
		assert.Equal(t, 1, joy.StrongCount)

		neutral := overall.Get("neutral")
		assert.Equal(t, 1, neutral.Frequency)
		assert.Equal(t, 2, neutral.StrongCount)

		assert.Equal(t, 1, overall.Get("anger").Frequency)
	})

	t.Run("Распределение по участникам", func(t *testing.T) {
		alice := summary.PerUser["Alice"]
		assert.Equal(t, 2, alice.MessageCount)
		assert.Equal(t, 50.0, alice.Get("joy").Percentage)
		assert.Equal(t, 50.0, alice.Get("neutral").Percentage)

		bob := summary.PerUser["Bob"]
		assert.Equal(t, 1, bob.MessageCount)
		assert.Equal(t, 100.0, bob.Get("anger").Percentage)
	})

	t.Run("Сумма частот равна числу сообщений", func(t *testing.T) {
		total := 0
		for _, st := range summary.Overall.Stats {
			total += st.Frequency
		}
		assert.Equal(t, summary.Overall.MessageCount, total)
	})

	t.Run("Порядок записей не влияет на результат", func(t *testing.T) {
		reversed := make([]domain.EnrichedRecord, len(records))
		for i, r := range records {
			reversed[len(records)-1-i] = r
		}
		again := NewEmotionService().Aggregate(reversed, []string{"Alice", "Bob"})
		assert.Equal(t, summary.Overall.MessageCount, again.Overall.MessageCount)
		for i := range summary.Overall.Stats {
			assert.InDelta(t, summary.Overall.Stats[i].Avg, again.Overall.Stats[i].Avg, 1e-12)
			assert.Equal(t, summary.Overall.Stats[i].Frequency, again.Overall.Stats[i].Frequency)
		}
	})

	t.Run("Участник без оценок получает пустое распределение", func(t *testing.T) {
		s := NewEmotionService().Aggregate(records, []string{"Alice", "Bob", "Carol"})
		assert.Zero(t, s.PerUser["Carol"].MessageCount)
		assert.Zero(t, s.PerUser["Carol"].Get("joy").Percentage)
	})
}

func TestAverageSentiment(t *testing.T) {
	records := []domain.EnrichedRecord{
		{Sentiment: &domain.Sentiment{Compound: 0.5}},
		{Sentiment: &domain.Sentiment{Compound: -0.1}},
		{},
	}
	assert.InDelta(t, 0.2, AverageSentiment(records), 1e-9)
	assert.Zero(t, AverageSentiment(nil))
}
