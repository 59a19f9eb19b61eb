package domain

// NumEmotions — размерность вектора оценок классификатора эмоций.
const NumEmotions = 28

// NeutralEmotion — метка нейтрального класса.
const NeutralEmotion = "neutral"

// Emotions — метки классификатора в порядке компонент вектора EmotionScores.
var Emotions = [NumEmotions]string{
	"admiration", "amusement", "anger", "annoyance", "approval", "caring",
	"confusion", "curiosity", "desire", "disappointment", "disapproval",
	"disgust", "embarrassment", "excitement", "fear", "gratitude", "grief",
	"joy", "love", "nervousness", "optimism", "pride", "realization",
	"relief", "remorse", "sadness", "surprise", NeutralEmotion,
}

var emotionIndex = func() map[string]int {
	idx := make(map[string]int, NumEmotions)
	for i, label := range Emotions {
		idx[label] = i
	}
	return idx
}()

// NeutralIndex — позиция нейтральной метки в векторе.
var NeutralIndex = emotionIndex[NeutralEmotion]

// EmotionIndex возвращает позицию метки в векторе оценок.
func EmotionIndex(label string) (int, bool) {
	i, ok := emotionIndex[label]
	return i, ok
}

// EmotionScores — независимые оценки 28 эмоций, каждая в [0, 1].
// Сумма компонент не нормирована.
type EmotionScores [NumEmotions]float64

// EmotionScoresFromMap собирает вектор из пар метка→оценка.
// Отсутствующие метки получают 0.
func EmotionScoresFromMap(m map[string]float64) EmotionScores {
	var s EmotionScores
	for label, score := range m {
		if i, ok := emotionIndex[label]; ok {
			s[i] = score
		}
	}
	return s
}
