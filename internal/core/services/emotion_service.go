package services

import "chat-insights/internal/domain"

const (
	// DefaultNeutralThreshold — минимальная оценка, при которой нейтральная метка
	// остается доминирующей.
	DefaultNeutralThreshold = 0.70
	// DefaultStrongThreshold — оценка, выше которой эмоция считается выраженной.
	DefaultStrongThreshold = 0.30
)

// DominantEmotion возвращает метку с максимальной оценкой. Если максимум
// у нейтральной метки и он ниже neutralThreshold, возвращается лучшая из
// остальных 27 меток. При равных оценках побеждает метка, идущая раньше
// в domain.Emotions. Если все остальные метки нулевые, результат "neutral"
// даже при нейтральной оценке ниже порога; вектор из одних нулей тоже
// дает "neutral".
func DominantEmotion(scores domain.EmotionScores, neutralThreshold float64) string {
	best := -1
	for i, v := range scores {
		if v > 0 && (best < 0 || v > scores[best]) {
			best = i
		}
	}
	if best < 0 {
		return domain.NeutralEmotion
	}
	if best != domain.NeutralIndex || scores[best] >= neutralThreshold {
		return domain.Emotions[best]
	}

	alt := -1
	for i, v := range scores {
		if i == domain.NeutralIndex || v <= 0 {
			continue
		}
		if alt < 0 || v > scores[alt] {
			alt = i
		}
	}
	if alt < 0 {
		return domain.NeutralEmotion
	}
	return domain.Emotions[alt]
}

// EmotionOption — функциональная опция для настройки EmotionService.
type EmotionOption func(*EmotionService)

// WithNeutralThreshold задает порог для нейтральной метки.
func WithNeutralThreshold(v float64) EmotionOption {
	return func(s *EmotionService) {
		if v > 0 && v <= 1 {
			s.neutralThreshold = v
		}
	}
}

// WithStrongThreshold задает порог выраженной эмоции.
func WithStrongThreshold(v float64) EmotionOption {
	return func(s *EmotionService) {
		if v >= 0 && v < 1 {
			s.strongThreshold = v
		}
	}
}

// EmotionService агрегирует оценки эмоций по чату и по участникам.
type EmotionService struct {
	neutralThreshold float64
	strongThreshold  float64
}

// NewEmotionService создает агрегатор с порогами по умолчанию.
func NewEmotionService(opts ...EmotionOption) *EmotionService {
	s := &EmotionService{
		neutralThreshold: DefaultNeutralThreshold,
		strongThreshold:  DefaultStrongThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aggregate строит распределения эмоций для всего чата и для каждого участника
// из users. Учитываются только записи с оценками; входные данные не изменяются.
func (s *EmotionService) Aggregate(records []domain.EnrichedRecord, users []string) domain.EmotionSummary {
	overall := newEmotionAcc()
	perUser := make(map[string]*emotionAcc, len(users))
	for _, u := range users {
		perUser[u] = newEmotionAcc()
	}

	for _, r := range records {
		if !r.Scored() {
			continue
		}
		dominant, _ := domain.EmotionIndex(DominantEmotion(*r.Emotions, s.neutralThreshold))
		overall.add(*r.Emotions, dominant, s.strongThreshold)
		if acc, ok := perUser[r.User]; ok {
			acc.add(*r.Emotions, dominant, s.strongThreshold)
		}
	}

	summary := domain.EmotionSummary{
		Overall: overall.distribution(),
		PerUser: make(map[string]domain.EmotionDistribution, len(users)),
	}
	for u, acc := range perUser {
		summary.PerUser[u] = acc.distribution()
	}
	return summary
}

// AverageSentiment возвращает среднее значение compound по записям с оценкой тональности.
func AverageSentiment(records []domain.EnrichedRecord) float64 {
	sum, n := 0.0, 0
	for _, r := range records {
		if r.Sentiment == nil {
			continue
		}
		sum += r.Sentiment.Compound
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

type emotionAcc struct {
	count     int
	sum       [domain.NumEmotions]float64
	max       [domain.NumEmotions]float64
	frequency [domain.NumEmotions]int
	strong    [domain.NumEmotions]int
}

func newEmotionAcc() *emotionAcc {
	return &emotionAcc{}
}

func (a *emotionAcc) add(scores domain.EmotionScores, dominant int, strongThreshold float64) {
	a.count++
	a.frequency[dominant]++
	for i, v := range scores {
		a.sum[i] += v
		if v > a.max[i] {
			a.max[i] = v
		}
		if v > strongThreshold {
			a.strong[i]++
		}
	}
}

func (a *emotionAcc) distribution() domain.EmotionDistribution {
	d := domain.EmotionDistribution{MessageCount: a.count}
	if a.count == 0 {
		return d
	}
	for i := range d.Stats {
		d.Stats[i] = domain.EmotionStats{
			Avg:         a.sum[i] / float64(a.count),
			Max:         a.max[i],
			Frequency:   a.frequency[i],
			Percentage:  float64(a.frequency[i]) / float64(a.count) * 100,
			StrongCount: a.strong[i],
		}
	}
	return d
}
