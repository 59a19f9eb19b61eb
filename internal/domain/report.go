package domain

import "time"

// WeekdayStats — статистика по одному дню недели.
type WeekdayStats struct {
	Weekday       time.Weekday
	TotalMessages int
	// Average — TotalMessages, деленное на число таких дней в периоде чата.
	Average      float64
	DaysInPeriod int
}

// HourStats — число сообщений в двухчасовом интервале.
type HourStats struct {
	Category HourCategory
	Count    int
}

// Streak — самая длинная серия дней, когда писали все участники.
// При Days == 0 даты не заданы.
type Streak struct {
	Days      int
	StartDate time.Time
	EndDate   time.Time
}

// UserStats — количество сообщений и средняя длина текста участника.
type UserStats struct {
	User         string
	MessageCount int
	// AvgLength считается только по не-медиа сообщениям.
	AvgLength float64
}

// EmojiCount — эмодзи и число его вхождений.
type EmojiCount struct {
	Emoji string
	Count int
}

// WordCount — лемма и число ее вхождений.
type WordCount struct {
	Word  string
	Count int
}

// Statistics — результат работы статистического сервиса.
type Statistics struct {
	MessagesPerDay float64
	Weekdays       [7]WeekdayStats // от понедельника до воскресенья
	Hours          [len(HourCategories)]HourStats
	LongestStreak  Streak
	Users          []UserStats
	TopEmojis      map[string][]EmojiCount
	TopWords       map[string][]WordCount
}

// EmotionStats — агрегаты одной эмоции в пределах области (весь чат или участник).
type EmotionStats struct {
	Avg         float64
	Max         float64
	Frequency   int
	Percentage  float64
	StrongCount int
}

// EmotionDistribution — агрегаты по всем 28 эмоциям.
type EmotionDistribution struct {
	// MessageCount — число сообщений с оценками в области.
	MessageCount int
	Stats        [NumEmotions]EmotionStats
}

// Get возвращает агрегаты по метке эмоции.
func (d EmotionDistribution) Get(label string) EmotionStats {
	if i, ok := EmotionIndex(label); ok {
		return d.Stats[i]
	}
	return EmotionStats{}
}

// EmotionSummary — распределения эмоций по чату и по участникам.
type EmotionSummary struct {
	Overall EmotionDistribution
	PerUser map[string]EmotionDistribution
}

// Report — итоговый результат анализа чата.
type Report struct {
	Metadata            ChatMetadata
	OverallSentimentAvg float64
	Emotions            EmotionSummary
	Statistics          Statistics
	MessagesAnalyzed    int
}
