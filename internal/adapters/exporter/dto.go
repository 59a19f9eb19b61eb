// Package exporter преобразует отчет анализа в формат вывода:
// JSON, текстовые таблицы и книгу Excel.
package exporter

import (
	"math"
	"time"

	"chat-insights/internal/domain"
)

// Форматы дат на границе вывода.
const (
	TimestampLayout = "2006-01-02T15:04:05"
	DateLayout      = "2006-01-02"
)

// EmotionStatsDTO — агрегаты одной эмоции.
type EmotionStatsDTO struct {
	Avg         float64 `json:"avg"`
	Max         float64 `json:"max"`
	Frequency   int     `json:"frequency"`
	Percentage  float64 `json:"percentage"`
	StrongCount int     `json:"strong_count"`
}

// WeekdayStatsDTO — статистика по дню недели.
type WeekdayStatsDTO struct {
	TotalMessages int     `json:"total_messages"`
	Average       float64 `json:"average"`
	DaysInPeriod  int     `json:"days_in_period"`
}

// StreakDTO — самая длинная серия общих дней. Даты пусты, если серии нет.
type StreakDTO struct {
	Days      int     `json:"days"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// EmojiCountDTO — эмодзи и число его вхождений.
type EmojiCountDTO struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// WordCountDTO — слово и число его вхождений.
type WordCountDTO struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// MetadataDTO — сводные данные о чате.
type MetadataDTO struct {
	TotalMessages int            `json:"total_messages"`
	Users         []string       `json:"users"`
	StartDate     string         `json:"start_date"`
	EndDate       string         `json:"end_date"`
	MediaCount    int            `json:"media_count"`
	MediaByType   map[string]int `json:"media_by_type"`
	MediaByUser   map[string]int `json:"media_by_user"`
}

// ReportDTO — отчет в том виде, в котором он отдается клиентам.
type ReportDTO struct {
	Metadata                   MetadataDTO                           `json:"metadata"`
	UserEmotionStats           map[string]map[string]EmotionStatsDTO `json:"user_emotion_stats"`
	OverallEmotionDistribution map[string]EmotionStatsDTO            `json:"overall_emotion_distribution"`
	OverallSentimentAvg        float64                               `json:"overall_sentiment_avg"`
	MessagesPerDay             float64                               `json:"messages_per_day"`
	HourlyDistribution         map[string]int                        `json:"hourly_distribution"`
	WeekdayDistribution        map[string]WeekdayStatsDTO            `json:"weekday_distribution"`
	LongestStreak              StreakDTO                             `json:"longest_streak"`
	MessagesPerUser            map[string]int                        `json:"messages_per_user"`
	AvgMessageLengthPerUser    map[string]float64                    `json:"avg_message_length_per_user"`
	TopEmojisPerUser           map[string][]EmojiCountDTO            `json:"top_emojis_per_user"`
	TopWordsPerUser            map[string][]WordCountDTO             `json:"top_words_per_user"`
	MessagesAnalyzed           int                                   `json:"messages_analyzed"`
}

// WeekdayOrder — порядок дней недели в выводе.
var WeekdayOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// NewReportDTO переводит отчет в формат вывода. Числа округляются до двух
// знаков. При anonymize имена участников заменяются на user_N.
func NewReportDTO(r *domain.Report, anonymize bool) *ReportDTO {
	name := func(u string) string {
		if anonymize {
			if id, ok := r.Metadata.UserMapping[u]; ok {
				return id
			}
		}
		return u
	}

	meta := r.Metadata
	dto := &ReportDTO{
		Metadata: MetadataDTO{
			TotalMessages: meta.TotalMessages,
			Users:         make([]string, 0, len(meta.Users)),
			StartDate:     meta.StartDate.Format(TimestampLayout),
			EndDate:       meta.EndDate.Format(TimestampLayout),
			MediaCount:    meta.MediaCount,
			MediaByType:   make(map[string]int, len(meta.MediaByType)),
			MediaByUser:   make(map[string]int, len(meta.MediaByUser)),
		},
		UserEmotionStats:           make(map[string]map[string]EmotionStatsDTO, len(r.Emotions.PerUser)),
		OverallEmotionDistribution: emotionsDTO(r.Emotions.Overall),
		OverallSentimentAvg:        round2(r.OverallSentimentAvg),
		MessagesPerDay:             round2(r.Statistics.MessagesPerDay),
		HourlyDistribution:         make(map[string]int, len(domain.HourCategories)),
		WeekdayDistribution:        make(map[string]WeekdayStatsDTO, 7),
		MessagesPerUser:            make(map[string]int, len(r.Statistics.Users)),
		AvgMessageLengthPerUser:    make(map[string]float64, len(r.Statistics.Users)),
		TopEmojisPerUser:           make(map[string][]EmojiCountDTO, len(r.Statistics.TopEmojis)),
		TopWordsPerUser:            make(map[string][]WordCountDTO, len(r.Statistics.TopWords)),
		MessagesAnalyzed:           r.MessagesAnalyzed,
	}

	for _, u := range meta.Users {
		dto.Metadata.Users = append(dto.Metadata.Users, name(u))
	}
	for t, n := range meta.MediaByType {
		dto.Metadata.MediaByType[string(t)] = n
	}
	for u, n := range meta.MediaByUser {
		dto.Metadata.MediaByUser[name(u)] = n
	}
	for u, dist := range r.Emotions.PerUser {
		dto.UserEmotionStats[name(u)] = emotionsDTO(dist)
	}

	st := r.Statistics
	for _, h := range st.Hours {
		dto.HourlyDistribution[string(h.Category)] = h.Count
	}
	for _, w := range st.Weekdays {
		dto.WeekdayDistribution[w.Weekday.String()] = WeekdayStatsDTO{
			TotalMessages: w.TotalMessages,
			Average:       round2(w.Average),
			DaysInPeriod:  w.DaysInPeriod,
		}
	}

	dto.LongestStreak.Days = st.LongestStreak.Days
	if st.LongestStreak.Days > 0 {
		start := st.LongestStreak.StartDate.Format(DateLayout)
		end := st.LongestStreak.EndDate.Format(DateLayout)
		dto.LongestStreak.StartDate = &start
		dto.LongestStreak.EndDate = &end
	}

	for _, u := range st.Users {
		dto.MessagesPerUser[name(u.User)] = u.MessageCount
		dto.AvgMessageLengthPerUser[name(u.User)] = round2(u.AvgLength)
	}
	for u, list := range st.TopEmojis {
		out := make([]EmojiCountDTO, len(list))
		for i, e := range list {
			out[i] = EmojiCountDTO{Emoji: e.Emoji, Count: e.Count}
		}
		dto.TopEmojisPerUser[name(u)] = out
	}
	for u, list := range st.TopWords {
		out := make([]WordCountDTO, len(list))
		for i, w := range list {
			out[i] = WordCountDTO{Word: w.Word, Count: w.Count}
		}
		dto.TopWordsPerUser[name(u)] = out
	}
	return dto
}

func emotionsDTO(d domain.EmotionDistribution) map[string]EmotionStatsDTO {
	out := make(map[string]EmotionStatsDTO, domain.NumEmotions)
	for i, label := range domain.Emotions {
		s := d.Stats[i]
		out[label] = EmotionStatsDTO{
			Avg:         round2(s.Avg),
			Max:         round2(s.Max),
			Frequency:   s.Frequency,
			Percentage:  round2(s.Percentage),
			StrongCount: s.StrongCount,
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
