package exporter

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"

	"chat-insights/internal/domain"
)

// Table — текстовая таблица с фиксированной шириной колонок.
type Table struct {
	Title   string
	Headers []string
	Widths  []int
	Rows    [][]string
}

// Render рисует таблицу моноширинным текстом. Длинные ячейки
// переносятся по словам с учетом ширины символов на экране.
func (t Table) Render() string {
	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(t.Title)
		sb.WriteString("\n")
	}
	t.writeRow(&sb, t.Headers)

	sb.WriteString("|")
	for _, w := range t.Widths {
		sb.WriteString(strings.Repeat("-", w+2))
		sb.WriteString("|")
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		t.writeRow(&sb, row)
	}
	return sb.String()
}

func (t Table) writeRow(sb *strings.Builder, cells []string) {
	wrapped := make([][]string, len(t.Widths))
	lines := 1
	for i, w := range t.Widths {
		cell := ""
		if i < len(cells) {
			cell = strings.ReplaceAll(strings.ToValidUTF8(cells[i], ""), "\n", " ")
		}
		wrapped[i] = wrapString(cell, w)
		lines = max(lines, len(wrapped[i]))
	}

	for l := 0; l < lines; l++ {
		for i, w := range t.Widths {
			part := ""
			if l < len(wrapped[i]) {
				part = wrapped[i][l]
			}
			fmt.Fprintf(sb, "| %s%s ", part, padding(part, w))
		}
		sb.WriteString("|\n")
	}
}

// padding вычисляет отступ с поправкой на CJK-символы, которые
// некоторые клиенты рисуют шире расчетного.
func padding(s string, width int) string {
	n := width - runewidth.StringWidth(s)
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hangul, unicode.Hiragana, unicode.Katakana) {
			if n >= 0 {
				n++
			}
			break
		}
	}
	if n > 0 {
		return strings.Repeat(" ", n)
	}
	return ""
}

// wrapString переносит строку по словам в пределах width.
// Слово длиннее width разрывается посередине.
func wrapString(s string, width int) []string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return []string{s}
	}

	var lines []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
	}

	for _, word := range strings.Fields(s) {
		ww := runewidth.StringWidth(word)
		if ww > width {
			flush()
			lines = append(lines, breakWord(word, width)...)
			continue
		}
		cw := runewidth.StringWidth(current.String())
		if cw > 0 && cw+1+ww > width {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	flush()

	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func breakWord(word string, width int) []string {
	var out []string
	runes := []rune(word)
	for len(runes) > 0 {
		i, w := 0, 0
		for i < len(runes) {
			rw := runewidth.RuneWidth(runes[i])
			if w+rw > width && i > 0 {
				break
			}
			w += rw
			i++
		}
		out = append(out, string(runes[:i]))
		runes = runes[i:]
	}
	return out
}

// SummaryTables собирает таблицы краткой сводки по отчету.
// topN ограничивает число эмоций, эмодзи и слов.
func SummaryTables(d *ReportDTO, topN int) []Table {
	streak := "нет"
	if d.LongestStreak.Days > 0 {
		streak = fmt.Sprintf("%d (%s .. %s)", d.LongestStreak.Days, *d.LongestStreak.StartDate, *d.LongestStreak.EndDate)
	}
	overview := Table{
		Title:   "Обзор",
		Headers: []string{"Показатель", "Значение"},
		Widths:  []int{22, 30},
		Rows: [][]string{
			{"Сообщений", fmt.Sprint(d.Metadata.TotalMessages)},
			{"Участников", fmt.Sprint(len(d.Metadata.Users))},
			{"Период", d.Metadata.StartDate + " .. " + d.Metadata.EndDate},
			{"Медиа", fmt.Sprint(d.Metadata.MediaCount)},
			{"Сообщений в день", formatFloat(d.MessagesPerDay)},
			{"Средняя тональность", formatFloat(d.OverallSentimentAvg)},
			{"Общие дни подряд", streak},
			{"Оценено сообщений", fmt.Sprint(d.MessagesAnalyzed)},
		},
	}

	users := Table{
		Title:   "Участники",
		Headers: []string{"Участник", "Сообщ.", "Ср. длина", "Медиа", "Эмодзи", "Слова"},
		Widths:  []int{16, 6, 9, 5, 12, 24},
	}
	for _, u := range d.Metadata.Users {
		users.Rows = append(users.Rows, []string{
			u,
			fmt.Sprint(d.MessagesPerUser[u]),
			formatFloat(d.AvgMessageLengthPerUser[u]),
			fmt.Sprint(d.Metadata.MediaByUser[u]),
			joinEmojis(d.TopEmojisPerUser[u], topN),
			joinWords(d.TopWordsPerUser[u], topN),
		})
	}

	emotions := Table{
		Title:   "Эмоции",
		Headers: []string{"Эмоция", "Среднее", "Макс.", "Частота", "%"},
		Widths:  []int{14, 7, 5, 7, 6},
	}
	for _, label := range TopEmotions(d.OverallEmotionDistribution, topN) {
		s := d.OverallEmotionDistribution[label]
		emotions.Rows = append(emotions.Rows, []string{
			label, formatFloat(s.Avg), formatFloat(s.Max), fmt.Sprint(s.Frequency), formatFloat(s.Percentage),
		})
	}

	weekdays := Table{
		Title:   "Дни недели",
		Headers: []string{"День", "Всего", "В среднем", "Дней"},
		Widths:  []int{10, 6, 9, 5},
	}
	for _, wd := range WeekdayOrder {
		s := d.WeekdayDistribution[wd.String()]
		weekdays.Rows = append(weekdays.Rows, []string{
			wd.String(), fmt.Sprint(s.TotalMessages), formatFloat(s.Average), fmt.Sprint(s.DaysInPeriod),
		})
	}

	hours := Table{
		Title:   "Время суток",
		Headers: []string{"Часы", "Сообщ."},
		Widths:  []int{6, 6},
	}
	for _, h := range domain.HourCategories {
		hours.Rows = append(hours.Rows, []string{string(h), fmt.Sprint(d.HourlyDistribution[string(h)])})
	}

	return []Table{overview, users, emotions, weekdays, hours}
}

// TopEmotions возвращает до n меток с наибольшей частотой доминирования,
// при равенстве выше та, у которой больше средняя оценка.
func TopEmotions(dist map[string]EmotionStatsDTO, n int) []string {
	labels := make([]string, 0, len(dist))
	for _, l := range domain.Emotions {
		if _, ok := dist[l]; ok {
			labels = append(labels, l)
		}
	}
	slices.SortStableFunc(labels, func(a, b string) int {
		sa, sb := dist[a], dist[b]
		if sa.Frequency != sb.Frequency {
			return sb.Frequency - sa.Frequency
		}
		switch {
		case sa.Avg > sb.Avg:
			return -1
		case sa.Avg < sb.Avg:
			return 1
		}
		return 0
	})
	if n > 0 && len(labels) > n {
		labels = labels[:n]
	}
	return labels
}

func joinEmojis(list []EmojiCountDTO, n int) string {
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	parts := make([]string, 0, n)
	for i, e := range list {
		if i == n {
			break
		}
		parts = append(parts, fmt.Sprintf("%s%d", e.Emoji, e.Count))
	}
	return strings.Join(parts, " ")
}

func joinWords(list []WordCountDTO, n int) string {
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	parts := make([]string, 0, n)
	for i, w := range list {
		if i == n {
			break
		}
		parts = append(parts, fmt.Sprintf("%s(%d)", w.Word, w.Count))
	}
	return strings.Join(parts, " ")
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
