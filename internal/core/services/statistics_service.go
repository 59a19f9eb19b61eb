package services

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/graphemes"
	"github.com/clipperhouse/uax29/v2/words"
	"github.com/forPelevin/gomoji"
	"golang.org/x/text/cases"

	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

const (
	// DefaultTopEmojis — размер списка эмодзи на участника по умолчанию.
	DefaultTopEmojis = 10
	// DefaultTopWords — размер списка слов на участника по умолчанию.
	DefaultTopWords = 20
	// MinLemmaLength — минимальная длина леммы в символах.
	MinLemmaLength = 3
)

// mediaStopWords — слова из текстов-заглушек вложений и удаленных сообщений.
var mediaStopWords = []string{"medium", "omit", "omitted", "media", "omessi", "message", "deleted", "attached", "file"}

// StatsOption — функциональная опция для настройки StatisticsService.
type StatsOption func(*StatisticsService)

// WithTopEmojis задает размер списка эмодзи на участника.
func WithTopEmojis(n int) StatsOption {
	return func(s *StatisticsService) {
		if n > 0 {
			s.topEmojis = n
		}
	}
}

// WithTopWords задает размер списка слов на участника.
func WithTopWords(n int) StatsOption {
	return func(s *StatisticsService) {
		if n > 0 {
			s.topWords = n
		}
	}
}

// WithStatsLogger устанавливает логгер для сервиса статистики.
func WithStatsLogger(l *slog.Logger) StatsOption {
	return func(s *StatisticsService) {
		if l != nil {
			s.log = l
		}
	}
}

// StatisticsService вычисляет временную, лексическую статистику и серии активности.
// Сервис не хранит состояние между вызовами.
type StatisticsService struct {
	normalizer ports.Normalizer
	topEmojis  int
	topWords   int
	log        *slog.Logger
}

// NewStatisticsService создает сервис статистики. Нормализатор нужен для подсчета слов.
func NewStatisticsService(n ports.Normalizer, opts ...StatsOption) *StatisticsService {
	s := &StatisticsService{
		normalizer: n,
		topEmojis:  DefaultTopEmojis,
		topWords:   DefaultTopWords,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute вычисляет статистику по сообщениям чата.
// Ошибка возможна только при сбое нормализатора и имеет тип ProcessingError.
func (s *StatisticsService) Compute(ctx context.Context, records []domain.MessageRecord, meta domain.ChatMetadata) (domain.Statistics, error) {
	start, end := domain.CivilDate(meta.StartDate), domain.CivilDate(meta.EndDate)
	span := daysBetween(start, end) + 1
	if span < 1 {
		span = 0
	}

	active := make([]domain.MessageRecord, 0, len(records))
	for _, r := range records {
		if !r.IsSystem {
			active = append(active, r)
		}
	}

	st := domain.Statistics{
		Weekdays:      weekdayStats(active, start, span),
		Hours:         hourStats(active),
		LongestStreak: longestStreak(active, meta.Users, start, span),
		Users:         userStats(active, meta.Users),
		TopEmojis:     make(map[string][]domain.EmojiCount, len(meta.Users)),
		TopWords:      make(map[string][]domain.WordCount, len(meta.Users)),
	}
	if span > 0 {
		st.MessagesPerDay = float64(len(active)) / float64(span)
	}

	texts := textsByUser(active)
	filter := newWordFilter(meta.Users)
	for _, user := range meta.Users {
		st.TopEmojis[user] = topEmojis(texts[user], s.topEmojis)

		wordsTop, err := s.topWordsFor(ctx, texts[user], filter)
		if err != nil {
			return domain.Statistics{}, err
		}
		st.TopWords[user] = wordsTop
	}

	s.log.DebugContext(ctx, "Statistics computed",
		"messages", len(active),
		"days", span,
		"streak_days", st.LongestStreak.Days,
	)
	return st, nil
}

// occurrences возвращает число дней недели w в периоде из span дней, начиная со start.
func occurrences(w time.Weekday, start time.Time, span int) int {
	if span <= 0 {
		return 0
	}
	offset := (int(w) - int(start.Weekday()) + 7) % 7
	n := span / 7
	if offset < span%7 {
		n++
	}
	return n
}

// weekdayStats возвращает статистику в порядке от понедельника до воскресенья.
func weekdayStats(active []domain.MessageRecord, start time.Time, span int) [7]domain.WeekdayStats {
	var counts [7]int
	for _, r := range active {
		counts[r.Weekday]++
	}

	var out [7]domain.WeekdayStats
	for i := range out {
		w := time.Weekday((i + 1) % 7)
		occ := occurrences(w, start, span)
		ws := domain.WeekdayStats{Weekday: w, TotalMessages: counts[w], DaysInPeriod: occ}
		if occ > 0 {
			ws.Average = float64(counts[w]) / float64(occ)
		}
		out[i] = ws
	}
	return out
}

func hourStats(active []domain.MessageRecord) [len(domain.HourCategories)]domain.HourStats {
	var out [len(domain.HourCategories)]domain.HourStats
	for i, c := range domain.HourCategories {
		out[i].Category = c
	}
	for _, r := range active {
		out[r.Timestamp.Hour()/2].Count++
	}
	return out
}

// longestStreak ищет самую длинную серию дней, когда писал каждый участник.
// При равной длине побеждает более ранняя серия.
func longestStreak(active []domain.MessageRecord, users []string, start time.Time, span int) domain.Streak {
	if span <= 0 || len(users) == 0 {
		return domain.Streak{}
	}

	index := make(map[string]int, len(users))
	for i, u := range users {
		index[u] = i
	}
	seen := make([][]bool, span)
	present := make([]int, span)
	for _, r := range active {
		ui, ok := index[r.User]
		if !ok {
			continue
		}
		d := daysBetween(start, r.Date())
		if d < 0 || d >= span {
			continue
		}
		if seen[d] == nil {
			seen[d] = make([]bool, len(users))
		}
		if !seen[d][ui] {
			seen[d][ui] = true
			present[d]++
		}
	}

	var best domain.Streak
	run := 0
	for d := 0; d < span; d++ {
		if present[d] != len(users) {
			run = 0
			continue
		}
		run++
		if run > best.Days {
			best = domain.Streak{
				Days:      run,
				StartDate: start.AddDate(0, 0, d-run+1),
				EndDate:   start.AddDate(0, 0, d),
			}
		}
	}
	return best
}

func userStats(active []domain.MessageRecord, users []string) []domain.UserStats {
	type acc struct{ count, textCount, length int }
	per := make(map[string]*acc, len(users))
	for _, u := range users {
		per[u] = &acc{}
	}
	for _, r := range active {
		a, ok := per[r.User]
		if !ok {
			continue
		}
		a.count++
		if !r.IsMedia {
			a.textCount++
			a.length += r.Length
		}
	}

	out := make([]domain.UserStats, 0, len(users))
	for _, u := range users {
		a := per[u]
		us := domain.UserStats{User: u, MessageCount: a.count}
		if a.textCount > 0 {
			us.AvgLength = float64(a.length) / float64(a.textCount)
		}
		out = append(out, us)
	}
	return out
}

// textsByUser собирает тексты не-медиа сообщений каждого участника в порядке появления.
func textsByUser(active []domain.MessageRecord) map[string][]string {
	out := make(map[string][]string)
	for _, r := range active {
		if r.IsMedia || r.Text == "" {
			continue
		}
		out[r.User] = append(out[r.User], r.Text)
	}
	return out
}

// tally считает вхождения, запоминая порядок первого появления.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(key string) {
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.counts[key]++
}

// top возвращает не более k ключей по убыванию частоты;
// при равенстве сохраняется порядок первого появления.
func (t *tally) top(k int) []string {
	keys := slices.Clone(t.order)
	slices.SortStableFunc(keys, func(a, b string) int {
		return t.counts[b] - t.counts[a]
	})
	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}

func topEmojis(texts []string, k int) []domain.EmojiCount {
	t := newTally()
	for _, text := range texts {
		seg := graphemes.FromString(text)
		for seg.Next() {
			g := seg.Value()
			if len(g) == 1 {
				// Однобайтовые символы ASCII не бывают эмодзи.
				continue
			}
			if gomoji.ContainsEmoji(g) {
				t.add(g)
			}
		}
	}

	keys := t.top(k)
	out := make([]domain.EmojiCount, 0, len(keys))
	for _, e := range keys {
		out = append(out, domain.EmojiCount{Emoji: e, Count: t.counts[e]})
	}
	return out
}

// wordFilter отбрасывает имена участников (целиком и по частям) и слова
// из заглушек вложений без учета регистра. Caser хранит состояние,
// поэтому фильтр создается на каждый вызов Compute.
type wordFilter struct {
	fold cases.Caser
	stop map[string]struct{}
}

func newWordFilter(users []string) *wordFilter {
	f := &wordFilter{fold: cases.Fold(), stop: make(map[string]struct{})}
	for _, u := range users {
		f.stop[f.fold.String(u)] = struct{}{}
		for _, part := range strings.Fields(u) {
			f.stop[f.fold.String(part)] = struct{}{}
		}
	}
	for _, w := range mediaStopWords {
		f.stop[w] = struct{}{}
	}
	return f
}

func (f *wordFilter) drop(word string) bool {
	_, ok := f.stop[f.fold.String(word)]
	return ok
}

// topWordsFor фильтрует слова участника, передает их нормализатору
// и считает леммы знаменательных частей речи.
func (s *StatisticsService) topWordsFor(ctx context.Context, texts []string, filter *wordFilter) ([]domain.WordCount, error) {
	if len(texts) == 0 || s.normalizer == nil {
		return []domain.WordCount{}, nil
	}

	lines := make([]string, 0, len(texts))
	for _, text := range texts {
		var kept []string
		seg := words.FromString(text)
		for seg.Next() {
			tok := seg.Value()
			if !hasLetter(tok) {
				continue
			}
			if filter.drop(tok) {
				continue
			}
			kept = append(kept, tok)
		}
		if len(kept) > 0 {
			lines = append(lines, strings.Join(kept, " "))
		}
	}
	if len(lines) == 0 {
		return []domain.WordCount{}, nil
	}

	tokens, err := s.normalizer.Normalize(ctx, strings.Join(lines, "\n"))
	if err != nil {
		return nil, domain.NewProcessingError("normalizer", err)
	}

	t := newTally()
	for _, tok := range tokens {
		if !tok.POS.IsContent() {
			continue
		}
		lemma := strings.ToLower(tok.Lemma)
		if utf8.RuneCountInString(lemma) < MinLemmaLength {
			continue
		}
		if filter.drop(lemma) {
			continue
		}
		t.add(lemma)
	}

	keys := t.top(s.topWords)
	out := make([]domain.WordCount, 0, len(keys))
	for _, w := range keys {
		out = append(out, domain.WordCount{Word: w, Count: t.counts[w]})
	}
	return out, nil
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// daysBetween возвращает число календарных дней от a до b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
