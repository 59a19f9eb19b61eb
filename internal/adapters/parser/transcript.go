package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"chat-insights/internal/domain"
)

// DateOrder — порядок полей дня и месяца в дате заголовка.
type DateOrder int

const (
	// DayFirst — день перед месяцем (14/03/2024).
	DayFirst DateOrder = iota
	// MonthFirst — месяц перед днем (03/14/2024).
	MonthFirst
)

// ParseDateOrder разбирает значение конфигурации "dmy" или "mdy".
func ParseDateOrder(s string) (DateOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dmy":
		return DayFirst, nil
	case "mdy":
		return MonthFirst, nil
	}
	return DayFirst, fmt.Errorf("unknown date order %q", s)
}

func (o DateOrder) String() string {
	if o == MonthFirst {
		return "mdy"
	}
	return "dmy"
}

// Grammar — одна грамматика заголовка сообщения.
// Группы выражения: поле 1 даты, поле 2 даты, год, часы, минуты,
// секунды (необязательно), AM/PM (необязательно), остаток строки.
type Grammar struct {
	Name string
	re   *regexp.Regexp
}

// NewGrammar компилирует грамматику заголовка.
func NewGrammar(name, pattern string) (Grammar, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Grammar{}, fmt.Errorf("compile grammar %s: %w", name, err)
	}
	if re.NumSubexp() != 8 {
		return Grammar{}, fmt.Errorf("grammar %s: expected 8 capture groups, got %d", name, re.NumSubexp())
	}
	return Grammar{Name: name, re: re}, nil
}

const (
	datePart = `(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})`
	timePart = `(\d{1,2})[:.](\d{2})(?:[:.](\d{2}))?(?:[\s\x{202F}\x{00A0}]?([AaPp]\.?\s?[Mm]\.?))?`
)

// DefaultGrammars — экспорт Android ("14/03/2024, 10:00 - Имя: текст")
// и экспорт iOS ("[14/03/2024, 10:00:00] Имя: текст").
var DefaultGrammars = []Grammar{
	{Name: "android", re: regexp.MustCompile(`^` + datePart + `,?\s` + timePart + `\s[-–]\s(.*)$`)},
	{Name: "ios", re: regexp.MustCompile(`^\[` + datePart + `,?\s` + timePart + `\]\s(.*)$`)},
}

// systemNotices — служебные уведомления, которые экспорт iOS подписывает именем чата.
var systemNotices = []string{
	"messages and calls are end-to-end encrypted",
	"i messaggi e le chiamate sono crittografati end-to-end",
}

// mediaPlaceholder распознает текст-заглушку вложения целиком.
var mediaPlaceholder = regexp.MustCompile(`(?i)^(?:` +
	`<media omitted>|<media omessi>|<attached: [^>]+>|` +
	`.*\b(?:image|video|audio|gif|sticker|document|contact card) omitted|` +
	`.+ \(file attached\)|` +
	`location: \S+` +
	`)$`)

// mediaMarkers проверяются по порядку; побеждает первый совпавший тип.
var mediaMarkers = []struct {
	kind    domain.MediaType
	markers []string
}{
	{domain.MediaPhoto, []string{"image omitted", "img-", ".jpg", ".jpeg", ".png"}},
	{domain.MediaVideo, []string{"video omitted", "vid-", ".mp4", ".mov", ".3gp"}},
	{domain.MediaAudio, []string{"audio omitted", "ptt-", "aud-", ".opus", ".m4a", ".mp3", ".aac"}},
	{domain.MediaGIF, []string{"gif omitted", ".gif"}},
	{domain.MediaDocument, []string{"document omitted", ".pdf", ".docx", ".doc", ".xlsx", ".pptx"}},
	{domain.MediaSticker, []string{"sticker omitted", "stk-", ".webp"}},
	{domain.MediaOther, []string{"contact card omitted", ".vcf", "location:"}},
}

// Option — функциональная опция для настройки TranscriptParser.
type Option func(*TranscriptParser)

// WithDateOrder задает порядок полей даты, если документ неоднозначен.
func WithDateOrder(o DateOrder) Option {
	return func(p *TranscriptParser) {
		p.order = o
	}
}

// WithGrammars заменяет список грамматик заголовка.
func WithGrammars(g ...Grammar) Option {
	return func(p *TranscriptParser) {
		if len(g) > 0 {
			p.grammars = g
		}
	}
}

// WithLogger устанавливает логгер для парсера.
func WithLogger(l *slog.Logger) Option {
	return func(p *TranscriptParser) {
		if l != nil {
			p.log = l
		}
	}
}

// TranscriptParser разбирает текстовый экспорт WhatsApp.
// Не хранит состояние между вызовами и безопасен для одновременного использования.
type TranscriptParser struct {
	grammars []Grammar
	order    DateOrder
	log      *slog.Logger
}

// NewTranscriptParser создает парсер с грамматиками по умолчанию и порядком DayFirst.
func NewTranscriptParser(opts ...Option) *TranscriptParser {
	p := &TranscriptParser{
		grammars: DefaultGrammars,
		order:    DayFirst,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// header — распознанный, но еще не проверенный заголовок сообщения.
type header struct {
	first, second, year int
	hour, minute, sec   int
	meridiem            byte // 'a', 'p' или 0
	rest                string
}

type line struct {
	text string
	hdr  *header
}

// Parse преобразует текст экспорта в упорядоченный список сообщений.
// Нераспознанные строки присоединяются к предыдущему сообщению.
// Ошибка возвращается только если ни одна строка не открывает сообщение.
func (p *TranscriptParser) Parse(text string) ([]domain.MessageRecord, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	raw := strings.Split(text, "\n")

	lines := make([]line, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(strings.Map(dropMarks, l))
		if l == "" {
			continue
		}
		lines = append(lines, line{text: l, hdr: p.matchHeader(l)})
	}

	order := p.documentOrder(lines)

	var records []domain.MessageRecord
	dropped := 0
	for _, l := range lines {
		if l.hdr != nil {
			if ts, ok := l.hdr.timestamp(order); ok {
				records = append(records, newRecord(ts, l.hdr.rest))
				continue
			}
		}
		if len(records) == 0 {
			dropped++
			continue
		}
		last := &records[len(records)-1]
		last.Text += "\n" + l.text
		last.Length = utf8.RuneCountInString(last.Text)
	}

	if len(records) == 0 {
		return nil, &domain.ParseError{Lines: len(lines), Reason: "no line matches a message header"}
	}
	if dropped > 0 {
		p.log.Debug("Dropped leading continuation lines", "count", dropped)
	}
	return records, nil
}

// matchHeader пробует грамматики по порядку.
func (p *TranscriptParser) matchHeader(l string) *header {
	for _, g := range p.grammars {
		m := g.re.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		h := &header{rest: m[8]}
		h.first, _ = strconv.Atoi(m[1])
		h.second, _ = strconv.Atoi(m[2])
		h.year, _ = strconv.Atoi(m[3])
		h.hour, _ = strconv.Atoi(m[4])
		h.minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			h.sec, _ = strconv.Atoi(m[6])
		}
		if m[7] != "" {
			h.meridiem = strings.ToLower(m[7])[0]
		}
		return h
	}
	return nil
}

// documentOrder выбирает порядок полей даты для всего документа.
// Значение больше 12 в первом поле означает, что первым идет день;
// во втором поле — что первым идет месяц. Если свидетельств нет или они
// противоречат друг другу, используется настроенный порядок.
func (p *TranscriptParser) documentOrder(lines []line) DateOrder {
	dayFirst, monthFirst := false, false
	for _, l := range lines {
		if l.hdr == nil {
			continue
		}
		if l.hdr.first > 12 {
			dayFirst = true
		}
		if l.hdr.second > 12 {
			monthFirst = true
		}
	}
	switch {
	case dayFirst && !monthFirst:
		return DayFirst
	case monthFirst && !dayFirst:
		return MonthFirst
	}
	return p.order
}

// timestamp собирает время сообщения. Если дата недопустима в порядке
// документа, пробует обратный порядок.
func (h *header) timestamp(order DateOrder) (time.Time, bool) {
	hour, ok := h.clockHour()
	if !ok || h.minute > 59 || h.sec > 59 {
		return time.Time{}, false
	}
	year := h.year
	switch {
	case year < 100:
		year += 2000
	case year < 1000:
		return time.Time{}, false
	}

	day, month := h.first, h.second
	if order == MonthFirst {
		day, month = month, day
	}
	if !validDate(year, month, day) {
		day, month = month, day
		if !validDate(year, month, day) {
			return time.Time{}, false
		}
	}
	return time.Date(year, time.Month(month), day, hour, h.minute, h.sec, 0, time.UTC), true
}

func (h *header) clockHour() (int, bool) {
	switch h.meridiem {
	case 0:
		return h.hour, h.hour <= 23
	case 'a':
		if h.hour < 1 || h.hour > 12 {
			return 0, false
		}
		return h.hour % 12, true
	default:
		if h.hour < 1 || h.hour > 12 {
			return 0, false
		}
		return h.hour%12 + 12, true
	}
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// newRecord разбирает остаток строки после заголовка.
func newRecord(ts time.Time, rest string) domain.MessageRecord {
	rec := domain.MessageRecord{
		Timestamp:    ts,
		Weekday:      ts.Weekday(),
		HourCategory: domain.HourCategoryOf(ts),
	}

	user, body, found := strings.Cut(rest, ": ")
	if !found && strings.HasSuffix(rest, ":") {
		// Сообщение с пустым телом: обрезка строки съедает пробел после двоеточия.
		user, body, found = strings.TrimSuffix(rest, ":"), "", true
	}
	if !found || strings.TrimSpace(user) == "" {
		rec.IsSystem = true
		rec.Text = strings.TrimSpace(rest)
	} else {
		rec.User = strings.TrimSpace(user)
		rec.Text = strings.TrimSpace(body)
		rec.IsSystem = isSystemNotice(rec.Text)
	}
	rec.Length = utf8.RuneCountInString(rec.Text)

	if !rec.IsSystem {
		if kind, ok := detectMedia(rec.Text); ok {
			rec.IsMedia = true
			rec.MediaType = kind
		}
	}
	return rec
}

func isSystemNotice(body string) bool {
	lower := strings.ToLower(body)
	for _, n := range systemNotices {
		if strings.HasPrefix(lower, n) {
			return true
		}
	}
	return false
}

// detectMedia определяет тип вложения по тексту-заглушке.
func detectMedia(body string) (domain.MediaType, bool) {
	if !mediaPlaceholder.MatchString(body) {
		return "", false
	}
	lower := strings.ToLower(body)
	for _, m := range mediaMarkers {
		for _, marker := range m.markers {
			if strings.Contains(lower, marker) {
				return m.kind, true
			}
		}
	}
	return domain.MediaUnknown, true
}

// dropMarks удаляет невидимые метки направления текста, которые вставляет экспорт.
func dropMarks(r rune) rune {
	switch r {
	case '\u200e', '\u200f', '\u202a', '\u202c', '\r':
		return -1
	}
	return r
}
