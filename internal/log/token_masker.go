// Package log содержит обработчики slog: маскировку секретов
// и адаптер для логгера библиотеки Telegram-бота.
package log

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const mask = "***masked***"

var (
	// Токен бота Telegram: botID:secret.
	telegramTokenRegex = regexp.MustCompile(`\bbot\d+:[A-Za-z0-9_-]{35,}`)
	// Заголовок авторизации сервиса инференса.
	bearerRegex = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)
)

// masker заменяет известные секреты и токены по шаблонам.
type masker struct {
	secrets *strings.Replacer
}

func newMasker(secrets []string) *masker {
	pairs := make([]string, 0, 2*len(secrets))
	for _, s := range secrets {
		if len(s) >= 8 {
			pairs = append(pairs, s, mask)
		}
	}
	m := &masker{}
	if len(pairs) > 0 {
		m.secrets = strings.NewReplacer(pairs...)
	}
	return m
}

func (m *masker) apply(text string) string {
	if m.secrets != nil {
		text = m.secrets.Replace(text)
	}
	text = telegramTokenRegex.ReplaceAllString(text, "bot***:"+mask)
	return bearerRegex.ReplaceAllString(text, "Bearer "+mask)
}

func (m *masker) value(v slog.Value) slog.Value {
	switch v.Kind() {
	case slog.KindString:
		return slog.StringValue(m.apply(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.StringValue(m.apply(err.Error()))
		}
		return v
	case slog.KindGroup:
		group := v.Group()
		masked := make([]slog.Attr, len(group))
		for i, a := range group {
			masked[i] = slog.Attr{Key: a.Key, Value: m.value(a.Value)}
		}
		return slog.GroupValue(masked...)
	case slog.KindLogValuer:
		return m.value(v.Resolve())
	default:
		return v
	}
}

// MaskingHandler — обертка slog.Handler, скрывающая токены и ключи
// в сообщениях и атрибутах.
type MaskingHandler struct {
	handler slog.Handler
	m       *masker
}

// NewMaskingHandler создает обработчик. Помимо токенов бота и заголовков
// Bearer маскируются все переданные secrets длиной от 8 символов.
func NewMaskingHandler(handler slog.Handler, secrets ...string) *MaskingHandler {
	return &MaskingHandler{handler: handler, m: newMasker(secrets)}
}

// Enabled реализует интерфейс slog.Handler.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler.
func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	// Копия без атрибутов: исходную запись slog может переиспользовать.
	r := slog.NewRecord(record.Time, record.Level, h.m.apply(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(slog.Attr{Key: a.Key, Value: h.m.value(a.Value)})
		return true
	})
	return h.handler.Handle(ctx, r)
}

// WithAttrs реализует интерфейс slog.Handler.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = slog.Attr{Key: a.Key, Value: h.m.value(a.Value)}
	}
	return &MaskingHandler{handler: h.handler.WithAttrs(masked), m: h.m}
}

// WithGroup реализует интерфейс slog.Handler.
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{handler: h.handler.WithGroup(name), m: h.m}
}

// NewMaskedLogger создает slog.Logger с маскировкой секретов.
func NewMaskedLogger(handler slog.Handler, secrets ...string) *slog.Logger {
	return slog.New(NewMaskingHandler(handler, secrets...))
}
