package log

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel переводит название уровня в slog.Level. Неизвестные значения
// дают info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New строит логгер бинарника: формат json или text, уровень и маскировка секретов.
func New(w io.Writer, level, format string, secrets ...string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return NewMaskedLogger(h, secrets...)
}
