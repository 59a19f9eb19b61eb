package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// TGBotAPIAdapter направляет сообщения библиотеки go-telegram-bot-api в slog.
// Сообщения проходят через маскировку, если логгер создан NewMaskedLogger.
type TGBotAPIAdapter struct {
	Logger *slog.Logger
}

// Println реализует интерфейс tgbotapi.BotLogger.
func (a *TGBotAPIAdapter) Println(v ...interface{}) {
	a.Logger.Debug(strings.TrimSpace(fmt.Sprintln(v...)), "source", "tgbotapi")
}

// Printf реализует интерфейс tgbotapi.BotLogger.
func (a *TGBotAPIAdapter) Printf(format string, v ...interface{}) {
	a.Logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "tgbotapi")
}
