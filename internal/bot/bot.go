// Package bot реализует Telegram-бота, который принимает экспорт чата
// WhatsApp, отправляет его на бэкенд и возвращает сводку и Excel-отчет.
package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chat-insights/cmd/bot/config"
	"chat-insights/internal/adapters/exporter"
	"chat-insights/internal/log"
)

const (
	startCommand = "start"
	helpCommand  = "help"

	// maxMessageLength — ограничение Telegram на длину текста сообщения.
	maxMessageLength = 4096
)

// Bot представляет собой основной объект Telegram-бота.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          config.BotConfig
	serverClient ServerAPI
	taskStore    *TaskStore
	logger       *slog.Logger
	httpClient   *http.Client
	polls        sync.WaitGroup

	sendMessageFunc      func(tgbotapi.Chattable) (tgbotapi.Message, error)
	getFileDirectURLFunc func(fileID string) (string, error)
}

// NewBot создает и инициализирует новый экземпляр бота.
func NewBot(cfg config.BotConfig, serverClient ServerAPI, taskStore *TaskStore, logger *slog.Logger) (*Bot, error) {
	if err := tgbotapi.SetLogger(&log.TGBotAPIAdapter{Logger: logger}); err != nil {
		return nil, fmt.Errorf("failed to set bot api logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	logger.Info("Authorized on account", slog.String("username", api.Self.UserName))

	return &Bot{
		api:                  api,
		cfg:                  cfg,
		serverClient:         serverClient,
		taskStore:            taskStore,
		logger:               logger,
		httpClient:           &http.Client{Timeout: cfg.HTTPTimeout},
		sendMessageFunc:      api.Send,
		getFileDirectURLFunc: api.GetFileDirectURL,
	}, nil
}

// Start запускает основной цикл обработки обновлений от Telegram.
// После отмены ctx дожидается завершения фоновых опросов задач.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context cancelled, stopping bot...")
			b.api.StopReceivingUpdates()
			b.polls.Wait()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}

	b.reply(msg.Chat.ID, "Пожалуйста, отправьте мне .txt файл с историей чата, выгруженный из WhatsApp (\"Экспорт чата\" без медиа).")
}

// handleCommand обрабатывает команды.
func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case startCommand, helpCommand:
		b.reply(msg.Chat.ID, "Добро пожаловать! Я анализирую переписку WhatsApp.\n\n"+
			"Отправьте мне .txt файл экспорта чата, и я пришлю статистику активности, "+
			"эмодзи, частые слова и распределение эмоций участников, а также Excel-отчет.\n\n"+
			"Пожалуйста, обратите внимание:\n"+
			"• Я обрабатываю один файл за раз.\n"+
			"• Файлы не сохраняются и обрабатываются на лету.")
	default:
		b.reply(msg.Chat.ID, "Я не знаю такой команды.")
	}
}

// handleDocument скачивает экспорт, ставит задачу на бэкенде и запускает опрос.
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	logger := b.logger.With(slog.Int64("chat_id", chatID))
	doc := msg.Document

	if !strings.EqualFold(filepath.Ext(doc.FileName), ".txt") {
		b.reply(chatID, "Я принимаю только .txt файлы экспорта WhatsApp.")
		return
	}
	if int64(doc.FileSize) > b.cfg.MaxFileBytes() {
		b.reply(chatID, fmt.Sprintf("Файл слишком большой. Максимальный размер: %d МБ.", b.cfg.MaxFileSizeMB))
		return
	}

	if !b.taskStore.Reserve(chatID) {
		logger.Warn("user tried to start a new task while another is active")
		b.reply(chatID, "Пожалуйста, подождите завершения предыдущей задачи, прежде чем начинать новую.")
		return
	}

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		b.taskStore.Delete(chatID)
		logger.Error("failed to download file", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось скачать файл. Попробуйте отправить его еще раз.")
		return
	}

	startResp, err := b.serverClient.StartTask(ctx, doc.FileName, bytes.NewReader(data))
	if err != nil {
		b.taskStore.Delete(chatID)
		logger.Error("failed to start task on backend", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось начать обработку файла на сервере. Пожалуйста, попробуйте позже.")
		return
	}

	taskID := startResp.TaskID
	logger.Info("task started on backend", slog.String("task_id", taskID), slog.Int("size", len(data)))
	b.taskStore.Set(chatID, taskID)
	b.reply(chatID, "✅ Файл получен и поставлен в очередь на обработку. Ожидайте результата.")

	b.polls.Add(1)
	go func() {
		defer b.polls.Done()
		b.pollTaskStatus(ctx, chatID, taskID)
	}()
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.getFileDirectURLFunc(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file direct url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	limit := b.cfg.MaxFileBytes()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errors.New("file exceeds size limit")
	}
	return data, nil
}

// pollTaskStatus опрашивает статус задачи до ее завершения, отмены ctx
// или MaxPollErrors подряд неудачных запросов.
func (b *Bot) pollTaskStatus(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))
	defer b.taskStore.Delete(chatID)

	ticker := time.NewTicker(b.cfg.PollingInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			logger.Warn("polling cancelled by context")
			return
		case <-ticker.C:
			status, err := b.serverClient.GetTaskStatus(ctx, taskID)
			if err != nil {
				failures++
				logger.Error("failed to get task status", slog.String("error", err.Error()), slog.Int("failures", failures))
				if failures >= b.cfg.MaxPollErrors {
					b.reply(chatID, "Сервер недоступен, не удалось дождаться результата. Попробуйте позже.")
					return
				}
				continue
			}
			failures = 0

			switch status.Status {
			case "completed":
				logger.Info("task completed")
				b.processCompletedTask(ctx, chatID, taskID)
				return
			case "failed":
				logger.Warn("task failed", slog.String("code", status.ErrorCode), slog.String("reason", status.ErrorMessage))
				b.reply(chatID, failureText(status))
				return
			case "pending", "processing":
				logger.Debug("task is in progress", slog.String("status", status.Status))
			default:
				logger.Warn("unknown task status", slog.String("status", status.Status))
			}
		}
	}
}

// failureText переводит код ошибки задачи в сообщение для пользователя.
func failureText(s *TaskStatusResponse) string {
	switch s.ErrorCode {
	case "parse_error":
		return "Не удалось разобрать файл. Убедитесь, что это экспорт чата WhatsApp в формате .txt."
	case "validation_error":
		return "Файл не подходит для анализа: " + s.ErrorMessage
	case "timeout":
		return "Анализ занял слишком много времени. Попробуйте файл меньшего размера."
	case "processing_error":
		return "Сервис анализа временно недоступен. Пожалуйста, попробуйте позже."
	default:
		return "Произошла ошибка при обработке файла: " + s.ErrorMessage
	}
}

// processCompletedTask получает отчет и отправляет сводку и Excel-файл.
func (b *Bot) processCompletedTask(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))

	report, err := b.serverClient.GetTaskResult(ctx, taskID)
	if err != nil {
		logger.Error("failed to fetch result", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось получить результаты для выполненной задачи. Пожалуйста, попробуйте позже.")
		return
	}
	logger.Info("successfully fetched result", slog.Int("messages", report.Metadata.TotalMessages))

	chunks, ok := renderSummary(report, b.cfg.TopN)
	if !ok {
		logger.Warn("summary is too long for a message, sending workbook only")
	}
	for _, text := range chunks {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		b.sendMessage(msg)
	}

	b.sendWorkbook(chatID, report)
}

// renderSummary рисует таблицы сводки в HTML и делит их на сообщения не
// длиннее maxMessageLength. Если какая-то таблица не помещается в одно
// сообщение, возвращает false.
func renderSummary(d *exporter.ReportDTO, topN int) ([]string, bool) {
	var chunks []string
	var cur strings.Builder
	for _, t := range exporter.SummaryTables(d, topN) {
		title := t.Title
		t.Title = ""
		block := "<b>" + html.EscapeString(title) + "</b>\n<pre>" + html.EscapeString(t.Render()) + "</pre>\n"
		if len(block) > maxMessageLength {
			return nil, false
		}
		if cur.Len()+len(block) > maxMessageLength {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(block)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks, true
}

func (b *Bot) sendWorkbook(chatID int64, report *exporter.ReportDTO) {
	buf, err := exporter.Workbook(report)
	if err != nil {
		b.logger.Error("failed to build workbook", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось сгенерировать Excel-файл.")
		return
	}

	fileName := fmt.Sprintf("chat_insights_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: fileName, Bytes: buf.Bytes()})
	msg.Caption = fmt.Sprintf("Анализ завершен. Сообщений: %d, участников: %d.", report.Metadata.TotalMessages, len(report.Metadata.Users))
	b.sendMessage(msg)
}

func (b *Bot) reply(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.sendMessageFunc(msg); err != nil {
		b.logger.Error("failed to send message", slog.String("error", err.Error()))
	}
}
