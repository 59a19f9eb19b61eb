// Package server предоставляет HTTP API для асинхронного анализа чатов.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"chat-insights/internal/adapters/exporter"
	"chat-insights/internal/cache"
	"chat-insights/internal/domain"
	"chat-insights/internal/pkg/config"
	"chat-insights/internal/security"
)

// ChatAnalyzer определяет сценарий анализа, который вызывает сервер.
type ChatAnalyzer interface {
	AnalyzeChat(ctx context.Context, data []byte) (*domain.Report, error)
	CachedReport(hash string) (*domain.Report, bool)
}

// Option — функциональная опция для Server.
type Option func(*Server)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	analyzer   ChatAnalyzer
	opener     *security.Opener
	log        *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	tasks   sync.WaitGroup
}

// New создает новый экземпляр Server. opener может быть nil, тогда
// зашифрованные загрузки отключены.
func New(cfg *config.Config, analyzer ChatAnalyzer, taskStore *TaskStore, opener *security.Opener, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		taskStore: taskStore,
		analyzer:  analyzer,
		opener:    opener,
		log:       slog.Default(),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.routes(),
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metrics)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/public-key", s.handlePublicKey)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze-encrypted", s.handleAnalyzeEncrypted)
		r.Post("/analyze-by-hash", s.handleAnalyzeByHash)
		r.Get("/tasks/{taskID}", s.handleTaskStatus)
		r.Get("/tasks/{taskID}/result", s.handleTaskResult)
	})
	return r
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	if s.opener == nil {
		http.Error(w, "Шифрование не настроено", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": s.opener.PublicKey()})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Файл слишком большой", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Не удалось разобрать форму", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Не удалось получить файл из формы", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".txt") {
		http.Error(w, "Поддерживаются только файлы .txt", http.StatusBadRequest)
		return
	}
	if ct := header.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || (mediaType != "text/plain" && mediaType != "application/octet-stream") {
			http.Error(w, "Недопустимый тип содержимого", http.StatusUnsupportedMediaType)
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Не удалось прочитать загруженный файл", http.StatusBadRequest)
		return
	}

	s.log.InfoContext(r.Context(), "Получен экспорт чата",
		"filename", header.Filename,
		"size", len(data),
		"request_id", middleware.GetReqID(r.Context()),
	)
	s.submit(w, func(ctx context.Context) (*domain.Report, error) {
		return s.analyzer.AnalyzeChat(ctx, data)
	})
}

func (s *Server) handleAnalyzeEncrypted(w http.ResponseWriter, r *http.Request) {
	if s.opener == nil {
		http.Error(w, "Шифрование не настроено", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	var env security.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "Не удалось декодировать тело запроса", http.StatusBadRequest)
		return
	}

	data, err := s.opener.Open(env)
	if err != nil {
		s.log.WarnContext(r.Context(), "Не удалось расшифровать загрузку", "error", err)
		http.Error(w, "Не удалось расшифровать данные", http.StatusBadRequest)
		return
	}

	s.submit(w, func(ctx context.Context) (*domain.Report, error) {
		return s.analyzer.AnalyzeChat(ctx, data)
	})
}

// errCacheMiss отличает промах кеша от остальных ошибок задачи.
var errCacheMiss = errors.New("report not found in cache for given hash")

func (s *Server) handleAnalyzeByHash(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hash string `json:"hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Не удалось декодировать тело запроса", http.StatusBadRequest)
		return
	}
	if !cache.ValidHash(req.Hash) {
		http.Error(w, "Требуется хеш SHA-256 в шестнадцатеричном виде", http.StatusBadRequest)
		return
	}

	hash := strings.ToLower(req.Hash)
	s.submit(w, func(ctx context.Context) (*domain.Report, error) {
		if report, ok := s.analyzer.CachedReport(hash); ok {
			s.log.InfoContext(ctx, "Попадание в кеш для хеша", "hash", hash)
			return report, nil
		}
		s.log.InfoContext(ctx, "Промах кеша для хеша", "hash", hash)
		return nil, errCacheMiss
	})
}

// submit создает задачу, запускает fn в фоне и отвечает 202 с task_id.
func (s *Server) submit(w http.ResponseWriter, fn func(ctx context.Context) (*domain.Report, error)) {
	taskID := uuid.NewString()
	s.taskStore.CreateTask(taskID)

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.runTask(taskID, fn)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) runTask(taskID string, fn func(ctx context.Context) (*domain.Report, error)) {
	log := s.log.With("task_id", taskID)
	_ = s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

	ctx := s.baseCtx
	if s.cfg.Processing.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Processing.TaskTimeout)
		defer cancel()
	}

	start := time.Now()
	report, err := fn(ctx)
	switch {
	case errors.Is(err, errCacheMiss):
		_ = s.taskStore.UpdateTaskError(taskID, ErrorCodeCacheMiss, err.Error())
	case err != nil:
		log.Error("Задача завершилась с ошибкой", "error", err, "kind", domain.ErrorKind(err))
		_ = s.taskStore.FailTask(taskID, err)
	default:
		_ = s.taskStore.UpdateTaskResult(taskID, report)
		log.Info("Задача выполнена", "duration", time.Since(start).String(), "messages", report.MessagesAnalyzed)
	}
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskStore.GetTask(chi.URLParam(r, "taskID"))
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":       task.ID,
		"status":        task.Status,
		"error_code":    task.ErrorCode,
		"error_message": task.ErrorMessage,
	})
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskStore.GetTask(chi.URLParam(r, "taskID"))
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}
	if task.Status != TaskStatusCompleted {
		http.Error(w, "Задача не завершена", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, exporter.NewReportDTO(task.Result, s.cfg.Analysis.Anonymize))
}

// Start запускает фоновую очистку задач и кеша и HTTP-сервер.
// Блокируется до остановки сервера.
func (s *Server) Start(cacheStore *cache.CacheStore) error {
	s.taskStore.StartCleanupTicker(s.baseCtx, config.DefaultCleanupInterval)
	if cacheStore != nil {
		cacheStore.StartCleanupTicker(s.baseCtx, config.DefaultCleanupInterval)
	}

	s.log.Info("HTTP-сервер запущен", "addr", s.HTTPServer.Addr)
	if err := s.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown корректно завершает работу HTTP-сервера и ждет выполняющиеся
// задачи. По истечении ctx задачи отменяются.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Завершение работы HTTP-сервера")
	err := s.HTTPServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Отмена незавершенных задач")
		s.cancel()
		<-done
	}
	s.cancel()
	return err
}

// metrics логирует длительность запроса и выставляет X-Response-Time.
func (s *Server) metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &timedWriter{ResponseWriter: w, start: time.Now(), status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.log.InfoContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(rw.start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// timedWriter выставляет заголовок длительности до записи статуса.
type timedWriter struct {
	http.ResponseWriter
	start       time.Time
	status      int
	wroteHeader bool
}

func (w *timedWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.Header().Set("X-Response-Time", time.Since(w.start).String())
	w.ResponseWriter.WriteHeader(code)
}

func (w *timedWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
