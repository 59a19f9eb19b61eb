package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-insights/internal/domain"
)

// ErrTaskNotFound возвращается для неизвестного или удаленного идентификатора задачи.
var ErrTaskNotFound = errors.New("task not found")

// TaskStatus представляет статус задачи анализа
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Коды ошибок задач помимо domain.ErrorKind.
const (
	ErrorCodeCacheMiss = "cache_miss"
	ErrorCodeTimeout   = "timeout"
)

// Task — одна задача анализа.
type Task struct {
	ID           string
	Status       TaskStatus
	Result       *domain.Report
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// TaskStore управляет хранением и извлечением задач
type TaskStore struct {
	tasks map[string]*Task
	mutex sync.RWMutex
	ttl   time.Duration
}

// NewTaskStore создает хранилище, в котором задачи живут ttl с момента создания.
func NewTaskStore(ttl time.Duration) *TaskStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TaskStore{
		tasks: make(map[string]*Task),
		ttl:   ttl,
	}
}

// CreateTask создает новую задачу со статусом pending.
func (ts *TaskStore) CreateTask(taskID string) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	now := time.Now()
	ts.tasks[taskID] = &Task{
		ID:        taskID,
		Status:    TaskStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ts.ttl),
	}
}

func (ts *TaskStore) update(taskID string, fn func(*Task)) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	fn(task)
	return nil
}

// UpdateTaskStatus обновляет статус задачи
func (ts *TaskStore) UpdateTaskStatus(taskID string, status TaskStatus) error {
	return ts.update(taskID, func(t *Task) { t.Status = status })
}

// UpdateTaskResult сохраняет отчет и переводит задачу в completed.
func (ts *TaskStore) UpdateTaskResult(taskID string, report *domain.Report) error {
	return ts.update(taskID, func(t *Task) {
		t.Status = TaskStatusCompleted
		t.Result = report
	})
}

// UpdateTaskError переводит задачу в failed с кодом и текстом ошибки.
func (ts *TaskStore) UpdateTaskError(taskID, code, message string) error {
	return ts.update(taskID, func(t *Task) {
		t.Status = TaskStatusFailed
		t.ErrorCode = code
		t.ErrorMessage = message
	})
}

// FailTask переводит задачу в failed, определяя код по виду ошибки.
func (ts *TaskStore) FailTask(taskID string, err error) error {
	code := domain.ErrorKind(err)
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrProcessing) {
		code = ErrorCodeTimeout
	}
	return ts.UpdateTaskError(taskID, code, err.Error())
}

// GetTask возвращает копию задачи.
func (ts *TaskStore) GetTask(taskID string) (Task, error) {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return *task, nil
}

// CleanupExpired удаляет просроченные задачи из хранилища
func (ts *TaskStore) CleanupExpired() {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	now := time.Now()
	for taskID, task := range ts.tasks {
		if now.After(task.ExpiresAt) {
			delete(ts.tasks, taskID)
		}
	}
}

// StartCleanupTicker запускает тикер для периодической очистки просроченных задач
func (ts *TaskStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ts.CleanupExpired()
			}
		}
	}()
}
