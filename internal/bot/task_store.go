package bot

import "sync"

// pendingUpload занимает чат, пока файл скачивается и отправляется на бэкенд.
const pendingUpload = ""

// TaskStore — это потокобезопасное in-memory хранилище для сопоставления
// идентификатора чата Telegram с идентификатором задачи на бэкенд-сервере.
// В каждом чате может быть не больше одной активной задачи.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[int64]string // map[chatID]taskID
}

// NewTaskStore создает новый экземпляр TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[int64]string),
	}
}

// Reserve занимает чат до появления идентификатора задачи.
// Возвращает false, если в чате уже есть активная задача.
func (s *TaskStore) Reserve(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.tasks[chatID]; busy {
		return false
	}
	s.tasks[chatID] = pendingUpload
	return true
}

// Set сохраняет сопоставление chatID и taskID.
func (s *TaskStore) Set(chatID int64, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[chatID] = taskID
}

// Get извлекает taskID для указанного chatID. Для занятого, но еще не
// отправленного чата возвращает пустую строку и true.
func (s *TaskStore) Get(chatID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	taskID, ok := s.tasks[chatID]
	return taskID, ok
}

// Delete освобождает чат.
func (s *TaskStore) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, chatID)
}

// Len возвращает число занятых чатов.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
