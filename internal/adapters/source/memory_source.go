package source

import (
	"fmt"

	"chat-insights/internal/ports"
)

// MemorySource отдает экспорт, уже загруженный в память
// (например, полученный через HTTP или от бота).
type MemorySource struct {
	data []byte
}

// NewMemorySource создает новый экземпляр MemorySource.
func NewMemorySource(data []byte) ports.DataSource {
	return &MemorySource{data: data}
}

// Fetch возвращает копию данных.
func (s *MemorySource) Fetch() ([]byte, error) {
	if s.data == nil {
		return nil, fmt.Errorf("данные не установлены")
	}
	return append([]byte(nil), s.data...), nil
}
