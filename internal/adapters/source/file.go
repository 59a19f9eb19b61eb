package source

import (
	"errors"
	"fmt"
	"os"

	"chat-insights/internal/ports"
)

// errNoPath возвращается, когда путь к файлу не задан.
var errNoPath = errors.New("не указан путь к файлу")

// FileSource читает экспорт чата из файла.
type FileSource struct {
	filePath string
	maxBytes int64
}

// NewFileSource создает источник для файла. Если maxBytes > 0,
// файлы большего размера отклоняются.
func NewFileSource(filePath string, maxBytes int64) ports.DataSource {
	return &FileSource{filePath: filePath, maxBytes: maxBytes}
}

// Fetch читает файл по указанному пути и возвращает его содержимое.
func (s *FileSource) Fetch() ([]byte, error) {
	if s.filePath == "" {
		return nil, errNoPath
	}

	if s.maxBytes > 0 {
		info, err := os.Stat(s.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat file %s: %w", s.filePath, err)
		}
		if info.Size() > s.maxBytes {
			return nil, fmt.Errorf("file %s is larger than %d bytes", s.filePath, s.maxBytes)
		}
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", s.filePath, err)
	}
	return data, nil
}
