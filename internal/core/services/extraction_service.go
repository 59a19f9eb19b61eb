package services

import (
	"fmt"

	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

// MinParticipants — минимальное число различных авторов, при котором чат анализируется.
const MinParticipants = 2

// ExtractionServiceImpl реализует интерфейс MetadataExtractor.
type ExtractionServiceImpl struct{}

// NewExtractionService создает новый экземпляр ExtractionServiceImpl.
func NewExtractionService() ports.MetadataExtractor {
	return &ExtractionServiceImpl{}
}

// Extract вычисляет метаданные чата. Системные сообщения не учитываются
// ни в списке авторов, ни в границах периода.
func (s *ExtractionServiceImpl) Extract(records []domain.MessageRecord) (domain.ChatMetadata, error) {
	meta := domain.ChatMetadata{
		TotalMessages: len(records),
		UserMapping:   make(map[string]string),
		MediaByType:   make(map[domain.MediaType]int),
		MediaByUser:   make(map[string]int),
	}

	for _, rec := range records {
		if kind, ok := rec.Media(); ok {
			meta.MediaCount++
			meta.MediaByType[kind]++
			if rec.User != "" {
				meta.MediaByUser[rec.User]++
			}
		}
		if rec.IsSystem {
			continue
		}

		if _, seen := meta.UserMapping[rec.User]; !seen {
			meta.Users = append(meta.Users, rec.User)
			meta.UserMapping[rec.User] = fmt.Sprintf("user_%d", len(meta.Users))
		}

		if meta.StartDate.IsZero() || rec.Timestamp.Before(meta.StartDate) {
			meta.StartDate = rec.Timestamp
		}
		if rec.Timestamp.After(meta.EndDate) {
			meta.EndDate = rec.Timestamp
		}
	}

	if len(meta.Users) == 0 {
		return meta, &domain.ValidationError{Field: "users", Reason: "chat has no non-system messages"}
	}
	if len(meta.Users) < MinParticipants {
		return meta, &domain.ValidationError{
			Field:  "users",
			Reason: fmt.Sprintf("need at least %d distinct participants, got %d", MinParticipants, len(meta.Users)),
		}
	}
	return meta, nil
}
