package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-insights/internal/domain"
)

func TestExtractionService(t *testing.T) {
	t.Run("NewExtractionService создает корректный экземпляр", func(t *testing.T) {
		assert.NotNil(t, NewExtractionService())
	})

	t.Run("Extract собирает авторов в порядке появления", func(t *testing.T) {
		records := []domain.MessageRecord{
			sysMsg(at(2024, 3, 13, 9), "Bob created group"),
			msg(at(2024, 3, 14, 10), "Bob", "hi"),
			msg(at(2024, 3, 14, 11), "Alice", "hello"),
			media(at(2024, 3, 15, 12), "Bob", domain.MediaPhoto),
			msg(at(2024, 3, 16, 8), "Carol", "hey"),
			media(at(2024, 3, 16, 9), "Alice", domain.MediaUnknown),
		}

		meta, err := NewExtractionService().Extract(records)
		require.NoError(t, err)

		assert.Equal(t, 6, meta.TotalMessages)
		assert.Equal(t, []string{"Bob", "Alice", "Carol"}, meta.Users)
		assert.Equal(t, map[string]string{"Bob": "user_1", "Alice": "user_2", "Carol": "user_3"}, meta.UserMapping)
		assert.Equal(t, at(2024, 3, 14, 10), meta.StartDate, "системное сообщение не сдвигает начало периода")
		assert.Equal(t, at(2024, 3, 16, 9), meta.EndDate)
		assert.Equal(t, 2, meta.MediaCount)
		assert.Equal(t, map[domain.MediaType]int{domain.MediaPhoto: 1, domain.MediaUnknown: 1}, meta.MediaByType)
		assert.Equal(t, map[string]int{"Bob": 1, "Alice": 1}, meta.MediaByUser)
	})

	t.Run("Один участник — ValidationError", func(t *testing.T) {
		records := []domain.MessageRecord{
			msg(at(2024, 3, 14, 10), "Alice", "hi"),
			msg(at(2024, 3, 14, 11), "Alice", "anyone?"),
		}
		_, err := NewExtractionService().Extract(records)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("Пустой ввод — ValidationError", func(t *testing.T) {
		meta, err := NewExtractionService().Extract(nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		assert.True(t, meta.StartDate.IsZero())
		assert.True(t, meta.EndDate.IsZero())
	})
}

// --- Вспомогательные конструкторы записей для тестов пакета ---

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func msg(ts time.Time, user, text string) domain.MessageRecord {
	return domain.MessageRecord{
		Timestamp:    ts,
		Weekday:      ts.Weekday(),
		HourCategory: domain.HourCategoryOf(ts),
		User:         user,
		Text:         text,
		Length:       len([]rune(text)),
	}
}

func media(ts time.Time, user string, kind domain.MediaType) domain.MessageRecord {
	r := msg(ts, user, "<Media omitted>")
	r.IsMedia = true
	r.MediaType = kind
	return r
}

func sysMsg(ts time.Time, text string) domain.MessageRecord {
	r := msg(ts, "", text)
	r.IsSystem = true
	return r
}
