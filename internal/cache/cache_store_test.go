package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-insights/internal/domain"
)

func TestCacheStore(t *testing.T) {
	report := &domain.Report{MessagesAnalyzed: 7}

	t.Run("Запись и чтение из кэша", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("key", report, time.Minute)

		item, found := cs.Get("key")
		require.True(t, found)
		assert.Same(t, report, item.Report)
		assert.WithinDuration(t, time.Now().Add(time.Minute), item.ExpiresAt, time.Second)
	})

	t.Run("Чтение несуществующего ключа", func(t *testing.T) {
		_, found := NewCacheStore().Get("missing")
		assert.False(t, found)
	})

	t.Run("Просроченный элемент не возвращается", func(t *testing.T) {
		cs := NewCacheStore()
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		cs.now = func() time.Time { return now }
		cs.Put("key", report, time.Minute)

		now = now.Add(2 * time.Minute)
		_, found := cs.Get("key")
		assert.False(t, found)
	})

	t.Run("Очистка просроченных ключей", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("expired", report, -time.Minute)
		cs.Put("valid", report, time.Minute)

		cs.CleanupExpired()
		assert.Equal(t, 1, cs.Len())
		_, found := cs.Get("valid")
		assert.True(t, found)
	})

	t.Run("Очистка по таймеру", func(t *testing.T) {
		cs := NewCacheStore()
		cs.Put("expired", report, -time.Minute)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cs.StartCleanupTicker(ctx, 10*time.Millisecond)

		assert.Eventually(t, func() bool { return cs.Len() == 0 }, time.Second, 10*time.Millisecond)
	})

	t.Run("Параллельный доступ", func(t *testing.T) {
		cs := NewCacheStore()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				cs.Put("k", report, time.Minute)
			}()
			go func() {
				defer wg.Done()
				cs.Get("k")
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, cs.Len())
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestHashing(t *testing.T) {
	const helloHash = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	assert.Equal(t, helloHash, HashContent([]byte("hello")))

	h, err := HashReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, helloHash, h)

	_, err = HashReader(failingReader{})
	assert.Error(t, err)

	assert.True(t, ValidHash(helloHash))
	assert.False(t, ValidHash("abc"))
	assert.False(t, ValidHash(strings.Repeat("z", 64)))
}
