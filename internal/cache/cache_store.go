// Package cache хранит готовые отчеты по хешу содержимого экспорта,
// чтобы повторная загрузка того же файла не запускала анализ заново.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"chat-insights/internal/domain"
)

// CacheItem — кэшированный отчет.
type CacheItem struct {
	Report    *domain.Report
	ExpiresAt time.Time
}

// CacheStore управляет хранением и извлечением кэшированных отчетов.
type CacheStore struct {
	cache map[string]*CacheItem
	mutex sync.RWMutex
	now   func() time.Time
}

// NewCacheStore создает новый экземпляр CacheStore.
func NewCacheStore() *CacheStore {
	return &CacheStore{
		cache: make(map[string]*CacheItem),
		now:   time.Now,
	}
}

// Get возвращает отчет по хешу, если срок его хранения не истек.
func (cs *CacheStore) Get(key string) (*CacheItem, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[key]
	if !exists || cs.now().After(item.ExpiresAt) {
		return nil, false
	}
	return item, true
}

// Put сохраняет отчет на время ttl.
func (cs *CacheStore) Put(key string, report *domain.Report, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache[key] = &CacheItem{
		Report:    report,
		ExpiresAt: cs.now().Add(ttl),
	}
}

// Len возвращает число элементов, включая просроченные, но еще не удаленные.
func (cs *CacheStore) Len() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return len(cs.cache)
}

// CleanupExpired удаляет просроченные элементы.
func (cs *CacheStore) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := cs.now()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			delete(cs.cache, key)
		}
	}
}

// StartCleanupTicker периодически очищает кэш до отмены ctx.
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

// HashContent возвращает SHA-256 содержимого в шестнадцатеричном виде.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader вычисляет SHA-256 потока.
func HashReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("не удалось прочитать данные: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ValidHash сообщает, похожа ли строка на SHA-256 в шестнадцатеричном виде.
func ValidHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
