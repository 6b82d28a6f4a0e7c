package services

import (
	"sync"
	"time"

	"filer-api/internal/models"
)

type cacheEntry struct {
	record  *models.ImageRecord
	expires time.Time
}

// CacheService keeps recently loaded image records for a TTL.
// Records go in and come out as clones, so callers never share one.
type CacheService struct {
	cache           map[string]*cacheEntry
	mu              sync.RWMutex
	ttl             time.Duration
	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

func NewCacheService(ttl, cleanupInterval time.Duration) *CacheService {
	cs := &CacheService{
		cache:           make(map[string]*cacheEntry),
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}

	go cs.cleanupExpired()

	return cs
}

// Retrieves a copy of the cached record, or false if missing or expired.
func (cs *CacheService) Get(id string) (*models.ImageRecord, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, ok := cs.cache[id]
	if !ok || entry.expires.Before(time.Now()) {
		return nil, false
	}

	return entry.record.Clone(), true
}

// Stores a copy of rec under its ID.
func (cs *CacheService) Set(rec *models.ImageRecord) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache[rec.ID] = &cacheEntry{
		record:  rec.Clone(),
		expires: time.Now().Add(cs.ttl),
	}
}

func (cs *CacheService) Invalidate(id string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.cache, id)
}

// Close stops the cleanup goroutine.
func (cs *CacheService) Close() {
	cs.stopOnce.Do(func() { close(cs.stop) })
}

// Periodically removes expired entries from the cache.
// This runs in a background goroutine started by NewCacheService.
func (cs *CacheService) cleanupExpired() {
	ticker := time.NewTicker(cs.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.stop:
			return
		case <-ticker.C:
			cs.removeExpired(time.Now())
		}
	}
}

func (cs *CacheService) removeExpired(now time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for k, v := range cs.cache {
		if v.expires.Before(now) {
			delete(cs.cache, k)
		}
	}
}
