package kv

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// item represents a stored value with expiration
type item struct {
	data       []byte
	expiration int64
}

// expired checks if the item has expired
func (it item) expired() bool {
	if it.expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > it.expiration
}

// MemoryStore is a thread-safe in-memory Store with expiration. It is used
// in tests and single-instance deployments; production uses RedisStore.
type MemoryStore struct {
	items           map[string]item
	mu              sync.RWMutex
	cleanupInterval time.Duration
	stop            chan struct{}
}

// NewMemoryStore creates a new in-memory store. If cleanupInterval > 0 a
// background goroutine purges expired items on that period.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		items:           make(map[string]item),
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go s.startCleanupTimer()
	}

	return s
}

// Get decodes the value stored under key into dest
func (s *MemoryStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	it, found := s.items[key]
	s.mu.RUnlock()

	if !found || it.expired() {
		return false, nil
	}

	if err := json.Unmarshal(it.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key with the given ttl
func (s *MemoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = item{data: data, expiration: exp}
	return nil
}

// Delete removes key from the store
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Keys returns every live key with the given prefix
func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k, it := range s.items {
		if strings.HasPrefix(k, prefix) && !it.expired() {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close stops the cleanup goroutine
func (s *MemoryStore) Close() error {
	close(s.stop)
	return nil
}

// startCleanupTimer starts the cleanup ticker
func (s *MemoryStore) startCleanupTimer() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-s.stop:
			return
		}
	}
}

// deleteExpired deletes all expired items from the store
func (s *MemoryStore) deleteExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixNano()
	for k, it := range s.items {
		if it.expiration > 0 && now > it.expiration {
			delete(s.items, k)
		}
	}
}
