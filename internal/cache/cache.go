// Package cache provides the derived-value cache for aggregated months.
// Staleness is handled by explicit invalidation from every write path, not
// by guessing inside the UI layer; TTL is only a backstop.
package cache

import "time"

// Cache is a generic cache keyed by string.
type Cache[T any] interface {
	// Get retrieves a value from the cache.
	Get(key string) (T, bool)

	// Set stores a value in the cache.
	Set(key string, data T)

	// Delete removes a key from the cache.
	Delete(key string)

	// Purge removes every entry.
	Purge()

	// Size returns the current number of items in the cache.
	Size() int
}

// Cleaner is implemented by caches that support expiry cleanup.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic cleanup over registered caches.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewManager creates a new cache manager.
func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup.
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, cache := range m.caches {
				cache.CleanExpired()
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
