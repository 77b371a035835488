// Package storage is the persistence collaborator: a narrow key/value
// surface the engine never touches directly. Collections are stored as
// JSON blobs under well-known keys; the SQLite store is the real backend,
// the memory store serves tests and backup-import staging.
package storage

import (
	"context"
	"sync"
)

// Storage keys. Each key holds one JSON-encoded collection.
const (
	KeySchemaVersion = "schemaVersion"
	KeyBanks         = "banks"
	KeyAccounts      = "accounts"
	KeyIncome        = "transactions:income"
	KeyExpenses      = "transactions:expense"
	KeySavings       = "transactions:savings"
	KeyBuckets       = "buckets"
	KeyMonthSettings = "monthSettings"
	KeyAdjustments   = "manualAdjustments"
	KeyOverrides     = "remainingCashOverrides"
	KeyRemaining     = "remainingCash"
	KeyRecurring     = "recurringTemplates"
	KeyEMIs          = "emis"
	KeyBackups       = "backupHistory"

	// KeyLegacyTransactions is the pre-v3 single transaction blob, only
	// ever read by the schema migrator.
	KeyLegacyTransactions = "transactions"
)

// KV is the raw get/set surface. SetMany must be atomic: either every entry
// is written or none, which is what the balance reconciler and replace-mode
// backup import rely on.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// MemoryStore is an in-memory KV used by tests and as the staging area for
// backup imports.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	return nil
}

func (s *MemoryStore) SetMany(_ context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range entries {
		stored := make([]byte, len(value))
		copy(stored, value)
		s.data[key] = stored
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys, nil
}
