package store

import (
	"context"
	"sync"

	"github.com/scrublog-systems/scrublog/internal/models"
)

type entryKey struct {
	tenantID string
	logID    string
}

// MemoryStore is an in-memory Store for tests and local development.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey]models.ProcessedLogEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[entryKey]models.ProcessedLogEntry),
	}
}

// Put upserts the entry under its composite key.
func (s *MemoryStore) Put(ctx context.Context, entry *models.ProcessedLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey{tenantID: entry.TenantID, logID: entry.LogID}] = *entry
	return nil
}

// Get fetches one entry by its composite key.
func (s *MemoryStore) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[entryKey{tenantID: tenantID, logID: logID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Len reports the number of stored entries across all tenants.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}
