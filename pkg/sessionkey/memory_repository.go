package sessionkey

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	key       SessionKey
	expiresAt time.Time
}

// MemoryRepository keeps session keys in process memory. Expired entries are
// dropped when they are read.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[int64]memoryEntry
	now     func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[int64]memoryEntry),
		now:     time.Now,
	}
}

func (r *MemoryRepository) Save(ctx context.Context, key SessionKey, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key.UserID] = memoryEntry{key: key.clone(), expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *MemoryRepository) FindByUserID(ctx context.Context, userID int64) (SessionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok {
		return SessionKey{}, ErrNotFound
	}
	if !r.now().Before(entry.expiresAt) {
		delete(r.entries, userID)
		return SessionKey{}, ErrNotFound
	}
	return entry.key.clone(), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
	return nil
}
