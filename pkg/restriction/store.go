package restriction

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/attendance-gate/pkg/access"
)

// Block is one stored restriction
type Block struct {
	UserID    int64      `json:"userId"`
	Reason    string     `json:"reason"`
	Until     *time.Time `json:"until,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (b Block) activeAt(now time.Time) bool {
	return b.Until == nil || now.Before(*b.Until)
}

// Store manages restrictions and answers IsBlocked
type Store interface {
	access.RestrictionQuery
	Block(ctx context.Context, userID int64, reason string, until *time.Time) error
	Unblock(ctx context.Context, userID int64) error
}

// MemoryStore keeps restrictions in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	blocks map[int64]Block
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks: make(map[int64]Block),
		now:    time.Now,
	}
}

// Block restricts the user, replacing any previous restriction
func (s *MemoryStore) Block(ctx context.Context, userID int64, reason string, until *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[userID] = Block{UserID: userID, Reason: reason, Until: until, CreatedAt: s.now()}
	return nil
}

// Unblock lifts the user's restriction
func (s *MemoryStore) Unblock(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, userID)
	return nil
}

// IsBlocked reports the user's current restriction
func (s *MemoryStore) IsBlocked(ctx context.Context, userID int64) (access.Restriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[userID]
	if !ok || !b.activeAt(s.now()) {
		return access.Restriction{}, nil
	}
	return access.Restriction{Blocked: true, Reason: b.Reason}, nil
}
