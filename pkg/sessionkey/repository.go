// Package sessionkey stores the per-login session keys produced by the
// handshake. Keys live for a fixed TTL and there is at most one per user:
// saving a new key replaces the previous one.
package sessionkey

import (
	"context"
	"errors"
	"slices"
	"time"
)

// DefaultTTL is how long a session key stays valid after login
const DefaultTTL = 7200 * time.Second

// ErrNotFound is returned when a user has no live session key
var ErrNotFound = errors.New("session key not found")

// SessionKey is the key agreed during one login
type SessionKey struct {
	SessionKey []byte    `json:"-"`
	UserID     int64     `json:"userId"`
	DeviceID   int64     `json:"deviceId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (k SessionKey) clone() SessionKey {
	k.SessionKey = slices.Clone(k.SessionKey)
	return k
}

// Repository persists session keys keyed by user id
type Repository interface {
	// Save stores the key for key.UserID, replacing any previous key
	Save(ctx context.Context, key SessionKey, ttl time.Duration) error
	// FindByUserID returns ErrNotFound when no unexpired key exists
	FindByUserID(ctx context.Context, userID int64) (SessionKey, error)
	// Delete removes the user's key; deleting a missing key is not an error
	Delete(ctx context.Context, userID int64) error
}

// ActiveSessionQuery reports session liveness from a Repository
type ActiveSessionQuery struct {
	repo Repository
}

// NewActiveSessionQuery creates an ActiveSessionQuery
func NewActiveSessionQuery(repo Repository) *ActiveSessionQuery {
	return &ActiveSessionQuery{repo: repo}
}

// HasActiveSession reports whether the user holds an unexpired session key
func (q *ActiveSessionQuery) HasActiveSession(ctx context.Context, userID int64) (bool, error) {
	_, err := q.repo.FindByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
