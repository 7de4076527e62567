package restriction

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tendant/attendance-gate/pkg/access"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// EnsureSchema creates the restriction table if it does not exist
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply restriction schema: %w", err)
	}
	return nil
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db DBTX
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL restriction store
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Block restricts the user, replacing any previous restriction
func (s *PostgresStore) Block(ctx context.Context, userID int64, reason string, until *time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_restrictions (user_id, reason, blocked_until, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET reason = EXCLUDED.reason, blocked_until = EXCLUDED.blocked_until, created_at = EXCLUDED.created_at`,
		userID, reason, until)
	if err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}
	return nil
}

// Unblock lifts the user's restriction
func (s *PostgresStore) Unblock(ctx context.Context, userID int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM user_restrictions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to unblock user: %w", err)
	}
	return nil
}

// IsBlocked reports the user's current restriction
func (s *PostgresStore) IsBlocked(ctx context.Context, userID int64) (access.Restriction, error) {
	var reason string
	err := s.db.QueryRow(ctx, `
		SELECT reason FROM user_restrictions
		WHERE user_id = $1 AND (blocked_until IS NULL OR blocked_until > NOW())`, userID).Scan(&reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return access.Restriction{}, nil
	}
	if err != nil {
		return access.Restriction{}, fmt.Errorf("failed to check restriction: %w", err)
	}
	return access.Restriction{Blocked: true, Reason: reason}, nil
}
