package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medora/medora/internal/platform/db"
)

// PGRevocationStore persists revocations in the revoked_tokens table so that
// every server instance sees them.
type PGRevocationStore struct {
	pool *pgxpool.Pool
}

func NewPGRevocationStore(pool *pgxpool.Pool) *PGRevocationStore {
	return &PGRevocationStore{pool: pool}
}

func (s *PGRevocationStore) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	q := db.Conn(ctx, s.pool)
	if _, err := q.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < NOW()`); err != nil {
		return fmt.Errorf("prune revoked tokens: %w", err)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO revoked_tokens (jti, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING`,
		jti, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *PGRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := db.Conn(ctx, s.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}
