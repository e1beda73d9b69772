package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// PostgresRefreshTokenStore persists refresh tokens to PostgreSQL.
type PostgresRefreshTokenStore struct {
	pool db.Pool
}

// NewPostgresRefreshTokenStore constructs a refresh token store backed by PostgreSQL.
func NewPostgresRefreshTokenStore(pool db.Pool) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{pool: pool}
}

// Save inserts a new refresh token.
func (s *PostgresRefreshTokenStore) Save(ctx context.Context, token models.RefreshToken) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO refresh_tokens (user_id, token, expires_at, created_at, is_revoked)
        VALUES ($1, $2, $3, $4, $5)
    `, token.UserID, token.Token, token.ExpiresAt.UTC(), token.CreatedAt.UTC(), token.IsRevoked)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// Consume revokes a usable token in a single statement, so concurrent callers
// presenting the same token cannot both succeed.
func (s *PostgresRefreshTokenStore) Consume(ctx context.Context, token string, now time.Time) (models.RefreshToken, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE refresh_tokens
        SET is_revoked = TRUE
        WHERE token = $1 AND NOT is_revoked AND expires_at > $2
        RETURNING id, user_id, token, expires_at, created_at, is_revoked
    `, token, now.UTC())

	var stored models.RefreshToken
	if err := row.Scan(&stored.ID, &stored.UserID, &stored.Token, &stored.ExpiresAt, &stored.CreatedAt, &stored.IsRevoked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, auth.ErrTokenNotFound
		}
		return models.RefreshToken{}, fmt.Errorf("consume refresh token: %w", err)
	}

	stored.ExpiresAt = stored.ExpiresAt.UTC()
	stored.CreatedAt = stored.CreatedAt.UTC()
	return stored, nil
}

// RevokeOwned revokes a usable token only when it belongs to userID.
func (s *PostgresRefreshTokenStore) RevokeOwned(ctx context.Context, userID, token string, now time.Time) error {
	if !validUUID(userID) {
		return auth.ErrTokenNotFound
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE refresh_tokens
        SET is_revoked = TRUE
        WHERE token = $1 AND user_id = $2 AND NOT is_revoked AND expires_at > $3
    `, token, userID, now.UTC())
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrTokenNotFound
	}

	return nil
}

// RevokeAllForUser revokes every outstanding token of the user.
func (s *PostgresRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	if !validUUID(userID) {
		return 0, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE refresh_tokens
        SET is_revoked = TRUE
        WHERE user_id = $1 AND NOT is_revoked
    `, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteExpired removes tokens that expired before now, revoked or not.
func (s *PostgresRefreshTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM refresh_tokens
        WHERE expires_at < $1
    `, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	return tag.RowsAffected(), nil
}

var _ auth.RefreshTokenStore = (*PostgresRefreshTokenStore)(nil)
