package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// HashtagRepository exposes read access to hashtag usage.
type HashtagRepository interface {
	Trending(ctx context.Context, since time.Time, limit int) ([]models.Hashtag, error)
	Search(ctx context.Context, term string, limit int) ([]models.Hashtag, error)
}

// PostgresHashtagRepository reads hashtag usage from PostgreSQL. Tags are written by
// PostgresVideoRepository alongside the videos that carry them.
type PostgresHashtagRepository struct {
	pool db.Pool
}

// NewPostgresHashtagRepository constructs a hashtag repository backed by PostgreSQL.
func NewPostgresHashtagRepository(pool db.Pool) *PostgresHashtagRepository {
	return &PostgresHashtagRepository{pool: pool}
}

// Trending returns tags used since the given instant, most used first.
func (r *PostgresHashtagRepository) Trending(ctx context.Context, since time.Time, limit int) ([]models.Hashtag, error) {
	return r.list(ctx, "trending hashtags", `
        SELECT name, usage_count, created_at, last_used_at
        FROM hashtags
        WHERE last_used_at >= $1 AND usage_count > 0
        ORDER BY usage_count DESC, last_used_at DESC, name
        LIMIT $2
    `, since.UTC(), limit)
}

// Search returns tags whose name contains term, most used first.
func (r *PostgresHashtagRepository) Search(ctx context.Context, term string, limit int) ([]models.Hashtag, error) {
	return r.list(ctx, "search hashtags", `
        SELECT name, usage_count, created_at, last_used_at
        FROM hashtags
        WHERE name LIKE $1 AND usage_count > 0
        ORDER BY usage_count DESC, name
        LIMIT $2
    `, containsPattern(term), limit)
}

func (r *PostgresHashtagRepository) list(ctx context.Context, op, sql string, args ...any) ([]models.Hashtag, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Hashtag, error) {
		var tag models.Hashtag
		err := row.Scan(&tag.Name, &tag.UsageCount, &tag.CreatedAt, &tag.LastUsedAt)
		tag.CreatedAt = tag.CreatedAt.UTC()
		tag.LastUsedAt = tag.LastUsedAt.UTC()
		return tag, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", op, err)
	}

	return tags, nil
}

var _ HashtagRepository = (*PostgresHashtagRepository)(nil)
