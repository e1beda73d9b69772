package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, email, username, first_name, bio, password_hash, is_active, created_at, updated_at`

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Email, user.Username, user.FirstName, user.Bio, user.Password, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return mapWriteError("insert user", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID fetches a user by id. Malformed ids are reported as ErrNotFound.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	if !validUUID(id) {
		return models.User{}, ErrNotFound
	}
	return r.findOne(ctx, "id", id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE `+column+` = $1
    `, value)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// Update persists the mutable fields of an existing user.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	if !validUUID(user.ID) {
		return ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2,
            username = $3,
            first_name = $4,
            bio = $5,
            password_hash = $6,
            updated_at = $7
        WHERE id = $1
    `, user.ID, user.Email, user.Username, user.FirstName, user.Bio, user.Password, user.UpdatedAt.UTC())
	if err != nil {
		return mapWriteError("update user", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Search lists active users whose username or first name contains term, ordered by
// username.
func (r *PostgresUserRepository) Search(ctx context.Context, term string, limit, offset int) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE is_active AND (username ILIKE $1 OR first_name ILIKE $1)
        ORDER BY username
        LIMIT $2 OFFSET $3
    `, containsPattern(term), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect users: %w", err)
	}

	return users, nil
}

// Stats aggregates the user's follow counts and the engagement of their eligible videos.
func (r *PostgresUserRepository) Stats(ctx context.Context, id string) (models.UserStats, error) {
	if !validUUID(id) {
		return models.UserStats{}, ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var stats models.UserStats
	err = conn.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM follows WHERE following_id = $1),
            (SELECT COUNT(*) FROM follows WHERE follower_id = $1),
            COUNT(*),
            COALESCE(SUM(views_count), 0),
            COALESCE(SUM(likes_count), 0)
        FROM videos
        WHERE user_id = $1 AND is_public AND status = $2 AND deleted_at IS NULL
    `, id, string(models.VideoStatusReady)).Scan(
		&stats.FollowersCount, &stats.FollowingCount, &stats.VideosCount, &stats.TotalViews, &stats.TotalLikes)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("select user stats: %w", err)
	}

	return stats, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.FirstName, &user.Bio, &user.Password, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// PostgresFollowRepository provides PostgreSQL-backed persistence for the follow graph.
type PostgresFollowRepository struct {
	pool db.Pool
}

// NewPostgresFollowRepository constructs a follow repository backed by PostgreSQL.
func NewPostgresFollowRepository(pool db.Pool) *PostgresFollowRepository {
	return &PostgresFollowRepository{pool: pool}
}

// Follow records that followerID follows followingID.
func (r *PostgresFollowRepository) Follow(ctx context.Context, followerID, followingID string, now time.Time) error {
	if followerID == followingID {
		return ErrSelfFollow
	}
	if !validUUID(followingID) {
		return ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO follows (follower_id, following_id, created_at)
        VALUES ($1, $2, $3)
    `, followerID, followingID, now.UTC())
	if err != nil {
		return mapWriteError("insert follow", err)
	}

	return nil
}

// Unfollow removes the edge. It returns ErrNotFound when the edge does not exist.
func (r *PostgresFollowRepository) Unfollow(ctx context.Context, followerID, followingID string) error {
	if !validUUID(followingID) {
		return ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM follows
        WHERE follower_id = $1 AND following_id = $2
    `, followerID, followingID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// FollowingIDs returns up to limit creators followed by userID, most recent first.
func (r *PostgresFollowRepository) FollowingIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT following_id
        FROM follows
        WHERE follower_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query following: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan following: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate following: %w", err)
	}

	return ids, nil
}

// Followers lists active users following userID, most recent first.
func (r *PostgresFollowRepository) Followers(ctx context.Context, userID string, limit, offset int) ([]models.Connection, error) {
	return r.connections(ctx, "follower_id", "following_id", userID, limit, offset)
}

// Following lists active users followed by userID, most recent first.
func (r *PostgresFollowRepository) Following(ctx context.Context, userID string, limit, offset int) ([]models.Connection, error) {
	return r.connections(ctx, "following_id", "follower_id", userID, limit, offset)
}

// connections joins the other end of userID's edges; show names the column holding the
// listed users and match the column holding userID.
func (r *PostgresFollowRepository) connections(ctx context.Context, show, match, userID string, limit, offset int) ([]models.Connection, error) {
	if !validUUID(userID) {
		return nil, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT u.id, u.username, u.first_name, f.created_at
        FROM follows f
        JOIN users u ON u.id = f.`+show+`
        WHERE f.`+match+` = $1 AND u.is_active
        ORDER BY f.created_at DESC, u.id
        LIMIT $2 OFFSET $3
    `, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", show, err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Connection, error) {
		var c models.Connection
		err := row.Scan(&c.ID, &c.Username, &c.FirstName, &c.FollowedAt)
		c.FollowedAt = c.FollowedAt.UTC()
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", show, err)
	}

	return list, nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "23503":
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ FollowRepository = (*PostgresFollowRepository)(nil)
