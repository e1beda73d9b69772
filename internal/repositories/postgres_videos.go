package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/feed"
	"github.com/clipstream/backend/internal/models"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `id, user_id, title, description, status, is_public, views_count, likes_count, asset_url, asset_size, created_at, deleted_at,
        ARRAY(
            SELECT h.name
            FROM video_hashtags vh
            JOIN hashtags h ON h.id = vh.hashtag_id
            WHERE vh.video_id = videos.id
            ORDER BY h.name
        ) AS hashtags`

// Create stores a new video with its hashtags and returns its database-assigned id.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	status := video.Status
	if status == "" {
		status = models.VideoStatusUploading
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin video transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
        INSERT INTO videos (user_id, title, description, status, is_public, asset_url, asset_size, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, video.UserID, video.Title, video.Description, string(status), video.IsPublic, video.AssetURL, video.AssetSize, video.CreatedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, mapWriteError("insert video", err)
	}

	if err := attachHashtags(ctx, tx, id, video.Hashtags, video.CreatedAt); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit video: %w", err)
	}

	return id, nil
}

// Update rewrites the title, description, visibility and hashtags of the owner's
// video. It returns ErrNotFound when the video is missing, deleted or owned by
// someone else.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video, now time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin video update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        UPDATE videos
        SET title = $3,
            description = $4,
            is_public = $5
        WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
    `, video.ID, video.UserID, video.Title, video.Description, video.IsPublic)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
        UPDATE hashtags
        SET usage_count = GREATEST(usage_count - 1, 0)
        WHERE id IN (SELECT hashtag_id FROM video_hashtags WHERE video_id = $1)
    `, video.ID); err != nil {
		return fmt.Errorf("release video hashtags: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM video_hashtags WHERE video_id = $1`, video.ID); err != nil {
		return fmt.Errorf("detach video hashtags: %w", err)
	}
	if err := attachHashtags(ctx, tx, video.ID, video.Hashtags, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit video update: %w", err)
	}

	return nil
}

// attachHashtags links the video to each tag, creating tags on first use and bumping
// their usage otherwise.
func attachHashtags(ctx context.Context, tx pgx.Tx, videoID int64, tags []string, now time.Time) error {
	for _, name := range tags {
		var hashtagID int64
		err := tx.QueryRow(ctx, `
            INSERT INTO hashtags (name, usage_count, created_at, last_used_at)
            VALUES ($1, 1, $2, $2)
            ON CONFLICT (name) DO UPDATE
            SET usage_count = hashtags.usage_count + 1,
                last_used_at = EXCLUDED.last_used_at
            RETURNING id
        `, name, now.UTC()).Scan(&hashtagID)
		if err != nil {
			return fmt.Errorf("upsert hashtag %q: %w", name, err)
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO video_hashtags (video_id, hashtag_id)
            VALUES ($1, $2)
            ON CONFLICT DO NOTHING
        `, videoID, hashtagID); err != nil {
			return fmt.Errorf("attach hashtag %q: %w", name, err)
		}
	}
	return nil
}

// FindByID loads a video that has not been deleted.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id int64) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE id = $1 AND deleted_at IS NULL
    `, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// ListEligible returns one page of eligible videos ordered by the query's ranking.
func (r *PostgresVideoRepository) ListEligible(ctx context.Context, q feed.Query) ([]models.Video, error) {
	sql, args, err := buildEligibleQuery(q)
	if err != nil {
		return nil, err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s feed: %w", q.Ranking, err)
	}
	defer rows.Close()

	videos := make([]models.Video, 0, q.Limit)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s feed: %w", q.Ranking, err)
	}

	return videos, nil
}

// IncrementViews adds one view to an eligible video.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id int64) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET views_count = views_count + 1
        WHERE id = $1 AND is_public AND status = $2 AND deleted_at IS NULL
    `, id, string(models.VideoStatusReady))
	if err != nil {
		return fmt.Errorf("increment video views: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Like records a like and bumps the counter in one transaction. It returns ErrConflict
// when the user already likes the video.
func (r *PostgresVideoRepository) Like(ctx context.Context, userID string, videoID int64, now time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin like transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        UPDATE videos
        SET likes_count = likes_count + 1
        WHERE id = $1 AND deleted_at IS NULL
    `, videoID)
	if err != nil {
		return fmt.Errorf("increment video likes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO likes (user_id, video_id, created_at)
        VALUES ($1, $2, $3)
    `, userID, videoID, now.UTC()); err != nil {
		return mapWriteError("insert like", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit like: %w", err)
	}

	return nil
}

// Unlike removes a like and decrements the counter, never below zero. It returns
// ErrNotFound when the user does not like the video.
func (r *PostgresVideoRepository) Unlike(ctx context.Context, userID string, videoID int64) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unlike transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        DELETE FROM likes
        WHERE user_id = $1 AND video_id = $2
    `, userID, videoID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
        UPDATE videos
        SET likes_count = GREATEST(likes_count - 1, 0)
        WHERE id = $1
    `, videoID); err != nil {
		return fmt.Errorf("decrement video likes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit unlike: %w", err)
	}

	return nil
}

// SoftDelete marks the owner's video as deleted, hiding it from every feed.
func (r *PostgresVideoRepository) SoftDelete(ctx context.Context, id int64, ownerID string, now time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET deleted_at = $3
        WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
    `, id, ownerID, now.UTC())
	if err != nil {
		return fmt.Errorf("soft delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkProcessing records that the upload has been picked up by a worker.
func (r *PostgresVideoRepository) MarkProcessing(ctx context.Context, id int64) error {
	return r.updateStatus(ctx, id, models.VideoStatusProcessing, "", 0)
}

// MarkReady records the stored asset and makes the video eligible if it is public.
func (r *PostgresVideoRepository) MarkReady(ctx context.Context, id int64, location string, size int64) error {
	return r.updateStatus(ctx, id, models.VideoStatusReady, location, size)
}

// MarkFailed records a failed upload.
func (r *PostgresVideoRepository) MarkFailed(ctx context.Context, id int64) error {
	return r.updateStatus(ctx, id, models.VideoStatusFailed, "", 0)
}

func (r *PostgresVideoRepository) updateStatus(ctx context.Context, id int64, status models.VideoStatus, location string, size int64) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET status = $2,
            asset_url = $3,
            asset_size = $4
        WHERE id = $1
    `, id, string(status), location, size)
	if err != nil {
		return fmt.Errorf("update video status %s: %w", status, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// buildEligibleQuery renders the keyset query for one feed page. Every ranking is
// descending, so a row-value "less than" against the cursor key selects the next page.
func buildEligibleQuery(q feed.Query) (string, []any, error) {
	if !q.Ranking.Valid() {
		return "", nil, fmt.Errorf("unknown ranking %q", q.Ranking)
	}

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds := []string{
		"is_public",
		"status = " + arg(string(models.VideoStatusReady)),
		"deleted_at IS NULL",
	}

	if q.AuthorIDs != nil {
		conds = append(conds, "user_id = ANY("+arg(authorUUIDs(q.AuthorIDs))+"::uuid[])")
	}
	if !q.Since.IsZero() {
		conds = append(conds, "created_at >= "+arg(q.Since.UTC()))
	}
	if q.Search != "" {
		pattern := arg(containsPattern(q.Search))
		conds = append(conds, "(title ILIKE "+pattern+" OR description ILIKE "+pattern+")")
	}
	if q.Hashtag != "" {
		conds = append(conds, `EXISTS (
            SELECT 1
            FROM video_hashtags vh
            JOIN hashtags h ON h.id = vh.hashtag_id
            WHERE vh.video_id = videos.id AND h.name = `+arg(q.Hashtag)+`
          )`)
	}

	views, likes := q.Ranking.Weights()
	score := fmt.Sprintf("(views_count * %d + likes_count * %d)", views, likes)

	var keyColumns []string
	switch q.Ranking {
	case feed.RankVertical:
		keyColumns = []string{score, "id"}
	case feed.RankTrending:
		keyColumns = []string{score, "created_at", "id"}
	default:
		keyColumns = []string{"created_at", "id"}
	}

	if q.After != nil {
		var bounds []string
		switch q.Ranking {
		case feed.RankVertical:
			bounds = []string{arg(int64(q.After.Score)), arg(q.After.ID)}
		case feed.RankTrending:
			bounds = []string{arg(int64(q.After.Score)), arg(q.After.CreatedAt.UTC()), arg(q.After.ID)}
		default:
			bounds = []string{arg(q.After.CreatedAt.UTC()), arg(q.After.ID)}
		}
		conds = append(conds, "("+strings.Join(keyColumns, ", ")+") < ("+strings.Join(bounds, ", ")+")")
	}

	order := make([]string, len(keyColumns))
	for i, column := range keyColumns {
		order[i] = column + " DESC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = feed.DefaultLimit
	}

	sql := `SELECT ` + videoColumns + `
        FROM videos
        WHERE ` + strings.Join(conds, "\n          AND ") + `
        ORDER BY ` + strings.Join(order, ", ") + `
        LIMIT ` + arg(limit)

	return sql, args, nil
}

// authorUUIDs converts author ids for an ANY($n::uuid[]) filter. Malformed ids cannot
// match any row and are skipped.
func authorUUIDs(ids []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term anywhere, with LIKE
// metacharacters in term taken literally.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var (
		video     models.Video
		status    string
		deletedAt *time.Time
	)
	if err := row.Scan(&video.ID, &video.UserID, &video.Title, &video.Description, &status, &video.IsPublic,
		&video.ViewsCount, &video.LikesCount, &video.AssetURL, &video.AssetSize, &video.CreatedAt, &deletedAt, &video.Hashtags); err != nil {
		return models.Video{}, err
	}
	video.Status = models.VideoStatus(status)
	video.CreatedAt = video.CreatedAt.UTC()
	if deletedAt != nil {
		t := deletedAt.UTC()
		video.DeletedAt = &t
	}
	return video, nil
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
