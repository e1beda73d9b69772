package repositories

import (
	"context"
	"time"

	"github.com/clipstream/backend/internal/feed"
	"github.com/clipstream/backend/internal/models"
)

// VideoRepository exposes data access for uploaded videos.
type VideoRepository interface {
	feed.Store
	Create(ctx context.Context, video models.Video) (int64, error)
	FindByID(ctx context.Context, id int64) (models.Video, error)
	IncrementViews(ctx context.Context, id int64) error
	Like(ctx context.Context, userID string, videoID int64, now time.Time) error
	Unlike(ctx context.Context, userID string, videoID int64) error
	Update(ctx context.Context, video models.Video, now time.Time) error
	SoftDelete(ctx context.Context, id int64, ownerID string, now time.Time) error
}
