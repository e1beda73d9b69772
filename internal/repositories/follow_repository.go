package repositories

import (
	"context"
	"time"

	"github.com/clipstream/backend/internal/feed"
	"github.com/clipstream/backend/internal/models"
)

// FollowRepository manages the directed follow graph.
type FollowRepository interface {
	feed.FollowGraph
	Follow(ctx context.Context, followerID, followingID string, now time.Time) error
	Unfollow(ctx context.Context, followerID, followingID string) error
	Followers(ctx context.Context, userID string, limit, offset int) ([]models.Connection, error)
	Following(ctx context.Context, userID string, limit, offset int) ([]models.Connection, error)
}
