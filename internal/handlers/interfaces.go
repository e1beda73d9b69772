package handlers

import (
	"context"
	"time"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/videos"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

// ProfileStore captures the public profile operations on users.
type ProfileStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	Search(ctx context.Context, term string, limit, offset int) ([]models.User, error)
	Stats(ctx context.Context, id string) (models.UserStats, error)
}

// TokenService issues, rotates and revokes token pairs.
type TokenService interface {
	CreateTokenPair(ctx context.Context, userID string) (models.TokenPair, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (models.TokenPair, error)
	RevokeRefreshToken(ctx context.Context, userID, refreshToken string) (bool, error)
	RevokeAllUserTokens(ctx context.Context, userID string) error
}

// VideoStore captures persistence for uploaded videos.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) (int64, error)
	FindByID(ctx context.Context, id int64) (models.Video, error)
	IncrementViews(ctx context.Context, id int64) error
	Like(ctx context.Context, userID string, videoID int64, now time.Time) error
	Unlike(ctx context.Context, userID string, videoID int64) error
	Update(ctx context.Context, video models.Video, now time.Time) error
	SoftDelete(ctx context.Context, id int64, ownerID string, now time.Time) error
	MarkFailed(ctx context.Context, id int64) error
}

// FollowStore captures operations required by the follow handlers.
type FollowStore interface {
	Follow(ctx context.Context, followerID, followingID string, now time.Time) error
	Unfollow(ctx context.Context, followerID, followingID string) error
	Followers(ctx context.Context, userID string, limit, offset int) ([]models.Connection, error)
	Following(ctx context.Context, userID string, limit, offset int) ([]models.Connection, error)
}

// HashtagStore reads hashtag usage.
type HashtagStore interface {
	Trending(ctx context.Context, since time.Time, limit int) ([]models.Hashtag, error)
	Search(ctx context.Context, term string, limit int) ([]models.Hashtag, error)
}

// UploadQueue schedules background persistence of uploaded files.
type UploadQueue interface {
	Enqueue(ctx context.Context, upload videos.Upload) error
}

// FeedInvalidator drops cached feed pages after writes that change visibility.
type FeedInvalidator interface {
	Invalidate()
}
