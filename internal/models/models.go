package models

import "time"

// User represents an account on the clipstream platform.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	Bio       string    `json:"bio"`
	Password  string    `json:"-"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VideoStatus tracks where an uploaded video is in its processing lifecycle.
type VideoStatus string

const (
	VideoStatusUploading  VideoStatus = "uploading"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusFailed     VideoStatus = "failed"
)

// Video is a short clip uploaded by a user.
type Video struct {
	ID          int64       `json:"id"`
	UserID      string      `json:"userId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      VideoStatus `json:"status"`
	IsPublic    bool        `json:"isPublic"`
	ViewsCount  int64       `json:"viewsCount"`
	LikesCount  int64       `json:"likesCount"`
	AssetURL    string      `json:"assetUrl,omitempty"`
	AssetSize   int64       `json:"assetSize,omitempty"`
	Hashtags    []string    `json:"hashtags,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	DeletedAt   *time.Time  `json:"-"`
}

// Eligible reports whether the video may appear in public feeds.
func (v Video) Eligible() bool {
	return v.IsPublic && v.Status == VideoStatusReady && v.DeletedAt == nil
}

// UserStats summarises a creator's public activity.
type UserStats struct {
	FollowersCount int64 `json:"followersCount"`
	FollowingCount int64 `json:"followingCount"`
	VideosCount    int64 `json:"videosCount"`
	TotalViews     int64 `json:"totalViews"`
	TotalLikes     int64 `json:"totalLikes"`
}

// Connection is one side of a follow edge as shown in follower and following lists.
type Connection struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"firstName"`
	FollowedAt time.Time `json:"followedAt"`
}

// Hashtag tracks how often a tag has been attached to videos.
type Hashtag struct {
	Name       string    `json:"name"`
	UsageCount int64     `json:"usageCount"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// Follow is a directed edge in the social graph.
type Follow struct {
	FollowerID  string
	FollowingID string
	CreatedAt   time.Time
}

// RefreshToken is a persisted long-lived credential used to mint new access tokens.
type RefreshToken struct {
	ID        int64
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	IsRevoked bool
}

// Usable reports whether the token can still be exchanged at the given instant.
func (t RefreshToken) Usable(now time.Time) bool {
	return now.Before(t.ExpiresAt) && !t.IsRevoked
}

// TokenPair groups the bearer credentials issued to authenticated users.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
