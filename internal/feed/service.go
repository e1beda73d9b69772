package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/clipstream/backend/internal/hashtags"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
)

const (
	// DefaultLimit is the page size used when the caller does not ask for one.
	DefaultLimit = 20
	// MaxLimit caps the page size of every feed.
	MaxLimit = 50
	// MaxFollowing bounds how many followed creators feed the home timeline.
	MaxFollowing = 1000
	// TrendingWindow is how far back the trending feed looks.
	TrendingWindow = 7 * 24 * time.Hour
	// MinSearchLength is the shortest accepted search term.
	MinSearchLength = 2
	// MaxSearchLength is the longest accepted search term.
	MaxSearchLength = 100
)

var (
	// ErrViewerRequired is returned by feeds that are personalised to a signed-in user.
	ErrViewerRequired = errors.New("feed requires a viewer")
	// ErrInvalidSearch is returned for search terms that are too short or too long.
	ErrInvalidSearch = errors.New("invalid search term")
	// ErrInvalidHashtag is returned when a hashtag feed is requested for a malformed tag.
	ErrInvalidHashtag = errors.New("invalid hashtag")
)

// Query describes one page request against the video store. Only eligible videos
// (public, ready, not deleted) are ever returned.
type Query struct {
	Ranking Ranking
	// AuthorIDs restricts results to the given uploaders when non-nil.
	AuthorIDs []string
	// Since, when non-zero, excludes videos created before it.
	Since time.Time
	// Search, when set, keeps videos whose title or description contains it,
	// ignoring case.
	Search string
	// Hashtag, when set, keeps videos tagged with it. It is already normalised.
	Hashtag string
	// After, when set, returns only videos served strictly after the cursor.
	After *Cursor
	Limit int
}

// Store lists eligible videos in ranking order.
type Store interface {
	ListEligible(ctx context.Context, q Query) ([]models.Video, error)
}

// FollowGraph resolves the creators a user follows.
type FollowGraph interface {
	FollowingIDs(ctx context.Context, userID string, limit int) ([]string, error)
}

// Page is one slice of a feed.
type Page struct {
	Videos     []models.Video `json:"videos"`
	NextCursor *string        `json:"nextCursor"`
	HasMore    bool           `json:"hasMore"`
}

// Service computes the ranked, cursor-paginated feeds.
type Service struct {
	store   Store
	follows FollowGraph
	now     func() time.Time
}

// NewService constructs a feed service over the provided stores.
func NewService(store Store, follows FollowGraph) *Service {
	if store == nil {
		panic("feed: video store must not be nil")
	}
	return &Service{store: store, follows: follows, now: time.Now}
}

// ClampLimit bounds a requested page size to [1, MaxLimit].
func ClampLimit(limit int) int {
	return min(MaxLimit, max(1, limit))
}

// Vertical serves the discover feed ranked by VerticalScore.
func (s *Service) Vertical(ctx context.Context, viewerID, cursor string, limit int) (Page, error) {
	after, err := parseCursor(cursor, RankVertical)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, "vertical", Query{Ranking: RankVertical, After: after}, limit)
}

// PageFunc serves one page of a viewer-facing feed.
type PageFunc func(ctx context.Context, viewerID, cursor string, limit int) (Page, error)

// Home serves the newest videos of creators the viewer follows. A viewer who follows
// nobody is served the vertical feed instead.
func (s *Service) Home(ctx context.Context, viewerID, cursor string, limit int) (Page, error) {
	return s.HomeOr(ctx, viewerID, cursor, limit, s.Vertical)
}

// HomeOr is Home with the feed served to viewers who follow nobody supplied by the
// caller, so a decorator can route the fallback through its own vertical feed.
func (s *Service) HomeOr(ctx context.Context, viewerID, cursor string, limit int, fallback PageFunc) (Page, error) {
	if viewerID == "" {
		return Page{}, ErrViewerRequired
	}
	if s.follows == nil {
		return fallback(ctx, viewerID, cursor, limit)
	}

	following, err := s.follows.FollowingIDs(ctx, viewerID, MaxFollowing)
	if err != nil {
		return Page{}, fmt.Errorf("load following: %w", err)
	}
	if len(following) == 0 {
		logging.FromContext(ctx).Debug("home feed falling back to vertical", "viewerId", viewerID)
		return fallback(ctx, viewerID, cursor, limit)
	}

	after, err := parseCursor(cursor, RankRecent)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, "home", Query{Ranking: RankRecent, AuthorIDs: following, After: after}, limit)
}

// Trending serves videos from the last TrendingWindow ranked by TrendingScore.
func (s *Service) Trending(ctx context.Context, cursor string, limit int) (Page, error) {
	after, err := parseCursor(cursor, RankTrending)
	if err != nil {
		return Page{}, err
	}
	since := s.now().UTC().Add(-TrendingWindow)
	return s.paginate(ctx, "trending", Query{Ranking: RankTrending, Since: since, After: after}, limit)
}

// Chronological serves every eligible video newest first.
func (s *Service) Chronological(ctx context.Context, viewerID, cursor string, limit int) (Page, error) {
	after, err := parseCursor(cursor, RankRecent)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, "chronological", Query{Ranking: RankRecent, After: after}, limit)
}

// Creator serves a single creator's channel newest first.
func (s *Service) Creator(ctx context.Context, creatorID, cursor string, limit int) (Page, error) {
	after, err := parseCursor(cursor, RankRecent)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, "creator", Query{Ranking: RankRecent, AuthorIDs: []string{creatorID}, After: after}, limit)
}

// Search serves eligible videos whose title or description contains term, ranked by
// the same engagement score as the vertical feed.
func (s *Service) Search(ctx context.Context, term, cursor string, limit int) (Page, error) {
	term, err := NormalizeSearch(term)
	if err != nil {
		return Page{}, err
	}
	after, err := parseCursor(cursor, RankVertical)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, "search", Query{Ranking: RankVertical, Search: term, After: after}, limit)
}

// Hashtag serves eligible videos carrying the tag newest first. The tag may be given
// with or without its leading '#'.
func (s *Service) Hashtag(ctx context.Context, tag, cursor string, limit int) (Page, error) {
	name, ok := hashtags.Normalize(tag)
	if !ok {
		return Page{}, ErrInvalidHashtag
	}
	after, err := parseCursor(cursor, RankRecent)
	if err != nil {
		return Page{}, err
	}
	return s.paginate(ctx, "hashtag", Query{Ranking: RankRecent, Hashtag: name, After: after}, limit)
}

// NormalizeSearch trims a search term and checks its length.
func NormalizeSearch(term string) (string, error) {
	term = strings.TrimSpace(term)
	if n := utf8.RuneCountInString(term); n < MinSearchLength || n > MaxSearchLength {
		return "", ErrInvalidSearch
	}
	return term, nil
}

// paginate over-fetches one row to learn whether another page exists without a
// separate count query.
func (s *Service) paginate(ctx context.Context, name string, q Query, limit int) (Page, error) {
	limit = ClampLimit(limit)
	q.Limit = limit + 1

	videos, err := s.store.ListEligible(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("list %s feed: %w", name, err)
	}

	page := Page{Videos: videos, HasMore: len(videos) > limit}
	if page.HasMore {
		page.Videos = videos[:limit]
		last := page.Videos[len(page.Videos)-1]
		next := Cursor{Ranking: q.Ranking, Key: q.Ranking.KeyOf(last)}.Encode()
		page.NextCursor = &next
	}
	if page.Videos == nil {
		page.Videos = []models.Video{}
	}

	logging.FromContext(ctx).Debug("feed page served", "feed", name, "count", len(page.Videos), "hasMore", page.HasMore)
	return page, nil
}
