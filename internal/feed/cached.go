package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/clipstream/backend/internal/cache"
)

// Reader is the read side of the feed engine consumed by HTTP handlers.
type Reader interface {
	Vertical(ctx context.Context, viewerID, cursor string, limit int) (Page, error)
	Home(ctx context.Context, viewerID, cursor string, limit int) (Page, error)
	Trending(ctx context.Context, cursor string, limit int) (Page, error)
	Chronological(ctx context.Context, viewerID, cursor string, limit int) (Page, error)
	Creator(ctx context.Context, creatorID, cursor string, limit int) (Page, error)
	Search(ctx context.Context, term, cursor string, limit int) (Page, error)
	Hashtag(ctx context.Context, tag, cursor string, limit int) (Page, error)
}

// CachedReader decorates a Reader with a TTL cache for the viewer-independent ranked
// feeds. Personalised, chronological, search and hashtag feeds pass straight through.
type CachedReader struct {
	Reader
	pages *cache.TTL[Page]
}

// NewCachedReader wraps inner with a page cache that keeps entries for ttl.
func NewCachedReader(inner Reader, ttl time.Duration) *CachedReader {
	return &CachedReader{Reader: inner, pages: cache.NewTTL[Page](ttl)}
}

// Vertical serves the discover feed from cache when possible.
func (c *CachedReader) Vertical(ctx context.Context, viewerID, cursor string, limit int) (Page, error) {
	key := fmt.Sprintf("vertical:%s:%d", cursor, ClampLimit(limit))
	return c.pages.GetOrCompute(ctx, key, func(ctx context.Context) (Page, error) {
		return c.Reader.Vertical(ctx, viewerID, cursor, limit)
	})
}

// homeWithFallback is implemented by readers whose home feed can delegate its
// empty-following case.
type homeWithFallback interface {
	HomeOr(ctx context.Context, viewerID, cursor string, limit int, fallback PageFunc) (Page, error)
}

// Home passes through to the inner reader, but a viewer who follows nobody is served
// the cached vertical feed so both feeds agree within one TTL.
func (c *CachedReader) Home(ctx context.Context, viewerID, cursor string, limit int) (Page, error) {
	if inner, ok := c.Reader.(homeWithFallback); ok {
		return inner.HomeOr(ctx, viewerID, cursor, limit, c.Vertical)
	}
	return c.Reader.Home(ctx, viewerID, cursor, limit)
}

// Trending serves the trending feed from cache when possible.
func (c *CachedReader) Trending(ctx context.Context, cursor string, limit int) (Page, error) {
	key := fmt.Sprintf("trending:%s:%d", cursor, ClampLimit(limit))
	return c.pages.GetOrCompute(ctx, key, func(ctx context.Context) (Page, error) {
		return c.Reader.Trending(ctx, cursor, limit)
	})
}

// Invalidate drops every cached page. Call it whenever a video enters or leaves the
// eligible set; engagement counters are allowed to lag by up to the TTL.
func (c *CachedReader) Invalidate() {
	c.pages.Clear()
}

var (
	_ Reader = (*Service)(nil)
	_ Reader = (*CachedReader)(nil)
)
