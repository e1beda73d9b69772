package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/feed"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/repositories"
)

// FeedHandler serves the ranked, cursor-paginated video feeds.
type FeedHandler struct {
	Feeds feed.Reader
	Users UserStore
}

type feedResponse struct {
	feed.Page
	Category  string `json:"category,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
}

// Vertical handles GET /api/feed/vertical.
func (h FeedHandler) Vertical(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "vertical", func(ctx context.Context, cursor string, limit int) (feed.Page, error) {
		return h.Feeds.Vertical(ctx, viewerID(ctx), cursor, limit)
	}, nil)
}

// Discover handles GET /api/feed/discover, the vertical feed with the category echoed back.
func (h FeedHandler) Discover(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	h.serve(w, r, "discover", func(ctx context.Context, cursor string, limit int) (feed.Page, error) {
		return h.Feeds.Vertical(ctx, viewerID(ctx), cursor, limit)
	}, func(resp *feedResponse) { resp.Category = category })
}

// Home handles GET /api/feed/home.
func (h FeedHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "home", func(ctx context.Context, cursor string, limit int) (feed.Page, error) {
		return h.Feeds.Home(ctx, viewerID(ctx), cursor, limit)
	}, nil)
}

// Trending handles GET /api/feed/trending.
func (h FeedHandler) Trending(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "trending", func(ctx context.Context, cursor string, limit int) (feed.Page, error) {
		return h.Feeds.Trending(ctx, cursor, limit)
	}, nil)
}

// Popular handles GET /api/feed/popular, the trending feed with the timeframe echoed back.
func (h FeedHandler) Popular(w http.ResponseWriter, r *http.Request) {
	timeframe := strings.TrimSpace(r.URL.Query().Get("timeframe"))
	h.serve(w, r, "popular", func(ctx context.Context, cursor string, limit int) (feed.Page, error) {
		return h.Feeds.Trending(ctx, cursor, limit)
	}, func(resp *feedResponse) { resp.Timeframe = timeframe })
}

// Chronological handles GET /api/feed/chronological.
func (h FeedHandler) Chronological(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "chronological", func(ctx context.Context, cursor string, limit int) (feed.Page, error) {
		return h.Feeds.Chronological(ctx, viewerID(ctx), cursor, limit)
	}, nil)
}

// Creator handles GET /api/feed/creator/{userId}. Unknown and inactive creators are 404.
func (h FeedHandler) Creator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	creatorID := r.PathValue("userId")

	if h.Users == nil {
		logging.FromContext(ctx).Error("user store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "feed service unavailable")
		return
	}

	creator, err := h.Users.FindByID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "creator not found")
			return
		}
		logging.FromContext(ctx).Error("load creator", "creatorId", creatorID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load creator")
		return
	}
	if !creator.IsActive {
		respondError(ctx, w, http.StatusNotFound, "creator not found")
		return
	}

	h.serve(w, r, "creator", func(ctx context.Context, cursor string, limit int) (feed.Page, error) {
		return h.Feeds.Creator(ctx, creator.ID, cursor, limit)
	}, nil)
}

// Search handles GET /api/search/videos?q=, ranked like the vertical feed.
func (h FeedHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	h.serve(w, r, "search", func(ctx context.Context, cursor string, limit int) (feed.Page, error) {
		return h.Feeds.Search(ctx, term, cursor, limit)
	}, nil)
}

// Hashtag handles GET /api/hashtags/{name}/videos, newest first.
func (h FeedHandler) Hashtag(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("name")
	h.serve(w, r, "hashtag", func(ctx context.Context, cursor string, limit int) (feed.Page, error) {
		return h.Feeds.Hashtag(ctx, tag, cursor, limit)
	}, nil)
}

type pageFunc func(ctx context.Context, cursor string, limit int) (feed.Page, error)

func (h FeedHandler) serve(w http.ResponseWriter, r *http.Request, name string, load pageFunc, decorate func(*feedResponse)) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Feeds == nil {
		logging.FromContext(ctx).Error("feed reader unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "feed service unavailable")
		return
	}

	query := r.URL.Query()
	cursor := strings.TrimSpace(query.Get("cursor"))
	limit := parseLimit(query.Get("limit"))

	spanCtx, span := logging.StartSpan(ctx, "feed."+name)
	page, err := load(spanCtx, cursor, limit)
	span.Set("limit", limit, "count", len(page.Videos), "hasMore", page.HasMore)
	span.End(err)

	if err != nil {
		switch {
		case errors.Is(err, feed.ErrInvalidCursor):
			respondError(ctx, w, http.StatusBadRequest, "invalid cursor")
		case errors.Is(err, feed.ErrInvalidSearch):
			respondError(ctx, w, http.StatusBadRequest, "search query must be 2-100 characters")
		case errors.Is(err, feed.ErrInvalidHashtag):
			respondError(ctx, w, http.StatusBadRequest, "invalid hashtag")
		case errors.Is(err, feed.ErrViewerRequired):
			respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		default:
			respondError(ctx, w, http.StatusInternalServerError, "unable to load feed")
		}
		return
	}

	resp := feedResponse{Page: page}
	if decorate != nil {
		decorate(&resp)
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

// parseLimit reads the page size. Missing or non-integer values fall back to the default.
func parseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return feed.DefaultLimit
	}
	return feed.ClampLimit(limit)
}

// parsePage reads a 1-based page number for offset-paginated lists.
func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func viewerID(ctx context.Context) string {
	userID, _ := auth.UserIDFromContext(ctx)
	return userID
}
