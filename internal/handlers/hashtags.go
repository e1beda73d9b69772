package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/clipstream/backend/internal/feed"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
)

// HashtagHandler serves trending and searched hashtags.
type HashtagHandler struct {
	Hashtags HashtagStore
	NowFunc  func() time.Time
}

type hashtagsResponse struct {
	Hashtags []models.Hashtag `json:"hashtags"`
}

// Trending handles GET /api/hashtags/trending, the most used tags of the trending window.
func (h HashtagHandler) Trending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Hashtags == nil {
		logging.FromContext(ctx).Error("hashtag store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "hashtag service unavailable")
		return
	}

	since := nowOr(h.NowFunc).Add(-feed.TrendingWindow)
	tags, err := h.Hashtags.Trending(ctx, since, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		logging.FromContext(ctx).Error("trending hashtags", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load hashtags")
		return
	}

	respondHashtags(w, r, tags)
}

// Search handles GET /api/search/hashtags?q=.
func (h HashtagHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Hashtags == nil {
		logging.FromContext(ctx).Error("hashtag store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "hashtag service unavailable")
		return
	}

	query := r.URL.Query()
	term := strings.ToLower(strings.TrimLeft(strings.TrimSpace(query.Get("q")), "#"))
	if term == "" {
		respondError(ctx, w, http.StatusBadRequest, "search query is required")
		return
	}

	tags, err := h.Hashtags.Search(ctx, term, parseLimit(query.Get("limit")))
	if err != nil {
		logging.FromContext(ctx).Error("search hashtags", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to search hashtags")
		return
	}

	respondHashtags(w, r, tags)
}

func respondHashtags(w http.ResponseWriter, r *http.Request, tags []models.Hashtag) {
	if tags == nil {
		tags = []models.Hashtag{}
	}
	respondJSON(r.Context(), w, http.StatusOK, hashtagsResponse{Hashtags: tags})
}
