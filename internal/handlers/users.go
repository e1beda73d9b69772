package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/feed"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

const (
	maxFirstNameLength = 100
	maxBioLength       = 500
)

// UserHandler serves public profiles, social lists and profile edits.
type UserHandler struct {
	Profiles ProfileStore
	Follows  FollowStore
	NowFunc  func() time.Time
}

type profileResponse struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	FirstName string           `json:"firstName"`
	Bio       string           `json:"bio"`
	CreatedAt time.Time        `json:"createdAt"`
	Stats     models.UserStats `json:"stats"`
}

type updateProfileRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	Bio       *string `json:"bio"`
}

type connectionsResponse struct {
	Users   []models.Connection `json:"users"`
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
	HasMore bool                `json:"hasMore"`
}

type userSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
}

type userSearchResponse struct {
	Users   []userSummary `json:"users"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	HasMore bool          `json:"hasMore"`
}

// Profile handles GET /api/users/{id}.
func (h UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := h.activeUser(w, r)
	if !ok {
		return
	}

	stats, err := h.Profiles.Stats(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("load user stats", "userId", user.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, profileResponse{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		Bio:       user.Bio,
		CreatedAt: user.CreatedAt,
		Stats:     stats,
	})
}

// Stats handles GET /api/users/{id}/stats.
func (h UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := h.activeUser(w, r)
	if !ok {
		return
	}

	stats, err := h.Profiles.Stats(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("load user stats", "userId", user.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load statistics")
		return
	}

	respondJSON(ctx, w, http.StatusOK, stats)
}

// Followers handles GET /api/users/{id}/followers?page=&limit=.
func (h UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.connections(w, r, "followers", func(user models.User, limit, offset int) ([]models.Connection, error) {
		return h.Follows.Followers(r.Context(), user.ID, limit, offset)
	})
}

// Following handles GET /api/users/{id}/following?page=&limit=.
func (h UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.connections(w, r, "following", func(user models.User, limit, offset int) ([]models.Connection, error) {
		return h.Follows.Following(r.Context(), user.ID, limit, offset)
	})
}

func (h UserHandler) connections(w http.ResponseWriter, r *http.Request, name string, list func(models.User, int, int) ([]models.Connection, error)) {
	ctx := r.Context()
	if h.Follows == nil {
		logging.FromContext(ctx).Error("follow store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "follow service unavailable")
		return
	}
	user, ok := h.activeUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page := parsePage(query.Get("page"))
	limit := parseLimit(query.Get("limit"))

	found, err := list(user, limit+1, (page-1)*limit)
	if err != nil {
		logging.FromContext(ctx).Error("list "+name, "userId", user.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load "+name)
		return
	}

	resp := connectionsResponse{Users: found, Page: page, Limit: limit, HasMore: len(found) > limit}
	if resp.HasMore {
		resp.Users = found[:limit]
	}
	if resp.Users == nil {
		resp.Users = []models.Connection{}
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

// Search handles GET /api/search/users?q=&page=&limit=.
func (h UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Profiles == nil {
		logging.FromContext(ctx).Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "user service unavailable")
		return
	}

	query := r.URL.Query()
	term, err := feed.NormalizeSearch(query.Get("q"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "search query must be 2-100 characters")
		return
	}
	page := parsePage(query.Get("page"))
	limit := parseLimit(query.Get("limit"))

	found, err := h.Profiles.Search(ctx, term, limit+1, (page-1)*limit)
	if err != nil {
		logging.FromContext(ctx).Error("search users", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to search users")
		return
	}

	resp := userSearchResponse{Users: []userSummary{}, Page: page, Limit: limit, HasMore: len(found) > limit}
	for i, user := range found {
		if i == limit {
			break
		}
		resp.Users = append(resp.Users, userSummary{ID: user.ID, Username: user.Username, FirstName: user.FirstName})
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

// UpdateProfile handles PUT /api/profile. Omitted fields are left unchanged.
func (h UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "user service unavailable")
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid profile payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Profiles.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return
		}
		logger.Error("load profile", "userId", userID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load profile")
		return
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if !usernamePattern.MatchString(username) {
			respondError(ctx, w, http.StatusBadRequest, "username must be 3-30 letters, digits or underscores")
			return
		}
		user.Username = username
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
		if utf8.RuneCountInString(user.FirstName) > maxFirstNameLength {
			respondError(ctx, w, http.StatusBadRequest, "first name is too long")
			return
		}
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(*req.Bio)
		if utf8.RuneCountInString(user.Bio) > maxBioLength {
			respondError(ctx, w, http.StatusBadRequest, "bio is too long")
			return
		}
	}
	user.UpdatedAt = nowOr(h.NowFunc)

	if err := h.Profiles.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, http.StatusConflict, "username already taken")
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "user not found")
		default:
			logger.Error("update profile", "userId", userID, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to update profile")
		}
		return
	}

	logger.Info("profile updated", "userId", userID)
	respondJSON(ctx, w, http.StatusOK, user)
}

// activeUser resolves the {id} user and writes a 404 for unknown or inactive accounts.
func (h UserHandler) activeUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	ctx := r.Context()
	if h.Profiles == nil {
		logging.FromContext(ctx).Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "user service unavailable")
		return models.User{}, false
	}

	id := r.PathValue("id")
	user, err := h.Profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return models.User{}, false
		}
		logging.FromContext(ctx).Error("load user", "userId", id, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load user")
		return models.User{}, false
	}
	if !user.IsActive {
		respondError(ctx, w, http.StatusNotFound, "user not found")
		return models.User{}, false
	}

	return user, true
}
