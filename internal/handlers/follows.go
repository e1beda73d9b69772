package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/repositories"
)

// FollowHandler maintains the caller's follow graph.
type FollowHandler struct {
	Follows FollowStore
	Users   UserStore
	NowFunc func() time.Time
}

// Follow handles POST /api/users/{id}/follow.
func (h FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	followerID, targetID, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if err := h.Follows.Follow(ctx, followerID, targetID, nowOr(h.NowFunc)); err != nil {
		switch {
		case errors.Is(err, repositories.ErrSelfFollow):
			respondError(ctx, w, http.StatusBadRequest, "cannot follow yourself")
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, http.StatusBadRequest, "already following")
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "user not found")
		default:
			logging.FromContext(ctx).Error("follow user", "targetId", targetID, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to follow user")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"following": true})
}

// Unfollow handles DELETE /api/users/{id}/follow.
func (h FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	followerID, targetID, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if err := h.Follows.Unfollow(ctx, followerID, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusBadRequest, "not following")
			return
		}
		logging.FromContext(ctx).Error("unfollow user", "targetId", targetID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to unfollow user")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"following": false})
}

func (h FollowHandler) resolve(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	ctx := r.Context()
	followerID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return "", "", false
	}
	if h.Follows == nil || h.Users == nil {
		logging.FromContext(ctx).Error("follow dependencies unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "follow service unavailable")
		return "", "", false
	}

	targetID := r.PathValue("id")
	target, err := h.Users.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return "", "", false
		}
		logging.FromContext(ctx).Error("load follow target", "targetId", targetID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load user")
		return "", "", false
	}
	if !target.IsActive {
		respondError(ctx, w, http.StatusNotFound, "user not found")
		return "", "", false
	}

	return followerID, target.ID, true
}
