package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/hashtags"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/videos"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	multipartMemory      = 8 << 20
)

// VideoHandler provides upload, lookup and engagement endpoints for videos.
type VideoHandler struct {
	Videos         VideoStore
	Uploads        UploadQueue
	Cache          FeedInvalidator
	UploadDir      string
	MaxUploadBytes int64
	NowFunc        func() time.Time
}

// Upload handles POST /api/videos. The file is accepted and processed in the background.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.Videos == nil || h.Uploads == nil {
		logger.Error("upload dependencies unavailable", "hasVideos", h.Videos != nil, "hasUploads", h.Uploads != nil)
		respondError(ctx, w, http.StatusServiceUnavailable, "uploads are unavailable")
		return
	}

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, "video file is too large")
			return
		}
		logger.Warn("invalid upload form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		respondError(ctx, w, http.StatusBadRequest, "title is required")
		return
	}
	if len(title) > maxTitleLength || len(description) > maxDescriptionLength {
		respondError(ctx, w, http.StatusBadRequest, "title or description is too long")
		return
	}

	isPublic := true
	if raw := strings.TrimSpace(r.FormValue("is_public")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "is_public must be a boolean")
			return
		}
		isPublic = parsed
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	tempPath, err := spool(h.UploadDir, file)
	if err != nil {
		logger.Error("spool upload", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to accept upload")
		return
	}

	video := models.Video{
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      models.VideoStatusUploading,
		IsPublic:    isPublic,
		Hashtags:    hashtags.Extract(title, description),
		CreatedAt:   nowOr(h.NowFunc),
	}

	video.ID, err = h.Videos.Create(ctx, video)
	if err != nil {
		_ = os.Remove(tempPath)
		logger.Error("create video record", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to create video")
		return
	}

	if err := h.Uploads.Enqueue(ctx, videos.Upload{VideoID: video.ID, TempPath: tempPath, Filename: header.Filename}); err != nil {
		_ = os.Remove(tempPath)
		logger.Error("enqueue upload", "videoId", video.ID, "error", err)
		if markErr := h.Videos.MarkFailed(ctx, video.ID); markErr != nil {
			logger.Error("mark upload failed", "videoId", video.ID, "error", markErr)
		}
		respondError(ctx, w, http.StatusServiceUnavailable, "upload queue unavailable")
		return
	}

	logger.Info("video upload accepted", "videoId", video.ID, "bytes", header.Size)
	respondJSON(ctx, w, http.StatusAccepted, video)
}

// Get handles GET /api/videos/{id}. Owners can see their own videos in any state.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	video, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(ctx, w, http.StatusOK, video)
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

// Update handles PUT /api/videos/{id}. Only the owner may edit; omitted fields are
// left unchanged and hashtags are re-extracted from the new text.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	video, ok := h.load(w, r)
	if !ok {
		return
	}
	if video.UserID != userID {
		respondError(ctx, w, http.StatusForbidden, "only the owner can edit this video")
		return
	}

	var req updateVideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid video update payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title != nil {
		video.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		video.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsPublic != nil {
		video.IsPublic = *req.IsPublic
	}
	if video.Title == "" {
		respondError(ctx, w, http.StatusBadRequest, "title is required")
		return
	}
	if len(video.Title) > maxTitleLength || len(video.Description) > maxDescriptionLength {
		respondError(ctx, w, http.StatusBadRequest, "title or description is too long")
		return
	}
	video.Hashtags = hashtags.Extract(video.Title, video.Description)

	if err := h.Videos.Update(ctx, video, nowOr(h.NowFunc)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return
		}
		logger.Error("update video", "videoId", video.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to update video")
		return
	}

	h.invalidate()
	logger.Info("video updated", "videoId", video.ID)
	respondJSON(ctx, w, http.StatusOK, video)
}

// Delete handles DELETE /api/videos/{id}, soft deleting the caller's video.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}

	if err := h.Videos.SoftDelete(ctx, id, userID, nowOr(h.NowFunc)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return
		}
		logging.FromContext(ctx).Error("delete video", "videoId", id, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to delete video")
		return
	}

	h.invalidate()
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "video deleted"})
}

// Like handles POST /api/videos/{id}/like.
func (h VideoHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	video, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.Videos.Like(ctx, userID, video.ID, nowOr(h.NowFunc)); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, http.StatusBadRequest, "video already liked")
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "video not found")
		default:
			logging.FromContext(ctx).Error("like video", "videoId", video.ID, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to like video")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"liked": true, "likesCount": video.LikesCount + 1})
}

// Unlike handles DELETE /api/videos/{id}/like.
func (h VideoHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	video, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.Videos.Unlike(ctx, userID, video.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusBadRequest, "video not liked")
			return
		}
		logging.FromContext(ctx).Error("unlike video", "videoId", video.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to unlike video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"liked": false, "likesCount": max(video.LikesCount-1, 0)})
}

// View handles POST /api/videos/{id}/view.
func (h VideoHandler) View(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}

	if err := h.Videos.IncrementViews(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return
		}
		logging.FromContext(ctx).Error("record view", "videoId", id, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to record view")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"viewed": true})
}

// load resolves the {id} video visible to the caller and writes the error response otherwise.
func (h VideoHandler) load(w http.ResponseWriter, r *http.Request) (models.Video, bool) {
	ctx := r.Context()
	if h.Videos == nil {
		logging.FromContext(ctx).Error("video store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "video service unavailable")
		return models.Video{}, false
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return models.Video{}, false
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video not found")
			return models.Video{}, false
		}
		logging.FromContext(ctx).Error("load video", "videoId", id, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load video")
		return models.Video{}, false
	}

	if !video.Eligible() && video.UserID != viewerID(ctx) {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return models.Video{}, false
	}

	return video, true
}

func (h VideoHandler) invalidate() {
	if h.Cache != nil {
		h.Cache.Invalidate()
	}
}

// spool copies an upload to a temporary file owned by the ingestor.
func spool(dir string, src io.Reader) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	dst, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
