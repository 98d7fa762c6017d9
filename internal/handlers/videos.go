package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/videshare/backend/internal/engagement"
	"github.com/videshare/backend/internal/logging"
	"github.com/videshare/backend/internal/models"
	"github.com/videshare/backend/internal/repositories"
)

// VideoHandler implements the feed, engagement, and upload endpoints.
type VideoHandler struct {
	Feed       FeedService
	Engagement EngagementService
	Videos     VideoCreator
	Signer     UploadSigner
	Tokens     TokenService
	NowFunc    func() time.Time
}

// List handles GET /api/videos. The feed is public; playable URLs are the
// only capability it hands out.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Feed == nil {
		logger.Error("feed service unavailable")
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "feed unavailable"})
		return
	}

	videos, err := h.Feed.Assemble(ctx)
	if err != nil {
		logger.Error("failed to assemble feed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load videos"})
		return
	}

	if videos == nil {
		videos = []models.Video{}
	}
	respondJSON(ctx, w, http.StatusOK, videos)
}

// Like handles POST /api/videos/{id}/like.
func (h VideoHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	claims, status, err := bearerClaims(r, h.Tokens)
	if err != nil {
		logger.Warn("like rejected", "status", status, "error", err)
		respondJSON(ctx, w, status, map[string]string{"error": "authentication required"})
		return
	}

	if h.Engagement == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "engagement unavailable"})
		return
	}

	videoID := mux.Vars(r)["id"]
	result, err := h.Engagement.ToggleLike(ctx, videoID, claims.UserID)
	if err != nil {
		writeEngagementError(ctx, w, "toggle like", videoID, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, result)
}

// Comment handles POST /api/videos/{id}/comments.
func (h VideoHandler) Comment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	claims, status, err := bearerClaims(r, h.Tokens)
	if err != nil {
		logger.Warn("comment rejected", "status", status, "error", err)
		respondJSON(ctx, w, status, map[string]string{"error": "authentication required"})
		return
	}

	if h.Engagement == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "engagement unavailable"})
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid comment payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	videoID := mux.Vars(r)["id"]
	comment, err := h.Engagement.AddComment(ctx, videoID, claims.UserID, claims.Username, req.Text)
	if err != nil {
		writeEngagementError(ctx, w, "add comment", videoID, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, comment)
}

// View handles POST /api/videos/{id}/view. No authentication: view reports
// come from anonymous playback and the client is trusted to dedupe.
func (h VideoHandler) View(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Engagement == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "engagement unavailable"})
		return
	}

	videoID := mux.Vars(r)["id"]
	views, err := h.Engagement.IncrementView(ctx, videoID)
	if err != nil {
		writeEngagementError(ctx, w, "increment view", videoID, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]int64{"views": views})
}

// Edit handles PUT /api/videos/{id}.
func (h VideoHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	claims, status, err := bearerClaims(r, h.Tokens)
	if err != nil {
		logger.Warn("edit rejected", "status", status, "error", err)
		respondJSON(ctx, w, status, map[string]string{"error": "authentication required"})
		return
	}

	if h.Engagement == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "engagement unavailable"})
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid edit payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	videoID := mux.Vars(r)["id"]
	video, err := h.Engagement.Edit(ctx, videoID, claims.Username, req.Title, req.Description)
	if err != nil {
		writeEngagementError(ctx, w, "edit video", videoID, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, video)
}

// Delete handles DELETE /api/videos/{id}. The backing blob is left in place.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	claims, status, err := bearerClaims(r, h.Tokens)
	if err != nil {
		logger.Warn("delete rejected", "status", status, "error", err)
		respondJSON(ctx, w, status, map[string]string{"error": "authentication required"})
		return
	}

	if h.Engagement == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "engagement unavailable"})
		return
	}

	videoID := mux.Vars(r)["id"]
	if err := h.Engagement.Delete(ctx, videoID, claims.Username); err != nil {
		writeEngagementError(ctx, w, "delete video", videoID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadToken handles GET /api/sas-token?filename=. It returns a write
// capability URL for the named blob plus the canonical URL the client should
// record as blobUrl once the upload completes.
func (h VideoHandler) UploadToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	_, status, err := bearerClaims(r, h.Tokens)
	if err != nil {
		logger.Warn("upload token rejected", "status", status, "error", err)
		respondJSON(ctx, w, status, map[string]string{"error": "authentication required"})
		return
	}

	if h.Signer == nil {
		logger.Error("upload signer unavailable")
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "uploads unavailable"})
		return
	}

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "filename is required"})
		return
	}
	if strings.ContainsAny(filename, "/\\") {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "filename must not contain path separators"})
		return
	}

	sasURL, err := h.Signer.PresignUpload(ctx, filename)
	if err != nil {
		logger.Error("failed to presign upload", "filename", filename, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create upload url"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, uploadTokenResponse{
		SASURL:    sasURL,
		UploadURL: h.Signer.BlobURL(filename),
	})
}

// CreateMetadata handles POST /api/video-metadata: it records the document
// for a blob the client has just uploaded.
func (h VideoHandler) CreateMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	claims, status, err := bearerClaims(r, h.Tokens)
	if err != nil {
		logger.Warn("metadata rejected", "status", status, "error", err)
		respondJSON(ctx, w, status, map[string]string{"error": "authentication required"})
		return
	}

	if h.Videos == nil || h.Signer == nil {
		logger.Error("metadata dependencies unavailable", "hasVideos", h.Videos != nil, "hasSigner", h.Signer != nil)
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "uploads unavailable"})
		return
	}

	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid metadata payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Filename = strings.TrimSpace(req.Filename)
	if req.Title == "" || req.Filename == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title and filename are required"})
		return
	}
	if strings.ContainsAny(req.Filename, "/\\") {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "filename must not contain path separators"})
		return
	}

	now := h.now()
	video := models.Video{
		ID:          fmt.Sprintf("%s-%d", req.Filename, now.UnixMilli()),
		Title:       req.Title,
		Description: req.Description,
		BlobURL:     h.Signer.BlobURL(req.Filename),
		Filename:    req.Filename,
		CreatedBy:   claims.Username,
		UploadDate:  now,
		Likes:       []string{},
		Comments:    []models.Comment{},
	}

	if err := h.Videos.Insert(ctx, video); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "video already exists"})
			return
		}
		logger.Error("failed to store video metadata", "videoId", video.ID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to store video"})
		return
	}

	logger.Info("video metadata stored", "videoId", video.ID, "createdBy", video.CreatedBy)
	respondJSON(ctx, w, http.StatusCreated, video)
}

type commentRequest struct {
	Text string `json:"text"`
}

type editRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type metadataRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
}

type uploadTokenResponse struct {
	SASURL    string `json:"sasUrl"`
	UploadURL string `json:"uploadUrl"`
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func writeEngagementError(ctx context.Context, w http.ResponseWriter, op, videoID string, err error) {
	logger := logging.FromContext(ctx)

	switch {
	case errors.Is(err, engagement.ErrEmptyComment):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "comment text is required"})
	case errors.Is(err, engagement.ErrNotOwner):
		logger.Warn("ownership check failed", "op", op, "videoId", videoID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "you do not own this video"})
	case errors.Is(err, repositories.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
	case errors.Is(err, engagement.ErrStoreUnavailable):
		logger.Error("video store unavailable", "op", op, "videoId", videoID)
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "video store unavailable"})
	default:
		logger.Error("engagement mutation failed", "op", op, "videoId", videoID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "request failed"})
	}
}
