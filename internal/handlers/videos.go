package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/media"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// VideoHandler implements video publishing, listing and owned-media endpoints.
type VideoHandler struct {
	Videos  VideoStore
	Media   MediaManager
	NowFunc func() time.Time
}

// List handles GET /api/v1/videos.
// Query parameters: page, limit, query, sortBy, sortType, userId.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	params := repositories.ListVideosParams{
		Page:      page,
		Limit:     limit,
		Query:     strings.TrimSpace(q.Get("query")),
		OwnerID:   strings.TrimSpace(q.Get("userId")),
		SortBy:    q.Get("sortBy"),
		Ascending: q.Get("sortType") == "asc",
	}

	videos, total, err := h.Videos.List(ctx, params)
	if err != nil {
		logging.FromContext(ctx).Error("list videos", "error", err)
		respondError(ctx, w, err)
		return
	}

	if videos == nil {
		videos = []models.Video{}
	}

	totalPages := int64(math.Ceil(float64(total) / float64(limit)))

	respondData(ctx, w, http.StatusOK, videoListResponse{
		Videos:      videos,
		Page:        page,
		TotalPages:  totalPages,
		TotalVideos: total,
	}, "videos fetched successfully")
}

// Publish handles POST /api/v1/videos. Multipart body: title and description
// fields plus required videoFile and thumbnail files. Duration comes from the
// uploaded media, never from the client.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	owner, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, Unauthorized("authentication required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(ctx, w, BadRequest("invalid multipart body"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		respondError(ctx, w, BadRequest("title and description are required"))
		return
	}

	mediaPath, err := stageUploadedFile(r, "videoFile")
	if err != nil {
		respondError(ctx, w, BadRequest("could not read video upload"))
		return
	}
	thumbPath, err := stageUploadedFile(r, "thumbnail")
	if err != nil {
		respondError(ctx, w, BadRequest("could not read thumbnail upload"))
		return
	}
	if mediaPath == "" || thumbPath == "" {
		respondError(ctx, w, BadRequest("video file and thumbnail are required"))
		return
	}

	mediaAsset, err := h.Media.Upload(ctx, mediaPath)
	if err != nil {
		logger.Warn("video upload failed", "ownerId", owner.ID, "error", err)
		respondError(ctx, w, BadRequest("failed to upload video file"))
		return
	}

	if mediaAsset.Duration <= 0 {
		h.Media.Cleanup(ctx, mediaAsset.Key)
		respondError(ctx, w, BadRequest("failed to determine video duration"))
		return
	}

	thumbAsset, err := h.Media.Upload(ctx, thumbPath)
	if err != nil {
		logger.Warn("thumbnail upload failed", "ownerId", owner.ID, "error", err)
		h.Media.Cleanup(ctx, mediaAsset.Key)
		respondError(ctx, w, BadRequest("failed to upload thumbnail"))
		return
	}

	now := h.now()
	video := models.Video{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  description,
		Duration:     mediaAsset.Duration,
		MediaURL:     mediaAsset.URL,
		MediaKey:     mediaAsset.Key,
		ThumbnailURL: thumbAsset.URL,
		ThumbnailKey: thumbAsset.Key,
		OwnerID:      owner.ID,
		Published:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		logger.Error("create video", "ownerId", owner.ID, "error", err)
		h.Media.Cleanup(ctx, mediaAsset.Key, thumbAsset.Key)
		respondError(ctx, w, Internal("failed to publish video"))
		return
	}

	respondData(ctx, w, http.StatusCreated, video, "video published successfully")
}

// Get handles GET /api/v1/videos/{videoId}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	id := r.PathValue("videoId")
	if id == "" {
		respondError(ctx, w, BadRequest("video id is required"))
		return
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, NotFound("video not found"))
			return
		}
		respondError(ctx, w, err)
		return
	}

	// Best effort: a failed counter bump must not break playback.
	if err := h.Videos.IncrementViews(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("increment views failed", "videoId", id, "error", err)
	} else {
		video.Views++
	}

	respondData(ctx, w, http.StatusOK, video, "video fetched successfully")
}

// UpdateDetails handles PATCH /api/v1/videos/{videoId}.
func (h VideoHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	video, apiErr := h.ownedVideo(r)
	if apiErr != nil {
		respondError(ctx, w, apiErr)
		return
	}

	var req updateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, BadRequest("invalid request body"))
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		respondError(ctx, w, BadRequest("title and description are required"))
		return
	}

	updated, err := h.Videos.UpdateDetails(ctx, video.ID, req.Title, req.Description)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, updated, "video details updated successfully")
}

// UpdateThumbnail handles PATCH /api/v1/videos/{videoId}/thumbnail.
func (h VideoHandler) UpdateThumbnail(w http.ResponseWriter, r *http.Request) {
	h.replaceAsset(w, r, "thumbnail", func(v models.VideoWithOwner) string {
		if v.ThumbnailKey != "" {
			return v.ThumbnailKey
		}
		return media.KeyFromURL(v.ThumbnailURL)
	}, func(ctx context.Context, v models.VideoWithOwner, asset models.MediaAsset) (models.Video, error) {
		return h.Videos.SetThumbnail(ctx, v.ID, asset.URL, asset.Key)
	})
}

// UpdateMedia handles PATCH /api/v1/videos/{videoId}/media. The new file's
// probed duration replaces the stored one.
func (h VideoHandler) UpdateMedia(w http.ResponseWriter, r *http.Request) {
	h.replaceAsset(w, r, "videoFile", func(v models.VideoWithOwner) string {
		if v.MediaKey != "" {
			return v.MediaKey
		}
		return media.KeyFromURL(v.MediaURL)
	}, func(ctx context.Context, v models.VideoWithOwner, asset models.MediaAsset) (models.Video, error) {
		if asset.Duration <= 0 {
			return models.Video{}, BadRequest("failed to determine video duration")
		}
		return h.Videos.SetMedia(ctx, v.ID, asset.URL, asset.Key, asset.Duration)
	})
}

func (h VideoHandler) replaceAsset(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	previousKey func(models.VideoWithOwner) string,
	persist func(ctx context.Context, v models.VideoWithOwner, asset models.MediaAsset) (models.Video, error),
) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	video, apiErr := h.ownedVideo(r)
	if apiErr != nil {
		respondError(ctx, w, apiErr)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(ctx, w, BadRequest("invalid multipart body"))
		return
	}

	stagedPath, err := stageUploadedFile(r, field)
	if err != nil {
		respondError(ctx, w, BadRequest("could not read uploaded file"))
		return
	}
	if stagedPath == "" {
		respondError(ctx, w, BadRequest(field+" file is missing"))
		return
	}

	asset, err := h.Media.Upload(ctx, stagedPath)
	if err != nil {
		logger.Warn("asset upload failed", "videoId", video.ID, "field", field, "error", err)
		respondError(ctx, w, BadRequest("failed to upload "+field))
		return
	}

	oldKey := previousKey(video)

	updated, err := persist(ctx, video, asset)
	if err != nil {
		h.Media.Cleanup(ctx, asset.Key)
		respondError(ctx, w, err)
		return
	}

	if oldKey != "" {
		h.Media.Cleanup(ctx, oldKey)
	}

	respondData(ctx, w, http.StatusOK, updated, field+" updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoId}. Both remote objects are
// always attempted before the record goes; a failed remote deletion is
// logged and never blocks the other deletion or the record removal.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	video, apiErr := h.ownedVideo(r)
	if apiErr != nil {
		respondError(ctx, w, apiErr)
		return
	}

	mediaKey := video.MediaKey
	if mediaKey == "" {
		mediaKey = media.KeyFromURL(video.MediaURL)
	}
	thumbKey := video.ThumbnailKey
	if thumbKey == "" {
		thumbKey = media.KeyFromURL(video.ThumbnailURL)
	}

	h.Media.Cleanup(ctx, mediaKey, thumbKey)

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		logging.FromContext(ctx).Error("delete video", "videoId", video.ID, "error", err)
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, struct{}{}, "video deleted successfully")
}

// TogglePublish handles PATCH /api/v1/videos/{videoId}/publish.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	video, apiErr := h.ownedVideo(r)
	if apiErr != nil {
		respondError(ctx, w, apiErr)
		return
	}

	updated, err := h.Videos.SetPublished(ctx, video.ID, !video.Published)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	message := "video unpublished"
	if updated.Published {
		message = "video published"
	}
	respondData(ctx, w, http.StatusOK, updated, message)
}

// ownedVideo loads the path video and verifies the requester owns it.
func (h VideoHandler) ownedVideo(r *http.Request) (models.VideoWithOwner, *APIError) {
	ctx := r.Context()

	user, ok := CurrentUser(ctx)
	if !ok {
		return models.VideoWithOwner{}, Unauthorized("authentication required")
	}

	id := r.PathValue("videoId")
	if id == "" {
		return models.VideoWithOwner{}, BadRequest("video id is required")
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.VideoWithOwner{}, NotFound("video not found")
		}
		return models.VideoWithOwner{}, Internal("unable to load video")
	}

	if video.OwnerID != user.ID {
		return models.VideoWithOwner{}, Forbidden("only the owner may modify this video")
	}

	return video, nil
}

type videoListResponse struct {
	Videos      []models.Video `json:"videos"`
	Page        int            `json:"page"`
	TotalPages  int64          `json:"totalPages"`
	TotalVideos int64          `json:"totalVideos"`
}

type updateVideoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
