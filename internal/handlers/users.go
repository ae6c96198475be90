package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/media"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// UserHandler implements profile and owned-media endpoints for user accounts.
type UserHandler struct {
	Users         UserStore
	Subscriptions SubscriptionStore
	Media         MediaManager
}

// Me handles GET /api/v1/users/me.
func (h UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, Unauthorized("authentication required"))
		return
	}

	respondData(ctx, w, http.StatusOK, user, "current user fetched successfully")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, Unauthorized("authentication required"))
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, BadRequest("invalid request body"))
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		respondError(ctx, w, BadRequest("old and new passwords are required"))
		return
	}

	if !auth.VerifyPassword(user.Password, req.OldPassword) {
		respondError(ctx, w, Unauthorized("old password is incorrect"))
		return
	}

	if req.OldPassword == req.NewPassword {
		respondError(ctx, w, BadRequest("new password must differ from the old password"))
		return
	}

	if len(req.NewPassword) < 8 {
		respondError(ctx, w, BadRequest("password must be at least 8 characters"))
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondError(ctx, w, Internal("failed to secure password"))
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		logger.Error("update password", "userId", user.ID, "error", err)
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, struct{}{}, "password changed successfully")
}

// UpdateAccount handles PATCH /api/v1/users/me.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, Unauthorized("authentication required"))
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, BadRequest("invalid request body"))
		return
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	if req.Username == "" || req.Email == "" || req.FullName == "" {
		respondError(ctx, w, BadRequest("username, email and fullName are required"))
		return
	}

	if req.Username == user.Username && req.Email == user.Email && req.FullName == user.FullName {
		respondError(ctx, w, BadRequest("no changes detected"))
		return
	}

	updated, err := h.Users.UpdateAccount(ctx, user.ID, req.FullName, req.Email, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, BadRequest("username or email already in use"))
			return
		}
		logging.FromContext(ctx).Error("update account", "userId", user.ID, "error", err)
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, updated, "account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/me/avatar. The new file is
// uploaded first; only after the record points at the new object is the
// previous one deleted, so a cleanup failure can never lose the new avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", func(user models.User) string {
		if user.AvatarKey != "" {
			return user.AvatarKey
		}
		return media.KeyFromURL(user.AvatarURL)
	}, h.Users.SetAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/me/cover.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", func(user models.User) string {
		if user.CoverImageKey != "" {
			return user.CoverImageKey
		}
		return media.KeyFromURL(user.CoverImageURL)
	}, h.Users.SetCoverImage)
}

func (h UserHandler) replaceImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	previousKey func(models.User) string,
	persist func(ctx context.Context, id, url, key string) (models.User, error),
) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, Unauthorized("authentication required"))
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
		logger.Warn("image upload failed", "userId", user.ID, "field", field, "error", err)
		respondError(ctx, w, BadRequest("failed to upload "+field))
		return
	}

	oldKey := previousKey(user)

	updated, err := persist(ctx, user.ID, asset.URL, asset.Key)
	if err != nil {
		logger.Error("persist image reference", "userId", user.ID, "field", field, "error", err)
		respondError(ctx, w, err)
		return
	}

	if oldKey != "" {
		h.Media.Cleanup(ctx, oldKey)
	}

	respondData(ctx, w, http.StatusOK, updated, field+" updated successfully")
}

// ChannelProfile handles GET /api/v1/users/channel/{username}.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	username := strings.ToLower(strings.TrimSpace(r.PathValue("username")))
	if username == "" {
		respondError(ctx, w, BadRequest("username is missing"))
		return
	}

	channel, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, NotFound("channel does not exist"))
			return
		}
		respondError(ctx, w, err)
		return
	}

	subscribers, err := h.Subscriptions.CountSubscribers(ctx, channel.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	subscribedTo, err := h.Subscriptions.CountSubscribedChannels(ctx, channel.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	profile := models.ChannelProfile{
		ID:              channel.ID,
		Username:        channel.Username,
		Email:           channel.Email,
		FullName:        channel.FullName,
		AvatarURL:       channel.AvatarURL,
		CoverImageURL:   channel.CoverImageURL,
		SubscriberCount: subscribers,
		SubscribedTo:    subscribedTo,
	}

	if viewer, ok := CurrentUser(ctx); ok && viewer.ID != channel.ID {
		subscribed, err := h.Subscriptions.Exists(ctx, viewer.ID, channel.ID)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		profile.IsSubscribed = subscribed
	}

	respondData(ctx, w, http.StatusOK, profile, "channel profile fetched successfully")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
