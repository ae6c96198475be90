package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// AuthHandler implements registration and the session-token lifecycle.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Media    MediaManager
	NowFunc  func() time.Time
}

// Register handles POST /api/v1/users/register. Multipart body: username,
// email, fullName, password fields plus a required avatar file and an
// optional coverImage file.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(ctx, w, BadRequest("invalid multipart body"))
		return
	}

	username := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	fullName := strings.TrimSpace(r.FormValue("fullName"))
	password := r.FormValue("password")

	if username == "" || email == "" || fullName == "" || password == "" {
		respondError(ctx, w, BadRequest("username, email, fullName and password are required"))
		return
	}

	if _, err := mail.ParseAddress(email); err != nil {
		respondError(ctx, w, BadRequest("invalid email address"))
		return
	}

	if len(password) < 8 {
		respondError(ctx, w, BadRequest("password must be at least 8 characters"))
		return
	}

	if _, err := h.Users.FindByUsernameOrEmail(ctx, username, email); err == nil {
		respondError(ctx, w, BadRequest("user with that email or username already exists"))
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("registration lookup failed", "username", username, "error", err)
		respondError(ctx, w, Internal("unable to verify existing accounts"))
		return
	}

	avatarPath, err := stageUploadedFile(r, "avatar")
	if err != nil {
		respondError(ctx, w, BadRequest("could not read avatar upload"))
		return
	}
	if avatarPath == "" {
		respondError(ctx, w, BadRequest("avatar file is required"))
		return
	}

	avatar, err := h.Media.Upload(ctx, avatarPath)
	if err != nil {
		logger.Warn("avatar upload failed", "username", username, "error", err)
		respondError(ctx, w, BadRequest("avatar upload failed"))
		return
	}

	var cover models.MediaAsset
	coverPath, err := stageUploadedFile(r, "coverImage")
	if err != nil {
		respondError(ctx, w, BadRequest("could not read cover image upload"))
		return
	}
	if coverPath != "" {
		cover, err = h.Media.Upload(ctx, coverPath)
		if err != nil {
			logger.Warn("cover image upload failed", "username", username, "error", err)
			respondError(ctx, w, BadRequest("cover image upload failed"))
			return
		}
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondError(ctx, w, Internal("failed to secure password"))
		return
	}

	now := h.now()
	user := models.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		Password:      hashed,
		AvatarURL:     avatar.URL,
		AvatarKey:     avatar.Key,
		CoverImageURL: cover.URL,
		CoverImageKey: cover.Key,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, BadRequest("user with that email or username already exists"))
			return
		}
		logger.Error("create user", "username", username, "error", err)
		respondError(ctx, w, Internal("failed to register user"))
		return
	}

	respondData(ctx, w, http.StatusCreated, user, "user registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, BadRequest("invalid request body"))
		return
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" && req.Email == "" {
		respondError(ctx, w, BadRequest("username or email is required"))
		return
	}

	user, err := h.Users.FindByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, NotFound("user not found"))
			return
		}
		logger.Error("login lookup failed", "username", req.Username, "error", err)
		respondError(ctx, w, Internal("unable to look up user"))
		return
	}

	if !auth.VerifyPassword(user.Password, req.Password) {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, Unauthorized("invalid user credentials"))
		return
	}

	pair, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("issue session tokens", "userId", user.ID, "error", err)
		respondError(ctx, w, Internal("failed to create session"))
		return
	}

	setAuthCookies(w, pair)
	respondData(ctx, w, http.StatusOK, loginResponse{User: user, Tokens: pair}, "user logged in successfully")
}

// Logout handles POST /api/v1/users/logout. Requires authentication.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, Unauthorized("authentication required"))
		return
	}

	if err := h.Sessions.Revoke(ctx, user.ID); err != nil {
		logging.FromContext(ctx).Error("revoke session", "userId", user.ID, "error", err)
		respondError(ctx, w, Internal("failed to log out"))
		return
	}

	clearAuthCookies(w)
	respondData(ctx, w, http.StatusOK, struct{}{}, "user logged out successfully")
}

// Refresh handles POST /api/v1/users/refresh. The refresh token is read from
// the refreshToken cookie or the request body; the stored token rotates on
// every successful exchange.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var incoming string
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		incoming = cookie.Value
	}
	if incoming == "" && r.Body != nil {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			incoming = strings.TrimSpace(req.RefreshToken)
		}
	}

	if incoming == "" {
		respondError(ctx, w, Unauthorized("refresh token is required"))
		return
	}

	pair, err := h.Sessions.Refresh(ctx, incoming)
	if err != nil {
		logging.FromContext(ctx).Warn("refresh rejected", "error", err)
		respondError(ctx, w, Unauthorized(err.Error()))
		return
	}

	setAuthCookies(w, pair)
	respondData(ctx, w, http.StatusOK, pair, "access token refreshed successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User   models.User      `json:"user"`
	Tokens models.TokenPair `json:"tokens"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
