package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
)

func newSessionManager(store *fakeUserStore) *auth.Manager {
	return auth.NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, store)
}

func TestAuthHandlerRegister(t *testing.T) {
	store := newFakeUserStore()
	media := &fakeMediaManager{}
	handler := AuthHandler{Users: store, Sessions: newSessionManager(store), Media: media}

	body, contentType := multipartBody(t, map[string]string{
		"username": "Alice",
		"email":    "alice@example.com",
		"fullName": "Alice Example",
		"password": "supersafe1",
	}, map[string]string{
		"avatar": "avatar.png",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	stored, err := store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("supersafe1")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if stored.AvatarKey == "" || stored.AvatarURL == "" {
		t.Fatalf("expected avatar reference to be stored, got %+v", stored)
	}
	if media.uploads != 1 {
		t.Fatalf("expected exactly one upload, got %d", media.uploads)
	}
}

func TestAuthHandlerRegisterValidation(t *testing.T) {
	store := newFakeUserStore(models.User{ID: "user-1", Username: "taken", Email: "taken@example.com"})
	media := &fakeMediaManager{}
	handler := AuthHandler{Users: store, Sessions: newSessionManager(store), Media: media}

	cases := []struct {
		name   string
		fields map[string]string
		files  map[string]string
	}{
		{
			name: "duplicate username",
			fields: map[string]string{
				"username": "taken", "email": "new@example.com",
				"fullName": "New User", "password": "supersafe1",
			},
			files: map[string]string{"avatar": "avatar.png"},
		},
		{
			name: "missing avatar",
			fields: map[string]string{
				"username": "fresh", "email": "fresh@example.com",
				"fullName": "Fresh User", "password": "supersafe1",
			},
		},
		{
			name: "short password",
			fields: map[string]string{
				"username": "fresh", "email": "fresh@example.com",
				"fullName": "Fresh User", "password": "short",
			},
			files: map[string]string{"avatar": "avatar.png"},
		},
		{
			name: "invalid email",
			fields: map[string]string{
				"username": "fresh", "email": "not-an-email",
				"fullName": "Fresh User", "password": "supersafe1",
			},
			files: map[string]string{"avatar": "avatar.png"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.fields, tc.files)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			handler.Register(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400 got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	store := newFakeUserStore(models.User{
		ID: "user-1", Username: "alice", Email: "alice@example.com", Password: string(hashed),
	})
	handler := AuthHandler{Users: store, Sessions: newSessionManager(store)}

	body, err := json.Marshal(loginRequest{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var names []string
	for _, cookie := range rec.Result().Cookies() {
		names = append(names, cookie.Name)
		if !cookie.HttpOnly {
			t.Fatalf("expected cookie %s to be HttpOnly", cookie.Name)
		}
	}
	if len(names) != 2 {
		t.Fatalf("expected both auth cookies, got %v", names)
	}

	if store.users["user-1"].RefreshToken == "" {
		t.Fatal("expected refresh token to be persisted on login")
	}
}

func TestAuthHandlerLoginRejectsBadCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store := newFakeUserStore(models.User{
		ID: "user-1", Username: "alice", Email: "alice@example.com", Password: string(hashed),
	})
	handler := AuthHandler{Users: store, Sessions: newSessionManager(store)}

	body, _ := json.Marshal(loginRequest{Username: "alice", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}

	body, _ = json.Marshal(loginRequest{Username: "nobody", Password: "password123"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	handler.Login(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestAuthHandlerRefreshRotatesAndRejectsReplay(t *testing.T) {
	store := newFakeUserStore(models.User{ID: "user-1", Username: "alice", Email: "alice@example.com"})
	sessions := newSessionManager(store)
	handler := AuthHandler{Users: store, Sessions: sessions}

	tokens, err := sessions.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	body, _ := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	envelope := decodeEnvelope(t, rec)
	data, _ := envelope["data"].(map[string]any)
	rotated, _ := data["refreshToken"].(string)
	if rotated == "" || rotated == tokens.RefreshToken {
		t.Fatal("expected a new refresh token to be issued")
	}

	// The superseded token must be rejected on replay.
	body, _ = json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", bytes.NewReader(body))
	rec = httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 replaying rotated token, got %d", rec.Code)
	}
}

func TestAuthHandlerRefreshReadsCookie(t *testing.T) {
	store := newFakeUserStore(models.User{ID: "user-1", Username: "alice", Email: "alice@example.com"})
	sessions := newSessionManager(store)
	handler := AuthHandler{Users: store, Sessions: sessions}

	tokens, err := sessions.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: tokens.RefreshToken})
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestAuthHandlerLogout(t *testing.T) {
	user := models.User{ID: "user-1", Username: "alice", Email: "alice@example.com"}
	store := newFakeUserStore(user)
	sessions := newSessionManager(store)
	handler := AuthHandler{Users: store, Sessions: sessions}

	if _, err := sessions.Issue(context.Background(), "user-1"); err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil), user)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if store.users["user-1"].RefreshToken != "" {
		t.Fatal("expected refresh token to be revoked")
	}

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge != -1 {
			t.Fatalf("expected cookie %s to be expired, got MaxAge %d", cookie.Name, cookie.MaxAge)
		}
	}
}
