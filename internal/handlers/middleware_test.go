package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
)

func TestRequireAuthAcceptsBearerAndCookie(t *testing.T) {
	user := models.User{ID: "user-1", Username: "alice"}
	store := newFakeUserStore(user)
	sessions := auth.NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, store)

	pair, err := sessions.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	var resolved models.User
	protected := RequireAuth(sessions)(func(w http.ResponseWriter, r *http.Request) {
		resolved, _ = CurrentUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	protected(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected bearer auth to pass, got %d", rec.Code)
	}
	if resolved.ID != "user-1" {
		t.Fatalf("expected user on context, got %+v", resolved)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: pair.AccessToken})
	rec = httptest.NewRecorder()
	protected(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected cookie auth to pass, got %d", rec.Code)
	}
}

func TestRequireAuthRejectsMissingOrBadToken(t *testing.T) {
	store := newFakeUserStore()
	sessions := auth.NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, store)

	protected := RequireAuth(sessions)(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without authentication")
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestOptionalAuthPassesAnonymous(t *testing.T) {
	store := newFakeUserStore()
	sessions := auth.NewManager("access-secret", "refresh-secret", time.Minute, time.Hour, store)

	handler := OptionalAuth(sessions)(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); ok {
			t.Fatal("expected no user for anonymous request")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous request to pass, got %d", rec.Code)
	}
}
