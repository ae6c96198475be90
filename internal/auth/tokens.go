package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/models"
)

var (
	// ErrInvalidToken indicates a token that is missing, malformed, expired,
	// or references a user that no longer exists.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrTokenMismatch indicates a refresh token that verifies
	// cryptographically but has been rotated out or revoked server-side.
	ErrTokenMismatch = errors.New("refresh token is expired or already used")
)

// UserTokenStore is the persistence contract the token manager needs. The
// refresh token is a single nullable column on the user row, and rotation is
// a conditional swap so a superseded token can never win a race.
type UserTokenStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, current, next string) error
	ClearRefreshToken(ctx context.Context, id string) error
}

// AccessClaims carry the identity embedded in short-lived access tokens.
type AccessClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the user identifier; everything else is resolved
// server-side against the stored value.
type RefreshClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Manager issues, verifies, rotates and revokes paired access/refresh tokens.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	users UserTokenStore

	// NowFunc allows tests to control token timestamps.
	NowFunc func() time.Time
}

// NewManager constructs a Manager signing tokens with the provided secrets and TTLs.
func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, users UserTokenStore) *Manager {
	if users == nil {
		panic("auth: user token store must not be nil")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		users:         users,
	}
}

func (m *Manager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now().UTC()
}

// Issue creates a new token pair for the user and persists the refresh token
// on the user record, overwriting any prior value. Overwriting implicitly
// revokes every previously issued refresh token for that user.
func (m *Manager) Issue(ctx context.Context, userID string) (models.TokenPair, error) {
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("load user for token issue: %w", err)
	}

	pair, err := m.mint(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := m.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return pair, nil
}

func (m *Manager) mint(user models.User) (models.TokenPair, error) {
	now := m.now()
	accessExpiry := now.Add(m.accessTTL)
	refreshExpiry := now.Add(m.refreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
		},
	})
	accessToken, err := access.SignedString(m.accessSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	})
	refreshToken, err := refresh.SignedString(m.refreshSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Authenticate verifies an access token and resolves the embedded identity.
// Read-only: no session state changes.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	if accessToken == "" {
		return models.User{}, ErrInvalidToken
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return m.accessSecret, nil
	})
	if err != nil || !token.Valid {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := m.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: user lookup failed", ErrInvalidToken)
	}

	return user, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// verify AND byte-for-byte match the value stored on the user record: a prior
// valid-looking token that has since been superseded is rejected even though
// its signature checks out. Rotation is a single conditional update, so two
// racing refreshes on the same user cannot both succeed.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	if refreshToken == "" {
		return models.TokenPair{}, ErrInvalidToken
	}

	claims := &RefreshClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return m.refreshSecret, nil
	})
	if err != nil || !token.Valid {
		return models.TokenPair{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := m.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: user lookup failed", ErrInvalidToken)
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return models.TokenPair{}, ErrTokenMismatch
	}

	pair, err := m.mint(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := m.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %v", ErrTokenMismatch, err)
	}

	return pair, nil
}

// Revoke clears the stored refresh token for the user. Idempotent.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if err := m.users.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
