package handlers

import (
	"context"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	UpdateAccount(ctx context.Context, id, fullName, email, username string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetAvatar(ctx context.Context, id, url, key string) (models.User, error)
	SetCoverImage(ctx context.Context, id, url, key string) (models.User, error)
}

// SessionManager issues, verifies, rotates and revokes token pairs.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
}

// SubscriptionStore captures operations required by the subscription handlers.
type SubscriptionStore interface {
	Create(ctx context.Context, sub models.Subscription) error
	Delete(ctx context.Context, subscriberID, channelID string) error
	Exists(ctx context.Context, subscriberID, channelID string) (bool, error)
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscribedChannels(ctx context.Context, subscriberID string) (int64, error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.VideoOwner, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string) ([]models.VideoOwner, error)
}

// VideoStore captures persistence for video publishing workflows.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.VideoWithOwner, error)
	List(ctx context.Context, params repositories.ListVideosParams) ([]models.Video, int64, error)
	UpdateDetails(ctx context.Context, id, title, description string) (models.Video, error)
	SetThumbnail(ctx context.Context, id, url, key string) (models.Video, error)
	SetMedia(ctx context.Context, id, url, key string, duration float64) (models.Video, error)
	SetPublished(ctx context.Context, id string, published bool) (models.Video, error)
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// MediaManager uploads staged files and cleans up replaced remote objects.
type MediaManager interface {
	Upload(ctx context.Context, localPath string) (models.MediaAsset, error)
	Cleanup(ctx context.Context, keys ...string)
}
