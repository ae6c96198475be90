package repositories

import (
	"context"

	"github.com/clipstream/backend/internal/models"
)

// SubscriptionRepository defines the data access contract for the
// subscriber-to-channel edge table.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub models.Subscription) error
	Delete(ctx context.Context, subscriberID, channelID string) error
	Exists(ctx context.Context, subscriberID, channelID string) (bool, error)
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscribedChannels(ctx context.Context, subscriberID string) (int64, error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.VideoOwner, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string) ([]models.VideoOwner, error)
}
