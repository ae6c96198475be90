package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// SubscriptionHandler implements the subscription endpoints.
type SubscriptionHandler struct {
	Users         UserStore
	Subscriptions SubscriptionStore
	NowFunc       func() time.Time
}

// Toggle handles POST /api/v1/subscriptions/{channelId}/toggle. Subscribing
// while already subscribed removes the subscription, otherwise it creates
// one. Subscribing to your own channel is rejected.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
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

	channelID := r.PathValue("channelId")
	if channelID == "" {
		respondError(ctx, w, BadRequest("channel id is required"))
		return
	}

	if channelID == user.ID {
		respondError(ctx, w, BadRequest("cannot subscribe to your own channel"))
		return
	}

	if _, err := h.Users.FindByID(ctx, channelID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, NotFound("channel does not exist"))
			return
		}
		logger.Error("channel lookup failed", "channelId", channelID, "error", err)
		respondError(ctx, w, err)
		return
	}

	subscribed, err := h.Subscriptions.Exists(ctx, user.ID, channelID)
	if err != nil {
		logger.Error("subscription lookup failed", "channelId", channelID, "error", err)
		respondError(ctx, w, err)
		return
	}

	if subscribed {
		if err := h.Subscriptions.Delete(ctx, user.ID, channelID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("unsubscribe failed", "channelId", channelID, "error", err)
			respondError(ctx, w, err)
			return
		}
		respondData(ctx, w, http.StatusOK, toggleResponse{IsSubscribed: false}, "unsubscribed successfully")
		return
	}

	sub := models.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: user.ID,
		ChannelID:    channelID,
		CreatedAt:    h.now(),
	}
	if err := h.Subscriptions.Create(ctx, sub); err != nil && !errors.Is(err, repositories.ErrConflict) {
		logger.Error("subscribe failed", "channelId", channelID, "error", err)
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, toggleResponse{IsSubscribed: true}, "subscribed successfully")
}

// ListSubscribers handles GET /api/v1/subscriptions/{channelId}/subscribers.
func (h SubscriptionHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	channelID := r.PathValue("channelId")
	if channelID == "" {
		respondError(ctx, w, BadRequest("channel id is required"))
		return
	}

	subscribers, err := h.Subscriptions.ListSubscribers(ctx, channelID)
	if err != nil {
		logging.FromContext(ctx).Error("list subscribers", "channelId", channelID, "error", err)
		respondError(ctx, w, err)
		return
	}

	if subscribers == nil {
		subscribers = []models.VideoOwner{}
	}
	respondData(ctx, w, http.StatusOK, subscribers, "subscribers fetched successfully")
}

// ListSubscribedChannels handles GET /api/v1/subscriptions/{subscriberId}/channels.
// Returns the channels the given user subscribes to.
func (h SubscriptionHandler) ListSubscribedChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	subscriberID := r.PathValue("subscriberId")
	if subscriberID == "" {
		respondError(ctx, w, BadRequest("subscriber id is required"))
		return
	}

	channels, err := h.Subscriptions.ListSubscribedChannels(ctx, subscriberID)
	if err != nil {
		logging.FromContext(ctx).Error("list subscribed channels", "subscriberId", subscriberID, "error", err)
		respondError(ctx, w, err)
		return
	}

	if channels == nil {
		channels = []models.VideoOwner{}
	}
	respondData(ctx, w, http.StatusOK, channels, "subscribed channels fetched successfully")
}

type toggleResponse struct {
	IsSubscribed bool `json:"isSubscribed"`
}

func (h SubscriptionHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
