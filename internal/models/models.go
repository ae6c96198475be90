package models

import "time"

// User represents a registered account and channel identity.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	Password      string    `json:"-"`
	AvatarURL     string    `json:"avatar"`
	AvatarKey     string    `json:"-"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	CoverImageKey string    `json:"-"`
	RefreshToken  string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Subscription is an edge between a subscriber and the channel they follow.
// Existence of the row is the entire state; there is no status column.
type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriber"`
	ChannelID    string    `json:"channel"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Video is a published piece of content owned by a user. Media and thumbnail
// references stay non-empty for as long as the record exists.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Duration     float64   `json:"duration"`
	Views        int64     `json:"views"`
	MediaURL     string    `json:"videoFile"`
	MediaKey     string    `json:"-"`
	ThumbnailURL string    `json:"thumbnail"`
	ThumbnailKey string    `json:"-"`
	OwnerID      string    `json:"owner"`
	Published    bool      `json:"isPublished"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// VideoOwner carries the public owner fields returned alongside a video.
type VideoOwner struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar"`
}

// VideoWithOwner pairs a video with its owner's public profile fields.
type VideoWithOwner struct {
	Video
	Owner VideoOwner `json:"ownerDetails"`
}

// ChannelProfile aggregates a user's public identity with subscription counts.
type ChannelProfile struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"fullName"`
	AvatarURL       string `json:"avatar"`
	CoverImageURL   string `json:"coverImage,omitempty"`
	SubscriberCount int64  `json:"subscribersCount"`
	SubscribedTo    int64  `json:"channelsSubscribedToCount"`
	IsSubscribed    bool   `json:"isSubscribed"`
}

// TokenPair groups the bearer credentials issued to authenticated users.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// MediaAsset describes an object stored with the external media provider.
// The storage key is captured at upload time so deletions never have to be
// reverse-engineered from the URL.
type MediaAsset struct {
	URL      string
	Key      string
	Duration float64
}
