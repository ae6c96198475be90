package repositories

import (
	"context"

	"github.com/clipstream/backend/internal/models"
)

// Allowed sort columns for video listings. Sort input is matched against
// this set rather than passed through to the query.
const (
	SortByCreatedAt = "createdAt"
	SortByTitle     = "title"
	SortByDuration  = "duration"
	SortByViews     = "views"
)

// ListVideosParams captures pagination, filtering and ordering for listings.
type ListVideosParams struct {
	Page      int
	Limit     int
	Query     string
	OwnerID   string
	SortBy    string
	Ascending bool
}

// VideoRepository defines the data access contract for videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.VideoWithOwner, error)
	List(ctx context.Context, params ListVideosParams) ([]models.Video, int64, error)
	UpdateDetails(ctx context.Context, id, title, description string) (models.Video, error)
	SetThumbnail(ctx context.Context, id, url, key string) (models.Video, error)
	SetMedia(ctx context.Context, id, url, key string, duration float64) (models.Video, error)
	SetPublished(ctx context.Context, id string, published bool) (models.Video, error)
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
