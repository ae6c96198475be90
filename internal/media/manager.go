package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
)

// ObjectStore is the remote storage capability the manager consumes.
type ObjectStore interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
	Remove(ctx context.Context, key string) error
}

// DurationProber derives the playable duration of a local media file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
	".avi":  {},
	".m4v":  {},
}

// Manager uploads locally staged files to remote storage and cleans up
// remote objects that records no longer reference.
type Manager struct {
	store  ObjectStore
	prober DurationProber
	logger *slog.Logger
}

// NewManager constructs a media manager.
func NewManager(store ObjectStore, prober DurationProber, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, prober: prober, logger: logger}
}

// Upload stores a locally staged file remotely and returns its URL, storage
// key and (for video files) probed duration. The staged file is removed on
// success and failure alike; it is a temporary artifact that must not leak.
func (m *Manager) Upload(ctx context.Context, localPath string) (models.MediaAsset, error) {
	ctx, span := logging.StartSpan(ctx, "media.upload")
	defer span.End()

	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("remove staged upload", "path", localPath, "error", err)
		}
	}()

	if m.store == nil {
		return models.MediaAsset{}, fmt.Errorf("media upload: object store unavailable")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("open staged upload: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(path.Ext(localPath))
	key := uuid.NewString() + ext

	var duration float64
	if _, isVideo := videoExtensions[ext]; isVideo && m.prober != nil {
		duration, err = m.prober.Duration(ctx, localPath)
		if err != nil {
			m.logger.Warn("probe media duration", "path", localPath, "error", err)
			duration = 0
		}
	}

	url, err := m.store.Save(ctx, key, f)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("upload media: %w", err)
	}

	return models.MediaAsset{URL: url, Key: key, Duration: duration}, nil
}

// Cleanup requests remote deletion for every non-empty key. Failures are
// logged and never abort the remaining deletions: the owning record's
// consistency is worth more than a leaked remote object.
func (m *Manager) Cleanup(ctx context.Context, keys ...string) {
	if m.store == nil {
		return
	}
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if err := m.store.Remove(ctx, key); err != nil {
			m.logger.Error("delete remote media object", "key", key, "error", err)
		}
	}
}

// KeyFromURL recovers a storage identifier from a stored URL by taking the
// last path segment and stripping its extension. Only used for rows written
// before storage keys were persisted alongside URLs.
func KeyFromURL(url string) string {
	if url == "" {
		return ""
	}
	segment := url
	if idx := strings.LastIndex(segment, "/"); idx >= 0 {
		segment = segment[idx+1:]
	}
	if idx := strings.Index(segment, "."); idx >= 0 {
		segment = segment[:idx]
	}
	return segment
}
