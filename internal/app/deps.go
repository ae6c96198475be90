package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/config"
	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/handlers"
	"github.com/clipstream/backend/internal/media"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, error) {
	users := repositories.NewPostgresUserRepository(pool)

	store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure object storage: %w", err)
	}

	prober := media.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout)
	mediaManager := media.NewManager(store, prober, logger)

	sessions := auth.NewManager(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		users,
	)

	loginLimiter := middleware.NewIPRateLimiter(cfg.LoginRatePerMinute, time.Minute, cfg.LoginRateBurst, 10*time.Minute)

	return handlers.Dependencies{
		Users:         users,
		Sessions:      sessions,
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Videos:        repositories.NewPostgresVideoRepository(pool),
		Media:         mediaManager,
		LoginLimiter:  loginLimiter,
	}, nil
}
