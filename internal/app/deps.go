package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/videshare/backend/internal/auth"
	"github.com/videshare/backend/internal/config"
	"github.com/videshare/backend/internal/db"
	"github.com/videshare/backend/internal/engagement"
	"github.com/videshare/backend/internal/feed"
	"github.com/videshare/backend/internal/handlers"
	"github.com/videshare/backend/internal/middleware"
	"github.com/videshare/backend/internal/repositories"
	"github.com/videshare/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	if cfg.SessionSecret == "" {
		return handlers.Dependencies{}, errors.New("session secret is not configured")
	}

	signer, err := storage.NewBlobSigner(ctx, cfg.ObjectStore, cfg.PlayableURLTTL, cfg.UploadURLTTL)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure blob signer: %w", err)
	}

	videoRepo := repositories.NewPostgresVideoRepository(pool)

	return handlers.Dependencies{
		Users:      repositories.NewPostgresUserRepository(pool),
		Tokens:     auth.NewIssuer(cfg.SessionSecret, cfg.SessionTTL),
		Feed:       feed.NewAssembler(videoRepo, signer),
		Engagement: engagement.NewCoordinator(videoRepo),
		Videos:     videoRepo,
		Signer:     signer,
		Limiter:    middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
	}, nil
}
