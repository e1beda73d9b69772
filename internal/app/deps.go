package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/config"
	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/feed"
	"github.com/clipstream/backend/internal/handlers"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
	"github.com/clipstream/backend/internal/videos"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup stops the background workers started here.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	users := repositories.NewPostgresUserRepository(pool)
	follows := repositories.NewPostgresFollowRepository(pool)
	videoRepo := repositories.NewPostgresVideoRepository(pool)

	issuer := auth.NewJWTIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	tokens := newTokenManager(pool, issuer, cfg)

	feeds := feed.NewCachedReader(feed.NewService(videoRepo, follows), cfg.FeedCacheTTL)

	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error { return db.Ping(ctx, pool) },
	}

	var assets videos.AssetStorage
	if cfg.ObjectStore.Enabled() {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure object store: %w", err)
		}
		assets = s3Storage
		checks["object_store"] = s3Storage.Ping
	} else {
		disk, err := storage.NewDiskStorage(cfg.AssetDir, cfg.ObjectStore.PublicBaseURL)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure asset directory: %w", err)
		}
		logger.Warn("object store not configured, storing uploads on disk", "dir", cfg.AssetDir)
		assets = disk
	}

	ingestor := videos.NewUploadIngestor(assets, videoRepo, feeds, videos.UploadIngestorConfig{
		QueueSize: cfg.UploadWorkers * 8,
		Workers:   cfg.UploadWorkers,
	}, logger)

	var sweeper *auth.Sweeper
	if cfg.TokenSweepInterval > 0 {
		sweeper = auth.NewSweeper(tokens, cfg.TokenSweepInterval, logger)
		sweeper.Start()
	}

	cleanup := func(ctx context.Context) error {
		var errs []error
		if sweeper != nil {
			errs = append(errs, sweeper.Shutdown(ctx))
		}
		errs = append(errs, ingestor.Shutdown(ctx))
		return errors.Join(errs...)
	}

	deps := handlers.Dependencies{
		Users:          users,
		Tokens:         tokens,
		AccessTokens:   issuer,
		Feeds:          feeds,
		FeedCache:      feeds,
		Videos:         videoRepo,
		Follows:        follows,
		Profiles:       users,
		Hashtags:       repositories.NewPostgresHashtagRepository(pool),
		Uploads:        ingestor,
		AuthLimiter:    middleware.NewKeyedRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, 5*time.Minute),
		HealthChecks:   checks,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	return deps, cleanup, nil
}

func newTokenManager(pool db.Pool, issuer *auth.JWTIssuer, cfg config.Config) *auth.TokenManager {
	return auth.NewTokenManager(
		issuer,
		repositories.NewPostgresRefreshTokenStore(pool),
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)
}
