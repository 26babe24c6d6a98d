package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/quantfall/backtester/internal/blob/s3"
	"github.com/quantfall/backtester/internal/cache/redis"
	"github.com/quantfall/backtester/internal/config"
	"github.com/quantfall/backtester/internal/domain"
	"github.com/quantfall/backtester/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. Fields stay nil when the corresponding backend is disabled in the
// configuration; the modes check before use. It is constructed by Wire and
// torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	BarStore   domain.BarStore
	RunStore   domain.RunStore
	AuditStore domain.AuditStore

	// Caches
	SeriesCache domain.SeriesCache

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.BarStore = postgres.NewBarStore(pool)
		deps.RunStore = postgres.NewRunStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)

		logger.InfoContext(ctx, "postgres connected",
			slog.String("host", cfg.Postgres.Host),
			slog.String("database", cfg.Postgres.Database),
		)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SeriesCache = redis.NewSeriesCache(redisClient)

		logger.InfoContext(ctx, "redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewRunArchiver(deps.BlobWriter)

		logger.InfoContext(ctx, "s3 connected", slog.String("bucket", cfg.S3.Bucket))
	}

	return deps, cleanup, nil
}
