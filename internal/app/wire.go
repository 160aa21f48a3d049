package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/hedgecore/internal/blob/s3"
	"github.com/alanyoungcy/hedgecore/internal/cache/redis"
	"github.com/alanyoungcy/hedgecore/internal/config"
	"github.com/alanyoungcy/hedgecore/internal/domain"
	"github.com/alanyoungcy/hedgecore/internal/marketdata"
	"github.com/alanyoungcy/hedgecore/internal/notify"
	"github.com/alanyoungcy/hedgecore/internal/service"
	"github.com/alanyoungcy/hedgecore/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	PositionStore domain.PositionStore
	SnapshotStore domain.SnapshotStore
	MetricsStore  domain.MetricsStore

	// PriceCache is nil when Redis is disabled; the services degrade to
	// stored PnL values.
	PriceCache domain.PriceCache
	Provider   domain.PriceProvider

	Positions *service.PositionService
	Portfolio *service.PortfolioService
	Tracker   *service.Tracker

	// Archiver is nil unless S3 is enabled.
	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	positionStore, err := postgres.NewPositionStore(ctx, pool)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: position store: %w", err)
	}
	snapshotStore, err := postgres.NewSnapshotStore(ctx, pool)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: snapshot store: %w", err)
	}
	metricsStore, err := postgres.NewMetricsStore(ctx, pool)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: metrics store: %w", err)
	}
	deps.PositionStore = positionStore
	deps.SnapshotStore = snapshotStore
	deps.MetricsStore = metricsStore

	// --- Redis price cache ---
	if cfg.Redis.Enabled {
		priceCache, err := redis.NewPriceCache(ctx, redis.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			PriceTTL:   time.Duration(cfg.Redis.PriceTTLSec) * time.Second,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = priceCache.Close() })
		deps.PriceCache = priceCache
	}

	// --- Market data provider ---
	deps.Provider = marketdata.NewClient(
		cfg.MarketData.BaseURL,
		time.Duration(cfg.MarketData.TimeoutSec)*time.Second,
		time.Duration(cfg.MarketData.MemoTTLSec)*time.Second,
	)

	// --- S3 snapshot archival ---
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
		deps.Archiver = s3blob.NewArchiver(s3Client, snapshotStore, cfg.S3.ArchiveBatchSize, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	deps.Positions = service.NewPositionService(positionStore, logger)
	deps.Portfolio = service.NewPortfolioService(
		snapshotStore,
		metricsStore,
		positionStore,
		deps.PriceCache,
		time.Duration(cfg.Snapshot.MinIntervalSec)*time.Second,
		logger,
	)
	deps.Tracker = service.NewTracker(
		positionStore,
		deps.Provider,
		deps.PriceCache,
		deps.Notifier,
		service.TrackerConfig{
			TickInterval:  time.Duration(cfg.Tracker.TickIntervalSec) * time.Second,
			FetchTimeout:  time.Duration(cfg.Tracker.FetchTimeoutSec) * time.Second,
			MaxConcurrent: cfg.Tracker.MaxConcurrent,
		},
		logger,
	)

	return deps, cleanup, nil
}
