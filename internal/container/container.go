package container

import (
	"context"
	"fmt"

	"carpics/fetcher/internal/client"
	"carpics/fetcher/internal/config"
	"carpics/fetcher/internal/exterior"
	"carpics/fetcher/internal/plan"
	"carpics/fetcher/internal/proxy"
	"carpics/fetcher/internal/queue"
	"carpics/fetcher/internal/repository"
	"carpics/fetcher/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config     *config.Config
	Exteriors  *exterior.Source
	Fetcher    client.Fetcher
	Repository repository.DownloadRepository
	Queue      queue.Queue

	Service *service.Service

	db *pgxpool.Pool
}

// New wires every component. Redis and Postgres are only contacted when enabled.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		Config:    cfg,
		Exteriors: exterior.NewSource(cfg.Exteriors.File),
	}

	var recorder client.Recorder
	if cfg.Database.Enabled {
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		c.db = db

		repo := repository.NewDownloadRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			c.Close()
			return nil, err
		}
		c.Repository = repo
		recorder = repo
		log.Info("✅ Connected to fetch history database")
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			rdb.Close()
			c.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")

		q, err := queue.NewRedisQueue(ctx, rdb, cfg.Redis)
		if err != nil {
			rdb.Close()
			c.Close()
			return nil, err
		}
		c.Queue = q
	}

	proxySupplier := proxy.NewLazySupplier(ctx, cfg.Fetcher.Proxies, cfg.Fetcher.ProxyTestURL)
	c.Fetcher = client.NewFetcher(cfg.Fetcher, proxySupplier, recorder)

	c.Service = service.NewService(plan.NewBuilder(c.Exteriors), c.Fetcher, c.Queue, cfg.Redis.MinIdleTime)

	return c, nil
}

// Close releases network resources
func (c *Container) Close() error {
	if c.Fetcher != nil {
		if err := c.Fetcher.Close(); err != nil {
			log.Warnf("⚠️ Failed to close fetcher: %v", err)
		}
	}
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			log.Warnf("⚠️ Failed to close Redis: %v", err)
		}
	}
	if c.db != nil {
		c.db.Close()
	}
	return nil
}
