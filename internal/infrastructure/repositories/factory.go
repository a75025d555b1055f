package repositories

import (
	"context"

	"streamlytics/internal/core/ports"
	"streamlytics/internal/infrastructure/repositories/memory"
	redisrepo "streamlytics/internal/infrastructure/repositories/redis"
	"streamlytics/internal/infrastructure/repositories/sqlite"
	"streamlytics/pkg/config"
	"streamlytics/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory wires the event store and counter cache, falling back to the
// in-memory cache when Redis is unreachable (degraded mode).
type Factory struct {
	useRedis    bool
	redisClient *redis.Client
	eventStore  *sqlite.EventRepository
	logger      *zap.SugaredLogger
}

func NewFactory(cfg *config.Config, logger *zap.SugaredLogger) (*Factory, error) {
	factory := &Factory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	store, err := sqlite.NewEventRepository(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	factory.eventStore = store

	if cfg.Redis.Enabled {
		// Transient startup failures are worth a few retries; a dead Redis
		// is not fatal, ingestion degrades to the synchronous path.
		var client *redis.Client
		err := retry.Retry(context.Background(), retry.DefaultConfig(), func() error {
			var connErr error
			client, connErr = redisrepo.NewRedisClient(
				cfg.Redis.Address,
				cfg.Redis.Password,
				cfg.Redis.DB,
				cfg.Redis.PoolSize,
				logger,
			)
			return connErr
		})
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to in-memory counter cache",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis counter cache")
		}
	}

	if !factory.useRedis {
		logger.Info("using in-memory counter cache")
	}

	return factory, nil
}

// CreateEventRepository returns the durable SQLite event store.
func (f *Factory) CreateEventRepository() ports.EventRepository {
	return f.eventStore
}

// CreateCounterCache returns the Redis counter cache, or the in-memory
// fallback when Redis is unavailable.
func (f *Factory) CreateCounterCache() ports.CounterCache {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisCounterCache(f.redisClient)
	}
	return memory.NewMemoryCounterCache()
}

// CacheAvailable reports whether the real counter cache is in use. The
// ingestion endpoint uses this to pick queued vs synchronous processing.
func (f *Factory) CacheAvailable() bool {
	return f.useRedis && f.redisClient != nil
}

// Close releases the Redis connection and the event store.
func (f *Factory) Close() error {
	if f.redisClient != nil {
		if err := redisrepo.CloseRedisClient(f.redisClient); err != nil {
			return err
		}
	}
	if f.eventStore != nil {
		return f.eventStore.Close()
	}
	return nil
}

// HealthCheck verifies store and cache reachability.
func (f *Factory) HealthCheck(ctx context.Context) error {
	if err := f.eventStore.Ping(ctx); err != nil {
		return err
	}
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
