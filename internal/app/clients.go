package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/clients/redis"
	"github.com/yungbote/capacity-checker/internal/clients/upstream"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

type Clients struct {
	Redis *goredis.Client
	// FastStore is Redis when configured and process memory otherwise.
	FastStore cache.Store
	Shards    *cache.ShardStore
	// Upstream is nil when the register is not configured.
	Upstream upstream.Client
}

func wireClients(ctx context.Context, log *logger.Logger, metrics *observability.Metrics, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Redis
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
		c.FastStore = cache.NewRedisStore(rdb)
	} else {
		log.Warn("REDIS_ADDR not set, fast tier is process memory")
		c.FastStore = cache.NewMemoryStore()
	}

	// Shards
	shards, err := cache.NewShardStore(cfg.ShardDir)
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init shard store: %w", err)
	}
	c.Shards = shards

	// Upstream register
	if cfg.UpstreamConfigured() {
		up, err := upstream.NewClient(log, metrics, cfg.Upstream)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init upstream client: %w", err)
		}
		c.Upstream = up
	} else {
		log.Warn("upstream register not configured, lookups use cache and database tiers only")
	}
	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// SharedFastStore reports whether the fast store outlives this process and is seen by
// other processes.
func (c *Clients) SharedFastStore() bool { return c != nil && c.Redis != nil }

type redisPinger struct{ rdb *goredis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }
