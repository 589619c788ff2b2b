package app

import (
	"time"

	"github.com/yungbote/capacity-checker/internal/clients/redis"
	"github.com/yungbote/capacity-checker/internal/clients/upstream"
	"github.com/yungbote/capacity-checker/internal/data/db"
	"github.com/yungbote/capacity-checker/internal/jobs/ingest"
	"github.com/yungbote/capacity-checker/internal/pkg/envutil"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
	"github.com/yungbote/capacity-checker/internal/search/companyindex"
	"github.com/yungbote/capacity-checker/internal/search/fuzzy"
	"github.com/yungbote/capacity-checker/internal/search/location"
	"github.com/yungbote/capacity-checker/internal/search/orchestrator"
)

const (
	defaultUnitCacheTTL = time.Hour
	defaultShardDir     = "data/shards"
)

type Config struct {
	LogMode  string
	HTTPAddr string

	DatabaseDSN string
	Redis       redis.Config
	ShardDir    string

	Upstream upstream.Config

	FuzzyCutoff          float64
	FuzzyLimit           int
	GenericAreaThreshold int
	LocationLookupCap    int

	QueryCacheTTL time.Duration
	UnitCacheTTL  time.Duration
	IndexTTL      time.Duration

	RebuildBatchSize int
	CrawlPageSize    int
	CrawlConcurrency int

	CORSOrigins  []string
	AdminEnabled bool

	OtelServiceName string
	Environment     string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:  envLogMode(),
		HTTPAddr: envutil.String("HTTP_ADDR", ":8080"),

		DatabaseDSN: db.DSNFromEnv(),
		Redis: redis.Config{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
		},
		ShardDir: envutil.String("SHARD_DIR", defaultShardDir),

		Upstream: upstream.Config{
			BaseURL:              envutil.String("UPSTREAM_BASE_URL", ""),
			UnitsResourceID:      envutil.String("UPSTREAM_UNITS_RESOURCE_ID", ""),
			ComponentsResourceID: envutil.String("UPSTREAM_COMPONENTS_RESOURCE_ID", ""),
			APIKey:               envutil.String("UPSTREAM_API_KEY", ""),
			Timeout:              envutil.Duration("UPSTREAM_TIMEOUT", 30*time.Second),
		},

		FuzzyCutoff:          envutil.Float("FUZZY_CUTOFF", fuzzy.DefaultCutoff),
		FuzzyLimit:           envutil.Int("FUZZY_LIMIT", fuzzy.DefaultLimit),
		GenericAreaThreshold: envutil.Int("GENERIC_AREA_THRESHOLD", location.DefaultGenericAreaThreshold),
		LocationLookupCap:    envutil.Int("LOCATION_LOOKUP_CAP", location.DefaultLookupCap),

		QueryCacheTTL: envutil.Duration("QUERY_CACHE_TTL", orchestrator.DefaultQueryCacheTTL),
		UnitCacheTTL:  envutil.Duration("UNIT_CACHE_TTL", defaultUnitCacheTTL),
		IndexTTL:      envutil.Duration("INDEX_TTL", companyindex.DefaultTTL),

		RebuildBatchSize: envutil.Int("REBUILD_BATCH_SIZE", location.DefaultBatchSize),
		CrawlPageSize:    envutil.Int("CRAWL_PAGE_SIZE", ingest.DefaultCrawlPageSize),
		CrawlConcurrency: envutil.Int("CRAWL_CONCURRENCY", ingest.DefaultCrawlConcurrency),

		CORSOrigins:  envutil.CSV("CORS_ALLOWED_ORIGINS", nil),
		AdminEnabled: envutil.Bool("ADMIN_API_ENABLED", true),

		OtelServiceName: envutil.String("OTEL_SERVICE_NAME", "capacity-checker"),
		Environment:     envutil.String("APP_ENV", "development"),
	}
	if cfg.FuzzyCutoff < 0 || cfg.FuzzyCutoff > 100 {
		log.Warn("FUZZY_CUTOFF out of range, using default", "value", cfg.FuzzyCutoff)
		cfg.FuzzyCutoff = fuzzy.DefaultCutoff
	}
	if cfg.GenericAreaThreshold < 1 {
		log.Warn("GENERIC_AREA_THRESHOLD must be positive, using default", "value", cfg.GenericAreaThreshold)
		cfg.GenericAreaThreshold = location.DefaultGenericAreaThreshold
	}
	return cfg
}

// UpstreamConfigured reports whether the register client can be built.
func (c Config) UpstreamConfigured() bool {
	return c.Upstream.BaseURL != "" && c.Upstream.UnitsResourceID != "" && c.Upstream.ComponentsResourceID != ""
}

func envLogMode() string {
	return envutil.String("LOG_MODE", "development")
}
