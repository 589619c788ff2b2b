package app

import (
	"fmt"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/jobs/ingest"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
	"github.com/yungbote/capacity-checker/internal/search/companyindex"
	"github.com/yungbote/capacity-checker/internal/search/fuzzy"
	"github.com/yungbote/capacity-checker/internal/search/location"
	"github.com/yungbote/capacity-checker/internal/search/orchestrator"
	"github.com/yungbote/capacity-checker/internal/search/resolver"
	"github.com/yungbote/capacity-checker/internal/services"
)

type Services struct {
	Manager      *cache.Manager
	CompanyIndex *companyindex.Service
	Locations    *location.Service
	Resolver     *resolver.Resolver
	Orchestrator *orchestrator.Orchestrator
	Crawler      *ingest.Crawler
	Backfill     *ingest.Backfill
	Engine       services.EngineService
}

func wireServices(log *logger.Logger, metrics *observability.Metrics, cfg Config, repoSet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	// Unit tier chain, fastest first.
	tiers := []cache.Tier{
		cache.NewStoreTier("fast", clients.FastStore, resolver.UnitNamespace, cfg.UnitCacheTTL),
		clients.Shards,
		resolver.NewRelationalTier(repoSet.Components),
	}
	if clients.Upstream != nil {
		tiers = append(tiers, resolver.NewUpstreamTier(clients.Upstream, log))
	}
	manager := cache.NewManager(log, metrics, tiers...)

	index := companyindex.New(log, metrics, repoSet.Components, repoSet.Checkpoints, clients.FastStore, companyindex.Config{
		TTL:       cfg.IndexTTL,
		BatchSize: cfg.RebuildBatchSize,
	})
	locations := location.New(log, metrics, repoSet.Components, repoSet.Checkpoints, clients.FastStore, location.Config{
		GenericAreaThreshold: cfg.GenericAreaThreshold,
		LookupCap:            cfg.LocationLookupCap,
		BatchSize:            cfg.RebuildBatchSize,
	})
	res := resolver.New(log, metrics, manager, repoSet.Components, locations)
	matcher := fuzzy.NewMatcher(fuzzy.Options{Cutoff: fuzzy.CutoffOf(cfg.FuzzyCutoff), Limit: cfg.FuzzyLimit})
	orch := orchestrator.New(log, metrics, res, index, matcher, clients.FastStore, orchestrator.Config{
		QueryCacheTTL:     cfg.QueryCacheTTL,
		OrganizationLimit: cfg.FuzzyLimit,
	})

	var crawler *ingest.Crawler
	if clients.Upstream != nil {
		c, err := ingest.NewCrawler(log, metrics, clients.Upstream,
			repoSet.Units, repoSet.Components, repoSet.Checkpoints,
			clients.FastStore, manager,
			ingest.CrawlConfig{PageSize: cfg.CrawlPageSize, Concurrency: cfg.CrawlConcurrency},
		)
		if err != nil {
			return Services{}, fmt.Errorf("init crawler: %w", err)
		}
		crawler = c
	}
	backfill := ingest.NewBackfill(log, metrics, repoSet.Components, repoSet.Checkpoints, clients.FastStore, cfg.RebuildBatchSize)

	return Services{
		Manager:      manager,
		CompanyIndex: index,
		Locations:    locations,
		Resolver:     res,
		Orchestrator: orch,
		Crawler:      crawler,
		Backfill:     backfill,
		Engine:       services.NewEngineService(log, orch, res, index, locations, crawler, backfill, repoSet.Checkpoints),
	}, nil
}

func (s *Services) Close() {
	if s != nil && s.Crawler != nil {
		s.Crawler.Release()
	}
}
