package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/clients/upstream"
	"github.com/yungbote/capacity-checker/internal/data/repos"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/jobs/runtime"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

const (
	CrawlJobName = "crawl"

	DefaultCrawlPageSize    = 100
	DefaultCrawlConcurrency = 4
)

// Invalidator drops cached copies of a unit so the next read repopulates from the store.
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

type CrawlConfig struct {
	PageSize    int
	Concurrency int
}

type CrawlOptions struct {
	Budget runtime.Budget
}

type CrawlStats struct {
	RunID       string `json:"run_id"`
	Resumed     bool   `json:"resumed"`
	Completed   bool   `json:"completed"`
	StopReason  string `json:"stop_reason,omitempty"`
	Pages       int    `json:"pages"`
	Offset      int    `json:"offset"`
	Units       int    `json:"units"`
	Components  int    `json:"components"`
	Malformed   int    `json:"malformed"`
	FailedUnits int    `json:"failed_units"`
}

// Crawler copies the upstream unit register and each unit's components into the
// relational store, one page of units per checkpointed batch.
type Crawler struct {
	client      upstream.Client
	units       repos.UnitRepo
	components  repos.ComponentRepo
	checkpoints repos.CheckpointRepo
	store       cache.Store
	invalidator Invalidator
	pool        *ants.Pool
	cfg         CrawlConfig
	log         *logger.Logger
	metrics     *observability.Metrics
}

func NewCrawler(
	log *logger.Logger,
	metrics *observability.Metrics,
	client upstream.Client,
	unitRepo repos.UnitRepo,
	componentRepo repos.ComponentRepo,
	checkpointRepo repos.CheckpointRepo,
	store cache.Store,
	invalidator Invalidator,
	cfg CrawlConfig,
) (*Crawler, error) {
	if client == nil {
		return nil, errs.MissingConfig("UPSTREAM_BASE_URL")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultCrawlPageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultCrawlConcurrency
	}
	pool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("create crawl pool: %w", err)
	}
	return &Crawler{
		client:      client,
		units:       unitRepo,
		components:  componentRepo,
		checkpoints: checkpointRepo,
		store:       store,
		invalidator: invalidator,
		pool:        pool,
		cfg:         cfg,
		log:         log.With("component", "Crawler"),
		metrics:     metrics,
	}, nil
}

// Release stops the worker pool.
func (c *Crawler) Release() {
	c.pool.Release()
}

type unitFetch struct {
	unit *types.UnitRegistryEntry
	rows []upstream.Record
	err  error
}

// Crawl resumes the latest unfinished crawl or starts a new one.
func (c *Crawler) Crawl(ctx context.Context, opts CrawlOptions) (stats CrawlStats, err error) {
	ctx, span := observability.StartSpan(ctx, "ingest.crawl")
	defer func() { observability.EndSpan(span, err) }()

	run, err := runtime.Begin(ctx, runtime.Deps{
		Checkpoints: c.checkpoints,
		Store:       c.store,
		Log:         c.log,
		Metrics:     c.metrics,
	}, CrawlJobName, opts.Budget)
	if err != nil {
		return stats, err
	}
	stats.RunID = run.RunID()
	stats.Resumed = run.Resumed
	offset := run.Checkpoint.Offset

	for {
		if !run.Allow() {
			run.Pause()
			stats.StopReason = run.StopReason()
			stats.Pages = run.Batches()
			stats.Offset = offset
			return stats, nil
		}
		page, err := c.client.ListUnits(ctx, c.cfg.PageSize, offset)
		if err != nil {
			run.Fail(err)
			return stats, fmt.Errorf("list units at offset %d: %w", offset, err)
		}
		if len(page.Records) == 0 {
			break
		}
		processed, skipped, err := c.crawlPage(ctx, page.Records, &stats)
		if err != nil {
			run.Fail(err)
			return stats, err
		}
		offset += len(page.Records)
		if err := run.Advance(nil, offset, processed, skipped); err != nil {
			run.Fail(err)
			return stats, err
		}
		span.SetAttributes(attribute.Int("crawl.offset", offset))
		if len(page.Records) < c.cfg.PageSize || (page.Total > 0 && offset >= page.Total) {
			break
		}
	}

	if err := run.Complete(); err != nil {
		return stats, err
	}
	stats.Completed = true
	stats.Pages = run.Batches()
	stats.Offset = offset
	c.log.Info("crawl completed",
		"units", stats.Units,
		"components", stats.Components,
		"malformed", stats.Malformed,
		"failed_units", stats.FailedUnits,
	)
	return stats, nil
}

// crawlPage fetches components for every unit on the page concurrently and then writes
// sequentially. A page on which every unit fetch failed is an error and is not advanced past.
func (c *Crawler) crawlPage(ctx context.Context, records []upstream.Record, stats *CrawlStats) (processed, skipped int, err error) {
	units := make([]*types.UnitRegistryEntry, 0, len(records))
	seen := map[string]bool{}
	for _, r := range records {
		u, err := upstream.ParseUnit(r)
		if err != nil {
			stats.Malformed++
			skipped++
			continue
		}
		if seen[u.UnitKey] {
			continue
		}
		seen[u.UnitKey] = true
		units = append(units, u)
	}
	if len(units) == 0 {
		return 0, skipped, nil
	}

	fetched := make([]unitFetch, len(units))
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		submitErr := c.pool.Submit(func() {
			defer wg.Done()
			rows, err := c.client.ComponentsForUnit(ctx, u.UnitID)
			fetched[i] = unitFetch{unit: u, rows: rows, err: err}
		})
		if submitErr != nil {
			wg.Done()
			fetched[i] = unitFetch{unit: u, err: submitErr}
		}
	}
	wg.Wait()

	dbc := dbctx.New(ctx)
	if _, err := c.units.Upsert(dbc, units); err != nil {
		return processed, skipped, fmt.Errorf("upsert units: %w", err)
	}
	stats.Units += len(units)

	failed := 0
	for _, f := range fetched {
		if f.err != nil {
			failed++
			c.log.Warn("component fetch failed", "unit_id", f.unit.UnitID, "error", f.err)
			continue
		}
		recs, bad := upstream.ParseComponents(f.rows)
		stats.Malformed += bad
		skipped += bad
		if _, err := c.components.UpsertMany(dbc, recs); err != nil {
			return processed, skipped, fmt.Errorf("upsert components for %s: %w", f.unit.UnitID, err)
		}
		stats.Components += len(recs)
		processed += len(recs)
		if c.invalidator != nil {
			if err := c.invalidator.Invalidate(ctx, f.unit.UnitKey); err != nil {
				c.log.Warn("cache invalidation failed", "unit_id", f.unit.UnitID, "error", err)
			}
		}
	}
	stats.FailedUnits += failed
	if failed == len(fetched) {
		return processed, skipped, errs.Transient("upstream", "components", fmt.Errorf("all %d unit fetches failed", failed))
	}
	return processed, skipped, nil
}
