package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/capacity-checker/internal/data/repos"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/jobs/ingest"
	"github.com/yungbote/capacity-checker/internal/jobs/runtime"
	"github.com/yungbote/capacity-checker/internal/normalization"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
	"github.com/yungbote/capacity-checker/internal/search/companyindex"
	"github.com/yungbote/capacity-checker/internal/search/location"
	"github.com/yungbote/capacity-checker/internal/search/orchestrator"
)

type EngineService interface {
	Resolve(ctx context.Context, req orchestrator.Request) orchestrator.Result
	Unit(ctx context.Context, id string) ([]*types.ComponentRecord, error)
	Company(ctx context.Context, key string) (types.CompanyIndexEntry, error)
	LookupLocation(ctx context.Context, term string) (location.LookupResult, error)

	RebuildIndex(ctx context.Context, force bool, budget runtime.Budget) (companyindex.BuildStats, error)
	RebuildLocationMapping(ctx context.Context, mode string, minComponents int, budget runtime.Budget) (location.RebuildStats, error)
	Crawl(ctx context.Context, budget runtime.Budget) (ingest.CrawlStats, error)
	BackfillCapacity(ctx context.Context, budget runtime.Budget) (ingest.BackfillStats, error)
	JobRuns(ctx context.Context, job string, limit int) ([]*types.RebuildCheckpoint, error)
}

// UnitSource is the tier-chain reader behind unit lookups.
type UnitSource interface {
	ByUnitID(ctx context.Context, id string) ([]*types.ComponentRecord, error)
}

type engineService struct {
	log          *logger.Logger
	orchestrator *orchestrator.Orchestrator
	units        UnitSource
	index        *companyindex.Service
	locations    *location.Service
	crawler      *ingest.Crawler
	backfill     *ingest.Backfill
	checkpoints  repos.CheckpointRepo
}

// NewEngineService wires the engine. crawler may be nil when the upstream register is not
// configured; Crawl then fails with a configuration error and everything else still works.
func NewEngineService(
	log *logger.Logger,
	orch *orchestrator.Orchestrator,
	units UnitSource,
	index *companyindex.Service,
	locations *location.Service,
	crawler *ingest.Crawler,
	backfill *ingest.Backfill,
	checkpoints repos.CheckpointRepo,
) EngineService {
	return &engineService{
		log:          log.With("service", "EngineService"),
		orchestrator: orch,
		units:        units,
		index:        index,
		locations:    locations,
		crawler:      crawler,
		backfill:     backfill,
		checkpoints:  checkpoints,
	}
}

func (s *engineService) Resolve(ctx context.Context, req orchestrator.Request) orchestrator.Result {
	return s.orchestrator.Resolve(ctx, req)
}

func (s *engineService) Unit(ctx context.Context, id string) ([]*types.ComponentRecord, error) {
	if !normalization.IsUnitID(id) {
		return nil, fmt.Errorf("%w: %q is not a unit id", errs.ErrInvalidArgument, id)
	}
	return s.units.ByUnitID(ctx, id)
}

func (s *engineService) Company(ctx context.Context, key string) (types.CompanyIndexEntry, error) {
	k := normalization.Key(key)
	if k == "" {
		return types.CompanyIndexEntry{}, fmt.Errorf("%w: empty company key", errs.ErrInvalidArgument)
	}
	entry, ok, err := s.index.LookupExact(ctx, k)
	if err != nil {
		return types.CompanyIndexEntry{}, err
	}
	if !ok {
		s.log.Debug("company not in index", "key", k)
		return types.CompanyIndexEntry{}, errs.ErrDataNotFound
	}
	return entry, nil
}

func (s *engineService) LookupLocation(ctx context.Context, term string) (location.LookupResult, error) {
	if strings.TrimSpace(term) == "" {
		return location.LookupResult{}, fmt.Errorf("%w: empty location term", errs.ErrInvalidArgument)
	}
	return s.locations.Lookup(ctx, term)
}

func (s *engineService) RebuildIndex(ctx context.Context, force bool, budget runtime.Budget) (companyindex.BuildStats, error) {
	return s.index.Build(ctx, companyindex.BuildOptions{Force: force, Budget: budget})
}

func (s *engineService) RebuildLocationMapping(ctx context.Context, mode string, minComponents int, budget runtime.Budget) (location.RebuildStats, error) {
	if mode == "" {
		mode = location.ModeIncremental
	}
	return s.locations.Rebuild(ctx, location.RebuildOptions{Mode: mode, MinComponents: minComponents, Budget: budget})
}

func (s *engineService) Crawl(ctx context.Context, budget runtime.Budget) (ingest.CrawlStats, error) {
	if s.crawler == nil {
		return ingest.CrawlStats{}, errs.MissingConfig("UPSTREAM_BASE_URL", "UPSTREAM_UNITS_RESOURCE_ID", "UPSTREAM_COMPONENTS_RESOURCE_ID")
	}
	return s.crawler.Crawl(ctx, ingest.CrawlOptions{Budget: budget})
}

func (s *engineService) BackfillCapacity(ctx context.Context, budget runtime.Budget) (ingest.BackfillStats, error) {
	return s.backfill.Run(ctx, ingest.BackfillOptions{Budget: budget})
}

func (s *engineService) JobRuns(ctx context.Context, job string, limit int) ([]*types.RebuildCheckpoint, error) {
	if strings.TrimSpace(job) == "" {
		return nil, fmt.Errorf("%w: empty job name", errs.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.checkpoints.ListByJob(dbctx.New(ctx), job, limit)
}
