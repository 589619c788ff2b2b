package companyindex

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/data/repos"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/jobs/runtime"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
	"github.com/yungbote/capacity-checker/internal/search/snapshot"
)

const (
	JobName = "company_index"

	DefaultTTL       = 30 * 24 * time.Hour
	DefaultBatchSize = 500
)

var Namespace = types.CacheNamespace{Name: "company_index", Version: "v1"}

type Config struct {
	TTL       time.Duration
	BatchSize int
}

type BuildOptions struct {
	Force  bool
	Budget runtime.Budget
}

type BuildStats struct {
	RunID         string `json:"run_id,omitempty"`
	Skipped       bool   `json:"skipped"`
	Resumed       bool   `json:"resumed"`
	Completed     bool   `json:"completed"`
	StopReason    string `json:"stop_reason,omitempty"`
	Batches       int    `json:"batches"`
	Offset        int    `json:"offset"`
	Organizations int    `json:"organizations"`
	Components    int    `json:"components"`
	Placeholders  int    `json:"placeholders"`
	Malformed     int    `json:"malformed"`
	UnitConflicts int    `json:"unit_conflicts"`
}

// Service builds the company index from the relational store and serves it from the fast
// store. The whole index is one blob, so readers see either the old or the new version.
type Service struct {
	components  repos.ComponentRepo
	checkpoints repos.CheckpointRepo
	store       cache.Store
	log         *logger.Logger
	metrics     *observability.Metrics
	cfg         Config
	blob        *snapshot.Blob[types.CompanyIndex]
	now         func() time.Time
}

func New(log *logger.Logger, metrics *observability.Metrics, componentRepo repos.ComponentRepo, checkpointRepo repos.CheckpointRepo, store cache.Store, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Service{
		components:  componentRepo,
		checkpoints: checkpointRepo,
		store:       store,
		blob:        snapshot.New(store, Namespace, (*types.CompanyIndex).Reindex),
		log:         log.With("component", "CompanyIndex"),
		metrics:     metrics,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Build materializes the index. Without Force an existing index is left alone. A run that
// exhausts its budget returns Completed=false with progress checkpointed for the next run.
func (s *Service) Build(ctx context.Context, opts BuildOptions) (stats BuildStats, err error) {
	ctx, span := observability.StartSpan(ctx, "companyindex.build", attribute.Bool("force", opts.Force))
	defer func() { observability.EndSpan(span, err) }()

	if !opts.Force {
		running, err := s.checkpoints.LatestRunning(dbctx.New(ctx), JobName)
		if err != nil {
			return stats, err
		}
		if running == nil {
			present, err := s.blob.Present(ctx)
			if err != nil {
				return stats, err
			}
			if present {
				s.log.Info("company index present, skipping rebuild")
				stats.Skipped = true
				return stats, nil
			}
		}
	}

	run, err := runtime.Begin(ctx, runtime.Deps{
		Checkpoints: s.checkpoints,
		Store:       s.store,
		Log:         s.log,
		Metrics:     s.metrics,
	}, JobName, opts.Budget)
	if err != nil {
		return stats, err
	}
	stats.RunID = run.RunID()
	stats.Resumed = run.Resumed

	b := newBuilder()
	if run.Resumed {
		ok, err := run.LoadStaging(b)
		if err != nil {
			return stats, err
		}
		if !ok {
			b = newBuilder()
			if err := run.Restart(); err != nil {
				return stats, err
			}
		}
	}

	offset := run.Checkpoint.Offset
	dbc := dbctx.New(ctx)
	for {
		if !run.Allow() {
			run.Pause()
			stats.StopReason = run.StopReason()
			stats.Batches = run.Batches()
			stats.Offset = offset
			fillStats(&stats, b)
			return stats, nil
		}
		names, err := s.components.CompanyNames(dbc, offset, s.cfg.BatchSize)
		if err != nil {
			run.Fail(err)
			return stats, fmt.Errorf("list company names at offset %d: %w", offset, err)
		}
		if len(names) == 0 {
			break
		}
		b.countPlaceholders(names)
		rows, err := s.components.CompanyRows(dbc, names)
		if err != nil {
			run.Fail(err)
			return stats, fmt.Errorf("load company rows at offset %d: %w", offset, err)
		}
		processed, skipped := 0, 0
		for _, row := range rows {
			if b.add(row) {
				processed++
			} else {
				skipped++
			}
		}
		offset += len(names)
		if err := run.Advance(b, offset, processed, skipped); err != nil {
			run.Fail(err)
			return stats, err
		}
		if len(names) < s.cfg.BatchSize {
			break
		}
	}

	index := &types.CompanyIndex{
		Version: 1,
		BuiltAt: s.now().UTC(),
		Entries: b.index(),
		Stats:   b.Stats,
	}
	index.Stats.Organizations = len(index.Entries)
	if err := s.blob.Publish(ctx, index, index.BuiltAt, s.cfg.TTL); err != nil {
		run.Fail(err)
		return stats, err
	}
	if err := run.Complete(); err != nil {
		return stats, err
	}
	stats.Completed = true
	stats.Batches = run.Batches()
	stats.Offset = offset
	fillStats(&stats, b)
	s.log.Info("company index built",
		"organizations", stats.Organizations,
		"components", stats.Components,
		"placeholders", stats.Placeholders,
		"malformed", stats.Malformed,
		"unit_conflicts", stats.UnitConflicts,
	)
	return stats, nil
}

func fillStats(stats *BuildStats, b *builder) {
	stats.Organizations = len(b.Order)
	stats.Components = b.Stats.Components
	stats.Placeholders = b.Stats.Placeholders
	stats.Malformed = b.Stats.Malformed
	stats.UnitConflicts = b.Stats.UnitConflicts
}

// Load returns the current index. A missing index is an empty index and false.
func (s *Service) Load(ctx context.Context) (*types.CompanyIndex, bool, error) {
	index, ok, err := s.blob.Load(ctx)
	if err != nil || !ok {
		return &types.CompanyIndex{}, false, err
	}
	return index, true, nil
}

// LookupExact finds an organization by its normalized name.
func (s *Service) LookupExact(ctx context.Context, key string) (types.CompanyIndexEntry, bool, error) {
	index, _, err := s.Load(ctx)
	if err != nil {
		return types.CompanyIndexEntry{}, false, err
	}
	e, ok := index.Lookup(key)
	return e, ok, nil
}
