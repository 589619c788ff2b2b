package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/clients/upstream"
	"github.com/yungbote/capacity-checker/internal/data/repos"
	"github.com/yungbote/capacity-checker/internal/jobs/runtime"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

const (
	BackfillJobName = "derated_capacity_backfill"

	DefaultBackfillBatchSize = 500

	extraLastID = "last_id"
)

type BackfillOptions struct {
	Budget runtime.Budget
}

type BackfillStats struct {
	RunID      string `json:"run_id"`
	Resumed    bool   `json:"resumed"`
	Completed  bool   `json:"completed"`
	StopReason string `json:"stop_reason,omitempty"`
	Batches    int    `json:"batches"`
	Scanned    int    `json:"scanned"`
	Updated    int    `json:"updated"`
	Unparsable int    `json:"unparsable"`
}

// Backfill fills DeratedCapacityMW from the raw source field kept in Extras. It walks
// components by id and keeps the last id in the checkpoint.
type Backfill struct {
	components  repos.ComponentRepo
	checkpoints repos.CheckpointRepo
	store       cache.Store
	batchSize   int
	log         *logger.Logger
	metrics     *observability.Metrics
}

func NewBackfill(log *logger.Logger, metrics *observability.Metrics, componentRepo repos.ComponentRepo, checkpointRepo repos.CheckpointRepo, store cache.Store, batchSize int) *Backfill {
	if batchSize <= 0 {
		batchSize = DefaultBackfillBatchSize
	}
	return &Backfill{
		components:  componentRepo,
		checkpoints: checkpointRepo,
		store:       store,
		batchSize:   batchSize,
		log:         log.With("component", "CapacityBackfill"),
		metrics:     metrics,
	}
}

func (b *Backfill) Run(ctx context.Context, opts BackfillOptions) (stats BackfillStats, err error) {
	ctx, span := observability.StartSpan(ctx, "ingest.backfill_capacity")
	defer func() { observability.EndSpan(span, err) }()

	run, err := runtime.Begin(ctx, runtime.Deps{
		Checkpoints: b.checkpoints,
		Store:       b.store,
		Log:         b.log,
		Metrics:     b.metrics,
	}, BackfillJobName, opts.Budget)
	if err != nil {
		return stats, err
	}
	stats.RunID = run.RunID()
	stats.Resumed = run.Resumed

	lastID := uuid.Nil
	if raw, ok := run.Checkpoint.Extra[extraLastID].(string); ok {
		if id, perr := uuid.Parse(raw); perr == nil {
			lastID = id
		}
	}

	dbc := dbctx.New(ctx)
	for {
		if !run.Allow() {
			run.Pause()
			stats.StopReason = run.StopReason()
			stats.Batches = run.Batches()
			return stats, nil
		}
		batch, err := b.components.ListMissingDerated(dbc, lastID, b.batchSize)
		if err != nil {
			run.Fail(err)
			return stats, fmt.Errorf("list components after %s: %w", lastID, err)
		}
		if len(batch) == 0 {
			break
		}
		updated, unparsable := 0, 0
		for _, rec := range batch {
			v := upstream.ParseCapacity(rec.Extras[upstream.FieldDerated])
			if v == nil {
				unparsable++
				continue
			}
			if err := b.components.UpdateDerated(dbc, rec.ID, v); err != nil {
				run.Fail(err)
				return stats, fmt.Errorf("update component %s: %w", rec.ComponentID, err)
			}
			updated++
		}
		lastID = batch[len(batch)-1].ID
		stats.Scanned += len(batch)
		stats.Updated += updated
		stats.Unparsable += unparsable
		run.Checkpoint.Extra = map[string]interface{}{extraLastID: lastID.String()}
		if err := run.Advance(nil, run.Checkpoint.Offset+len(batch), updated, unparsable); err != nil {
			run.Fail(err)
			return stats, err
		}
		if len(batch) < b.batchSize {
			break
		}
	}

	if err := run.Complete(); err != nil {
		return stats, err
	}
	stats.Completed = true
	stats.Batches = run.Batches()
	b.log.Info("capacity backfill completed", "scanned", stats.Scanned, "updated", stats.Updated, "unparsable", stats.Unparsable)
	return stats, nil
}
