package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/data/repos"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

/*
Context is the execution handle for one run of a resumable batch job.
It owns:
  - the durable checkpoint row (offset, processed/skipped counters, status),
  - the staging blob in the fast store holding partially built state,
  - the budget tracker checked between batches.

Jobs never touch the checkpoint row directly. The staged blob carries its own offset and
counters next to the job state, and a resumed run takes its position from the blob. The
checkpoint row can lag the blob when its save fails, but a batch folded into the staged
state is never replayed.
*/
type Context struct {
	Ctx        context.Context
	Checkpoint *types.RebuildCheckpoint
	Resumed    bool

	repo    repos.CheckpointRepo
	store   cache.Store
	staging types.CacheNamespace
	tracker *Tracker
	log     *logger.Logger
	metrics *observability.Metrics
}

type Deps struct {
	Checkpoints repos.CheckpointRepo
	Store       cache.Store
	Log         *logger.Logger
	Metrics     *observability.Metrics
}

// Begin resumes the job's latest running checkpoint or starts a new run. When the staged
// state of a resumed run is gone the run restarts from offset zero under the same run id.
func Begin(ctx context.Context, deps Deps, job string, budget Budget) (*Context, error) {
	dbc := dbctx.New(ctx)
	cp, err := deps.Checkpoints.LatestRunning(dbc, job)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", job, err)
	}
	c := &Context{
		Ctx:     ctx,
		repo:    deps.Checkpoints,
		store:   deps.Store,
		staging: types.CacheNamespace{Name: job + "_staging", Version: "v1"},
		tracker: NewTracker(ctx, budget),
		log:     deps.Log.With("job", job),
		metrics: deps.Metrics,
	}
	if cp != nil {
		c.Checkpoint = cp
		c.Resumed = true
		c.log.Info("resuming job run", "run_id", cp.RunID, "offset", cp.Offset, "processed", cp.Processed)
		return c, nil
	}
	cp, err = deps.Checkpoints.Create(dbc, &types.RebuildCheckpoint{
		Job:    job,
		RunID:  uuid.New().String(),
		Status: types.CheckpointRunning,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkpoint %s: %w", job, err)
	}
	c.Checkpoint = cp
	c.log.Info("starting job run", "run_id", cp.RunID)
	return c, nil
}

func (c *Context) RunID() string { return c.Checkpoint.RunID }
func (c *Context) Job() string   { return c.Checkpoint.Job }

// Allow gates the next batch against the budget.
func (c *Context) Allow() bool { return c.tracker.Allow() }

func (c *Context) StopReason() string { return c.tracker.Reason() }
func (c *Context) Batches() int       { return c.tracker.Batches() }

// staged is the blob written by Advance: the job state plus the position it covers.
type staged struct {
	Offset    int             `json:"offset"`
	Processed int             `json:"processed"`
	Skipped   int             `json:"skipped"`
	State     json.RawMessage `json:"state"`
}

// LoadStaging decodes the staged state of this run into v and moves the checkpoint to the
// position stored with it. False means nothing was staged.
func (c *Context) LoadStaging(v interface{}) (bool, error) {
	raw, ok, err := c.store.Get(c.Ctx, c.staging, c.RunID())
	if err != nil || !ok {
		return false, err
	}
	var env staged
	if err := json.Unmarshal(raw, &env); err != nil || len(env.State) == 0 {
		c.log.Warn("discarding undecodable staged state", "run_id", c.RunID(), "error", err)
		return false, nil
	}
	if err := json.Unmarshal(env.State, v); err != nil {
		c.log.Warn("discarding undecodable staged state", "run_id", c.RunID(), "error", err)
		return false, nil
	}
	if env.Offset != c.Checkpoint.Offset {
		c.log.Warn("checkpoint behind staged state, resuming from staged position",
			"run_id", c.RunID(), "checkpoint_offset", c.Checkpoint.Offset, "staged_offset", env.Offset)
	}
	c.Checkpoint.Offset = env.Offset
	c.Checkpoint.Processed = env.Processed
	c.Checkpoint.Skipped = env.Skipped
	return true, nil
}

// Restart rewinds a resumed run whose staged state was lost.
func (c *Context) Restart() error {
	c.Checkpoint.Offset = 0
	c.Checkpoint.Processed = 0
	c.Checkpoint.Skipped = 0
	c.Checkpoint.Extra = nil
	c.log.Warn("staged state missing, restarting run from the beginning", "run_id", c.RunID())
	return c.repo.Save(dbctx.New(c.Ctx), c.Checkpoint)
}

// Advance stages state (when non-nil) together with the new position, then persists the
// checkpoint counters.
func (c *Context) Advance(state interface{}, offset, processed, skipped int) error {
	env := staged{
		Offset:    offset,
		Processed: c.Checkpoint.Processed + processed,
		Skipped:   c.Checkpoint.Skipped + skipped,
	}
	if state != nil {
		body, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode staged state: %w", err)
		}
		env.State = body
		raw, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("encode staged state: %w", err)
		}
		if err := c.store.Set(c.Ctx, types.CacheEnvelope{Namespace: c.staging, Key: c.RunID(), Value: raw}); err != nil {
			return fmt.Errorf("stage state: %w", err)
		}
	}
	c.Checkpoint.Offset = env.Offset
	c.Checkpoint.Processed = env.Processed
	c.Checkpoint.Skipped = env.Skipped
	c.metrics.AddJobRecords(c.Job(), "processed", processed)
	c.metrics.AddJobRecords(c.Job(), "skipped", skipped)
	return c.repo.Save(dbctx.New(c.Ctx), c.Checkpoint)
}

// Complete marks the run finished and drops its staged state.
func (c *Context) Complete() error {
	c.Checkpoint.Status = types.CheckpointCompleted
	if err := c.repo.Save(dbctx.New(c.Ctx), c.Checkpoint); err != nil {
		return err
	}
	if err := c.store.Delete(c.Ctx, c.staging, c.RunID()); err != nil {
		c.log.Warn("failed to delete staged state", "run_id", c.RunID(), "error", err)
	}
	c.metrics.IncJobRun(c.Job(), "completed")
	c.log.Info("job run completed", "run_id", c.RunID(), "processed", c.Checkpoint.Processed, "skipped", c.Checkpoint.Skipped)
	return nil
}

// Pause records a clean budget stop; the checkpoint stays running for the next run.
func (c *Context) Pause() {
	c.metrics.IncJobRun(c.Job(), "partial")
	c.log.Info("job run paused", "run_id", c.RunID(), "reason", c.StopReason(), "offset", c.Checkpoint.Offset)
}

// Fail counts a failed run. The checkpoint is left running so the next run resumes it.
func (c *Context) Fail(err error) {
	c.metrics.IncJobRun(c.Job(), "failed")
	c.log.Error("job run failed", "run_id", c.RunID(), "offset", c.Checkpoint.Offset, "error", err)
}
