package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/data/repos"
	"github.com/yungbote/capacity-checker/internal/data/repos/testutil"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
)

// failFirstSave loses the first checkpoint write after the staged state was stored.
type failFirstSave struct {
	repos.CheckpointRepo
	failed bool
}

func (f *failFirstSave) Save(dbc dbctx.Context, cp *types.RebuildCheckpoint) error {
	if !f.failed {
		f.failed = true
		return errors.New("checkpoint write failed")
	}
	return f.CheckpointRepo.Save(dbc, cp)
}

type stagedCounts struct {
	Seen []string `json:"seen"`
}

func TestContextResumesFromStagedState(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	deps := Deps{
		Checkpoints: repos.NewCheckpointRepo(db, testutil.Logger(t)),
		Store:       cache.NewMemoryStore(),
		Log:         testutil.Logger(t),
	}

	run, err := Begin(ctx, deps, "test_job", Budget{MaxBatches: 1})
	require.NoError(t, err)
	assert.False(t, run.Resumed)
	require.True(t, run.Allow())
	require.NoError(t, run.Advance(stagedCounts{Seen: []string{"a"}}, 10, 9, 1))
	assert.False(t, run.Allow())
	run.Pause()

	again, err := Begin(ctx, deps, "test_job", Budget{})
	require.NoError(t, err)
	assert.True(t, again.Resumed)
	assert.Equal(t, run.RunID(), again.RunID())
	assert.Equal(t, 10, again.Checkpoint.Offset)

	var state stagedCounts
	ok, err := again.LoadStaging(&state)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, state.Seen)

	require.NoError(t, again.Complete())
	ok, err = again.LoadStaging(&state)
	require.NoError(t, err)
	assert.False(t, ok)

	fresh, err := Begin(ctx, deps, "test_job", Budget{})
	require.NoError(t, err)
	assert.False(t, fresh.Resumed)
	assert.NotEqual(t, run.RunID(), fresh.RunID())
	assert.Equal(t, types.CheckpointRunning, fresh.Checkpoint.Status)
}

func TestContextRestartWhenStagingLost(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	store := cache.NewMemoryStore()
	deps := Deps{Checkpoints: repos.NewCheckpointRepo(db, testutil.Logger(t)), Store: store, Log: testutil.Logger(t)}

	run, err := Begin(ctx, deps, "test_job", Budget{})
	require.NoError(t, err)
	require.NoError(t, run.Advance(stagedCounts{}, 5, 5, 0))

	deps.Store = cache.NewMemoryStore()
	again, err := Begin(ctx, deps, "test_job", Budget{})
	require.NoError(t, err)
	var state stagedCounts
	ok, err := again.LoadStaging(&state)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, again.Restart())
	assert.Equal(t, 0, again.Checkpoint.Offset)
	assert.Equal(t, 0, again.Checkpoint.Processed)
}

func TestContextResumesFromStagedPositionWhenCheckpointLags(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	deps := Deps{
		Checkpoints: &failFirstSave{CheckpointRepo: repos.NewCheckpointRepo(db, testutil.Logger(t))},
		Store:       cache.NewMemoryStore(),
		Log:         testutil.Logger(t),
	}

	run, err := Begin(ctx, deps, "test_job", Budget{})
	require.NoError(t, err)
	require.Error(t, run.Advance(stagedCounts{Seen: []string{"a"}}, 10, 9, 1))

	again, err := Begin(ctx, deps, "test_job", Budget{})
	require.NoError(t, err)
	require.True(t, again.Resumed)
	assert.Equal(t, 0, again.Checkpoint.Offset)

	var state stagedCounts
	ok, err := again.LoadStaging(&state)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, state.Seen)
	assert.Equal(t, 10, again.Checkpoint.Offset)
	assert.Equal(t, 9, again.Checkpoint.Processed)
	assert.Equal(t, 1, again.Checkpoint.Skipped)

	require.NoError(t, again.Advance(stagedCounts{Seen: []string{"a", "b"}}, 12, 2, 0))
	assert.Equal(t, 11, again.Checkpoint.Processed)
}
