package checkpoints

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/capacity-checker/internal/data/repos/testutil"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
)

func TestCheckpointLifecycle(t *testing.T) {
	db := testutil.DB(t)
	repo := NewCheckpointRepo(db, testutil.Logger(t))
	dbc := dbctx.New(context.Background())

	none, err := repo.LatestRunning(dbc, "company_index")
	require.NoError(t, err)
	assert.Nil(t, none)

	cp, err := repo.Create(dbc, &types.RebuildCheckpoint{Job: "company_index"})
	require.NoError(t, err)
	assert.NotEmpty(t, cp.RunID)
	assert.Equal(t, types.CheckpointRunning, cp.Status)

	cp.Offset = 500
	cp.Processed = 480
	cp.Skipped = 20
	require.NoError(t, repo.Save(dbc, cp))

	resumed, err := repo.LatestRunning(dbc, "company_index")
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.Equal(t, cp.RunID, resumed.RunID)
	assert.Equal(t, 500, resumed.Offset)
	assert.Equal(t, 20, resumed.Skipped)

	resumed.Status = types.CheckpointCompleted
	require.NoError(t, repo.Save(dbc, resumed))
	none, err = repo.LatestRunning(dbc, "company_index")
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := repo.ListByJob(dbc, "company_index", 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].CompletedAt)
}
