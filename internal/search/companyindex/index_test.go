package companyindex

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
	"github.com/yungbote/capacity-checker/internal/jobs/runtime"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
)

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

func newTestService(t *testing.T, batchSize int) (*Service, *cache.MemoryStore) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	testutil.SeedComponents(t, ctx, db,
		testutil.ComponentFixture{UnitID: "ACM001", CompanyName: "Acme Power", Location: "Acme Site, Leeds LS1 4AP", DeliveryYear: "2024"},
		testutil.ComponentFixture{UnitID: "ESL001", CompanyName: "Energy Storage Ltd", Location: "Battery Park, Bristol BS1 6QA", DeliveryYear: "2024"},
		testutil.ComponentFixture{UnitID: "ESL001", CompanyName: "Energy Storage Ltd", Location: "Battery Park, Bristol BS1 6QA", DeliveryYear: "2025", AuctionName: "T-1 2025"},
		testutil.ComponentFixture{UnitID: "ESL002", CompanyName: "Energy Storage Ltd", Location: "Grid Yard, Bath BA1 1AA", DeliveryYear: "2023"},
		testutil.ComponentFixture{UnitID: "NOT777", CompanyName: "", Location: "Nottingham NG7 2RD", DeliveryYear: "2024"},
		testutil.ComponentFixture{UnitID: "PLC001", CompanyName: "N/A", Location: "Somewhere, Derby DE1 1AA", DeliveryYear: "2024"},
		testutil.ComponentFixture{ComponentID: "ACM001-zeta", UnitID: "ACM001", CompanyName: "Zeta Energy", Location: "Acme Site, Leeds LS1 4AP", DeliveryYear: "2025"},
	)
	testutil.SeedUnit(t, ctx, db, "NOT777", "Trent Gas Co")

	store := cache.NewMemoryStore()
	svc := New(log, nil,
		repos.NewComponentRepo(db, log),
		repos.NewCheckpointRepo(db, log),
		store,
		Config{BatchSize: batchSize},
	)
	return svc, store
}

func TestBuildAggregatesOrganizations(t *testing.T) {
	svc, _ := newTestService(t, 50)
	ctx := context.Background()

	stats, err := svc.Build(ctx, BuildOptions{})
	require.NoError(t, err)
	assert.True(t, stats.Completed)
	assert.False(t, stats.Skipped)
	assert.Equal(t, 3, stats.Organizations)
	assert.Equal(t, 5, stats.Components)
	assert.Equal(t, 1, stats.Placeholders)
	assert.Equal(t, 1, stats.UnitConflicts)

	index, ok, err := svc.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, index.Len())

	keys := []string{}
	for _, e := range index.Entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"acmepower", "energystorageltd", "trentgasco"}, keys)

	esl, ok, err := svc.LookupExact(ctx, "energystorageltd")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Energy Storage Ltd", esl.CompanyName)
	assert.ElementsMatch(t, []string{"ESL001", "ESL002"}, esl.UnitIDs)
	assert.Equal(t, 2, esl.UnitCount)
	assert.Equal(t, 3, esl.ComponentCount)
	assert.Equal(t, []string{"2025", "2024", "2023"}, esl.Years)
	assert.Equal(t, []string{"T-1 2025"}, esl.Auctions["2025"])
	assert.Equal(t, "/company/energystorageltd/", esl.URL)

	trent, ok, err := svc.LookupExact(ctx, "trentgasco")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"NOT777"}, trent.UnitIDs)

	_, ok, err = svc.LookupExact(ctx, "zetaenergy")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildSkipsWhenPresentUnlessForced(t *testing.T) {
	svc, _ := newTestService(t, 50)
	ctx := context.Background()

	_, err := svc.Build(ctx, BuildOptions{})
	require.NoError(t, err)

	stats, err := svc.Build(ctx, BuildOptions{})
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	assert.Empty(t, stats.RunID)

	stats, err = svc.Build(ctx, BuildOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, stats.Completed)
	assert.Equal(t, 3, stats.Organizations)
}

func TestBuildResumesAfterBudgetStop(t *testing.T) {
	svc, _ := newTestService(t, 2)
	ctx := context.Background()

	first, err := svc.Build(ctx, BuildOptions{Budget: runtime.Budget{MaxBatches: 1}})
	require.NoError(t, err)
	assert.False(t, first.Completed)
	assert.Equal(t, runtime.StopBatches, first.StopReason)
	assert.Equal(t, 2, first.Offset)

	_, ok, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a partial run must not publish")

	second, err := svc.Build(ctx, BuildOptions{})
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.True(t, second.Completed)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 5, second.Components)
	assert.Equal(t, 1, second.Placeholders)
	assert.Equal(t, 3, second.Organizations)
}

func TestBuildResumeAfterLostCheckpointDoesNotDoubleCount(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	testutil.SeedComponents(t, ctx, db,
		testutil.ComponentFixture{UnitID: "ALP001", CompanyName: "Alpha Power", Location: "Leeds LS1 4AP", DeliveryYear: "2024"},
		testutil.ComponentFixture{UnitID: "BET001", CompanyName: "Beta Energy", Location: "Bath BA1 1AA", DeliveryYear: "2024"},
	)
	svc := New(log, nil,
		repos.NewComponentRepo(db, log),
		&failFirstSave{CheckpointRepo: repos.NewCheckpointRepo(db, log)},
		cache.NewMemoryStore(),
		Config{BatchSize: 1},
	)

	_, err := svc.Build(ctx, BuildOptions{})
	require.Error(t, err)

	stats, err := svc.Build(ctx, BuildOptions{})
	require.NoError(t, err)
	assert.True(t, stats.Resumed)
	assert.True(t, stats.Completed)
	assert.Equal(t, 2, stats.Components)
	assert.Equal(t, 2, stats.Organizations)

	alpha, ok, err := svc.LookupExact(ctx, "alphapower")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, alpha.ComponentCount)
}

func TestLoadReusesDecodedIndex(t *testing.T) {
	svc, _ := newTestService(t, 50)
	ctx := context.Background()

	empty, ok, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, empty.Len())

	_, err = svc.Build(ctx, BuildOptions{})
	require.NoError(t, err)

	a, _, err := svc.Load(ctx)
	require.NoError(t, err)
	b, _, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)
}
