package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/clients/upstream"
	"github.com/yungbote/capacity-checker/internal/data/repos"
	"github.com/yungbote/capacity-checker/internal/data/repos/testutil"
	"github.com/yungbote/capacity-checker/internal/jobs/runtime"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
)

type fakeRegister struct {
	mu         sync.Mutex
	units      []upstream.Record
	components map[string][]upstream.Record
	fetchErr   error
}

func (f *fakeRegister) ListUnits(ctx context.Context, limit, offset int) (upstream.Page, error) {
	page := upstream.Page{Total: len(f.units)}
	if offset >= len(f.units) {
		return page, nil
	}
	end := offset + limit
	if end > len(f.units) {
		end = len(f.units)
	}
	page.Records = f.units[offset:end]
	return page, nil
}

func (f *fakeRegister) SearchComponents(ctx context.Context, q string, limit, offset int) (upstream.Page, error) {
	return upstream.Page{}, nil
}

func (f *fakeRegister) ComponentsForUnit(ctx context.Context, unitID string) ([]upstream.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.components[unitID], nil
}

type recordingInvalidator struct {
	keys []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, key string) error {
	r.keys = append(r.keys, key)
	return nil
}

type crawlFixture struct {
	crawler     *Crawler
	register    *fakeRegister
	invalidator *recordingInvalidator
	components  repos.ComponentRepo
	checkpoints repos.CheckpointRepo
}

func newCrawlFixture(t *testing.T, pageSize int) crawlFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	register := &fakeRegister{
		units: []upstream.Record{
			{"_id": float64(1), "CMU ID": "AAA001", "Name of Applicant": "Alpha Gen"},
			{"_id": float64(2), "Name of Applicant": "No Id Ltd"},
			{"_id": float64(3), "CMU ID": "BBB002", "Parent Company": "Beta Holdings"},
		},
		components: map[string][]upstream.Record{
			"AAA001": {
				{"_id": float64(10), "CMU ID": "AAA001", "Location and Post Code": "Leeds LS1 4AP", "Delivery Year": "2024", "De-Rated Capacity": "12.5"},
				{"_id": float64(11), "CMU ID": "AAA001", "Location and Post Code": "Leeds LS1 4AP", "Delivery Year": "2025"},
				{"_id": float64(12), "Location and Post Code": "row without unit"},
			},
			"BBB002": {
				{"_id": float64(20), "CMU ID": "BBB002", "Location and Post Code": "Hull HU1 1AA", "Delivery Year": "2026"},
			},
		},
	}
	inv := &recordingInvalidator{}
	componentRepo := repos.NewComponentRepo(db, log)
	checkpointRepo := repos.NewCheckpointRepo(db, log)
	crawler, err := NewCrawler(log, nil, register,
		repos.NewUnitRepo(db, log),
		componentRepo,
		checkpointRepo,
		cache.NewMemoryStore(),
		inv,
		CrawlConfig{PageSize: pageSize, Concurrency: 2},
	)
	require.NoError(t, err)
	t.Cleanup(crawler.Release)
	return crawlFixture{
		crawler:     crawler,
		register:    register,
		invalidator: inv,
		components:  componentRepo,
		checkpoints: checkpointRepo,
	}
}

func TestNewCrawlerRequiresClient(t *testing.T) {
	_, err := NewCrawler(testutil.Logger(t), nil, nil, nil, nil, nil, nil, nil, CrawlConfig{})
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}

func TestCrawlCopiesRegister(t *testing.T) {
	f := newCrawlFixture(t, 2)
	ctx := context.Background()

	stats, err := f.crawler.Crawl(ctx, CrawlOptions{})
	require.NoError(t, err)
	assert.True(t, stats.Completed)
	assert.Equal(t, 2, stats.Pages)
	assert.Equal(t, 3, stats.Offset)
	assert.Equal(t, 2, stats.Units)
	assert.Equal(t, 3, stats.Components)
	assert.Equal(t, 2, stats.Malformed)
	assert.Zero(t, stats.FailedUnits)
	assert.ElementsMatch(t, []string{"aaa001", "bbb002"}, f.invalidator.keys)

	recs, err := f.components.ListByUnitKey(dbctx.New(ctx), "aaa001")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	var withCapacity int
	for _, r := range recs {
		if r.DeratedCapacityMW != nil {
			withCapacity++
			assert.InDelta(t, 12.5, *r.DeratedCapacityMW, 1e-9)
		}
	}
	assert.Equal(t, 1, withCapacity)

	again, err := f.crawler.Crawl(ctx, CrawlOptions{})
	require.NoError(t, err)
	assert.False(t, again.Resumed)
	assert.NotEqual(t, stats.RunID, again.RunID)
	recs, err = f.components.ListByUnitKey(dbctx.New(ctx), "aaa001")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestCrawlResumesAfterBudgetStop(t *testing.T) {
	f := newCrawlFixture(t, 2)
	ctx := context.Background()

	first, err := f.crawler.Crawl(ctx, CrawlOptions{Budget: runtime.Budget{MaxBatches: 1}})
	require.NoError(t, err)
	assert.False(t, first.Completed)
	assert.Equal(t, runtime.StopBatches, first.StopReason)
	assert.Equal(t, 2, first.Offset)
	assert.Equal(t, 1, first.Units)

	cp, err := f.checkpoints.LatestRunning(dbctx.New(ctx), CrawlJobName)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 2, cp.Offset)

	second, err := f.crawler.Crawl(ctx, CrawlOptions{})
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.True(t, second.Completed)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 1, second.Units)
	assert.Equal(t, 1, second.Components)

	recs, err := f.components.ListByUnitKey(dbctx.New(ctx), "bbb002")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCrawlFailsWhenEveryFetchFails(t *testing.T) {
	f := newCrawlFixture(t, 2)
	f.register.fetchErr = errors.New("register unavailable")
	ctx := context.Background()

	stats, err := f.crawler.Crawl(ctx, CrawlOptions{})
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
	assert.False(t, stats.Completed)
	assert.Equal(t, 1, stats.FailedUnits)

	cp, err := f.checkpoints.LatestRunning(dbctx.New(ctx), CrawlJobName)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Zero(t, cp.Offset)
	assert.Empty(t, f.invalidator.keys)
}
