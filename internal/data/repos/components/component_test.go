package components

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/capacity-checker/internal/data/repos/testutil"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
)

func seedRegistry(t *testing.T) (ComponentRepo, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	ctx := context.Background()
	testutil.SeedComponents(t, ctx, db,
		testutil.ComponentFixture{UnitID: "DRX001", CompanyName: "Drax Power Ltd", Location: "Drax Power Station, Selby, YO8 8PH", Technology: "Biomass", DeliveryYear: "2024"},
		testutil.ComponentFixture{UnitID: "DRX001", CompanyName: "Drax Power Ltd", Location: "Drax Power Station, Selby, YO8 8PH", Technology: "Biomass", DeliveryYear: "2025"},
		testutil.ComponentFixture{UnitID: "BAT100", CompanyName: "Battersea Storage 50% Ltd", Location: "Battersea, London SW11 4AA", Technology: "Storage", DeliveryYear: "2023"},
		testutil.ComponentFixture{UnitID: "NOT777", CompanyName: "", Location: "Nottingham NG7 2RD", Technology: "Gas", DeliveryYear: "2024"},
	)
	testutil.SeedUnit(t, ctx, db, "NOT777", "Trent Gas Co")
	return NewComponentRepo(db, testutil.Logger(t)), dbctx.New(ctx)
}

func TestListByUnitKey(t *testing.T) {
	repo, dbc := seedRegistry(t)

	got, err := repo.ListByUnitKey(dbc, "drx001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2025", got[0].DeliveryYear)
	assert.Equal(t, "YO8", got[0].OutwardCode)

	none, err := repo.ListByUnitKey(dbc, "zzz999")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchTermsCodesAndFilters(t *testing.T) {
	repo, dbc := seedRegistry(t)

	recs, total, err := repo.Search(dbc, SearchCriteria{Terms: []string{"selby"}, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, recs, 2)
	assert.Equal(t, "2025", recs[0].DeliveryYear)

	recs, total, err = repo.Search(dbc, SearchCriteria{OutwardCodes: []string{"SW11", "NG7"}, Sort: SortLocation})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "Battersea, London SW11 4AA", recs[0].Location)

	recs, total, err = repo.Search(dbc, SearchCriteria{Terms: []string{"power"}, BoostUnitKeys: []string{"bat100"}, Technology: "storage"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "BAT100", recs[0].UnitID)

	recs, total, err = repo.Search(dbc, SearchCriteria{ExactUnitKey: "not777", Terms: []string{"selby"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "NOT777", recs[0].UnitID)

	recs, total, err = repo.Search(dbc, SearchCriteria{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, recs)
}

func TestSearchEscapesWildcards(t *testing.T) {
	repo, dbc := seedRegistry(t)

	_, total, err := repo.Search(dbc, SearchCriteria{Terms: []string{"50%"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = repo.Search(dbc, SearchCriteria{Terms: []string{"%"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestSearchPaginationIsStable(t *testing.T) {
	repo, dbc := seedRegistry(t)
	crit := SearchCriteria{Terms: []string{"ltd"}, OutwardCodes: []string{"NG7"}, Sort: SortDeliveryYearAsc, Limit: 2}

	first, total, err := repo.Search(dbc, crit)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	crit.Offset = 2
	second, _, err := repo.Search(dbc, crit)
	require.NoError(t, err)

	seen := map[uuid.UUID]bool{}
	for _, r := range append(first, second...) {
		assert.False(t, seen[r.ID], "duplicate row across pages")
		seen[r.ID] = true
	}
	assert.Len(t, seen, 4)
}

func TestCompanyNamesFallsBackToRegistry(t *testing.T) {
	repo, dbc := seedRegistry(t)

	names, err := repo.CompanyNames(dbc, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Battersea Storage 50% Ltd", "Drax Power Ltd", "Trent Gas Co"}, names)

	page, err := repo.CompanyNames(dbc, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Drax Power Ltd"}, page)

	rows, err := repo.CompanyRows(dbc, []string{"Trent Gas Co", "Drax Power Ltd"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Drax Power Ltd", rows[0].Organization)
	assert.Equal(t, "Trent Gas Co", rows[2].Organization)
	assert.Equal(t, "not777", rows[2].UnitKey)
}

func TestLocationQueries(t *testing.T) {
	repo, dbc := seedRegistry(t)

	locs, err := repo.DistinctLocations(dbc, 2, 0, 10)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, 2, locs[0].Count)

	codes, err := repo.OutwardCodesByLocationPrefix(dbc, "Battersea", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"SW11"}, codes)

	codes, err = repo.OutwardCodesByLocationSubstring(dbc, "london", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"SW11"}, codes)

	codes, err = repo.OutwardCodesByLocationPrefix(dbc, "london", 10)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestUpsertAndDeratedBackfillQueries(t *testing.T) {
	db := testutil.DB(t)
	repo := NewComponentRepo(db, testutil.Logger(t))
	dbc := dbctx.New(context.Background())

	rec := testutil.ComponentFixture{
		ComponentID: "c-1", UnitID: "ABC123", CompanyName: "Acme",
		Location: "Leeds LS1 2AB", Extras: map[string]interface{}{"De-Rated Capacity": "12.5"},
	}.Record()
	n, err := repo.UpsertMany(dbc, []*types.ComponentRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again := testutil.ComponentFixture{ComponentID: "c-1", UnitID: "ABC123", CompanyName: "Acme Renamed", Location: "Leeds LS1 2AB", Extras: map[string]interface{}{"De-Rated Capacity": "12.5"}}.Record()
	_, err = repo.UpsertMany(dbc, []*types.ComponentRecord{again})
	require.NoError(t, err)

	got, err := repo.ListByUnitKey(dbc, "abc123")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Acme Renamed", got[0].CompanyName)

	missing, err := repo.ListMissingDerated(dbc, uuid.Nil, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	v := 12.5
	require.NoError(t, repo.UpdateDerated(dbc, missing[0].ID, &v))
	missing, err = repo.ListMissingDerated(dbc, uuid.Nil, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
