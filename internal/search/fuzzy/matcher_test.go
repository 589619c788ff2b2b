package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/capacity-checker/internal/domain"
)

func testIndex(names ...string) *types.CompanyIndex {
	idx := &types.CompanyIndex{}
	for i, n := range names {
		idx.Entries = append(idx.Entries, types.CompanyIndexEntry{
			Key:         n,
			CompanyName: n,
			UnitIDs:     []string{string(rune('A'+i)) + "XX001"},
		})
	}
	idx.Reindex()
	return idx
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100.0, PartialRatio("storage", "energystorageltd"))
	assert.Equal(t, 100.0, PartialRatio("energystorageltd", "storage"))
	assert.Equal(t, 0.0, PartialRatio("", "anything"))
	assert.InDelta(t, 85.71, PartialRatio("energy storage", "energystorageltd"), 0.01)
	assert.Less(t, PartialRatio("zzzz", "energystorageltd"), 50.0)
}

func TestPartialTokenSetRatioSharedToken(t *testing.T) {
	assert.Equal(t, 100.0, PartialTokenSetRatio("drax power", "power station"))
	assert.Equal(t, 0.0, PartialTokenSetRatio("   ", "power"))
}

func TestFindEnergyStorage(t *testing.T) {
	idx := testIndex("acmepower", "energystorageltd", "gridbatteries")

	got := Find("energy storage", idx, Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "energystorageltd", got[0].Entry.Key)
	assert.GreaterOrEqual(t, got[0].Score, DefaultCutoff)
	assert.Equal(t, []string{"BXX001"}, got[0].Entry.UnitIDs)
}

func TestFindRespectsCutoffAndOrdering(t *testing.T) {
	idx := testIndex("northpower", "southpowerltd", "northpowerco", "eastwind", "powergen")

	for _, cutoff := range []float64{50, 70, 85, 95} {
		got := Find("north power", idx, Options{Cutoff: CutoffOf(cutoff)})
		for i, c := range got {
			assert.GreaterOrEqual(t, c.Score, cutoff)
			assert.Greater(t, c.Score, 0.0)
			if i > 0 {
				assert.LessOrEqual(t, c.Score, got[i-1].Score)
			}
		}
	}

	got := Find("northpower", idx, Options{Cutoff: CutoffOf(85)})
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, "northpower", got[0].Entry.Key)
	assert.Equal(t, "northpowerco", got[1].Entry.Key)
}

func TestFindLimitAndEmptyInputs(t *testing.T) {
	idx := testIndex("powera", "powerb", "powerc", "powerd")

	assert.Len(t, Find("power", idx, Options{Limit: 2}), 2)
	assert.Empty(t, Find("", idx, Options{}))
	assert.Empty(t, Find("p", idx, Options{}))
	assert.Empty(t, Find("power", &types.CompanyIndex{}, Options{}))
	assert.Empty(t, Find("power", nil, Options{}))
}

func TestMatcherAppliesDefaults(t *testing.T) {
	m := NewMatcher(Options{})
	assert.Equal(t, DefaultCutoff, m.Cutoff())
	assert.Equal(t, DefaultLimit, m.Limit())
	assert.Len(t, m.Find("energy storage", testIndex("energystorageltd")), 1)
}

func TestZeroCutoffKeepsEveryPositiveScore(t *testing.T) {
	idx := testIndex("northpower", "eastwind", "zzzzzz")

	all := Find("north power", idx, Options{Cutoff: CutoffOf(0)})
	strict := Find("north power", idx, Options{})
	assert.Greater(t, len(all), len(strict))
	for _, c := range all {
		assert.Greater(t, c.Score, 0.0)
	}
	assert.Equal(t, 0.0, NewMatcher(Options{Cutoff: CutoffOf(0)}).Cutoff())
}
