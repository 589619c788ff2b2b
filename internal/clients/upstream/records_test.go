package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
)

func TestParseComponent(t *testing.T) {
	rec, err := ParseComponent(Record{
		"_id":                           float64(42),
		"CMU ID":                        " ABC123 ",
		"Location and Post Code":        "Drax Power Station, Selby, YO8 8PH",
		"Description of CMU Components": "Unit 1",
		"Generating Technology Class":   "Biomass",
		"Company Name":                  "Drax Power Ltd",
		"Delivery Year":                 float64(2024),
		"Status":                        "nan",
		"De-Rated Capacity":             "1,234.5 MW",
		"Connection / DSR Capacity":     "1300",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", rec.ComponentID)
	assert.Equal(t, "ABC123", rec.UnitID)
	assert.Equal(t, "abc123", rec.UnitKey)
	assert.Equal(t, "YO8", rec.OutwardCode)
	assert.Equal(t, "2024", rec.DeliveryYear)
	assert.Equal(t, "", rec.Status)
	require.NotNil(t, rec.DeratedCapacityMW)
	assert.InDelta(t, 1234.5, *rec.DeratedCapacityMW, 1e-9)
	assert.Equal(t, "1300", rec.Extras["Connection / DSR Capacity"])
	assert.Equal(t, "1,234.5 MW", rec.Extras["De-Rated Capacity"])
	_, known := rec.Extras["Company Name"]
	assert.False(t, known)
}

func TestParseComponentSyntheticIDIsStable(t *testing.T) {
	r := Record{"CMU ID": "ABC123", "Location and Post Code": "Selby"}
	a, err := ParseComponent(r)
	require.NoError(t, err)
	b, err := ParseComponent(r)
	require.NoError(t, err)
	assert.Equal(t, a.ComponentID, b.ComponentID)
	assert.Contains(t, a.ComponentID, "syn-")
}

func TestParseRejectsMissingUnitID(t *testing.T) {
	_, err := ParseComponent(Record{"_id": float64(1)})
	assert.True(t, errs.IsMalformed(err))
	_, err = ParseUnit(Record{"Name of Applicant": "x"})
	assert.True(t, errs.IsMalformed(err))
}

func TestParseUnitFallsBackToParent(t *testing.T) {
	u, err := ParseUnit(Record{"CMU ID": "XYZ999", "Name of Applicant": "nan", "Parent Company": "Zed Holdings"})
	require.NoError(t, err)
	assert.Equal(t, "Zed Holdings", u.OrganizationName)
	assert.Equal(t, "xyz999", u.UnitKey)
}

func TestParseCapacity(t *testing.T) {
	assert.Nil(t, ParseCapacity(nil))
	assert.Nil(t, ParseCapacity("n/a"))
	assert.Nil(t, ParseCapacity("NaN"))
	assert.InDelta(t, 3.0, *ParseCapacity(float64(3)), 1e-9)
	assert.InDelta(t, 12.25, *ParseCapacity(" 12.25 "), 1e-9)
}

func TestParseComponentsDropsRepeatedIDs(t *testing.T) {
	recs, bad := ParseComponents([]Record{
		{"_id": float64(7), "CMU ID": "XYZ999", "Company Name": "Humber Gen"},
		{"_id": float64(7), "CMU ID": "XYZ999", "Company Name": "Humber Gen (dup)"},
		{"_id": float64(8), "Location and Post Code": "no unit id"},
		{"_id": float64(9), "CMU ID": "XYZ999"},
	})
	assert.Equal(t, 1, bad)
	require.Len(t, recs, 2)
	assert.Equal(t, "7", recs[0].ComponentID)
	assert.Equal(t, "Humber Gen", recs[0].CompanyName)
	assert.Equal(t, "9", recs[1].ComponentID)
}
