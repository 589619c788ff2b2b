package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUnitID(t *testing.T) {
	assert.True(t, IsUnitID("ABC123"))
	assert.True(t, IsUnitID(" xyz999 "))
	assert.False(t, IsUnitID("AB1234"))
	assert.False(t, IsUnitID("ABC1234"))
	assert.False(t, IsUnitID("drax power"))
}

func TestOutwardCode(t *testing.T) {
	cases := map[string]string{
		"Drax Power Station, Selby, YO8 8PH":   "YO8",
		"Battersea Power Station, London SW11": "SW11",
		"Unit 4, Nottingham NG1 5FS":           "NG1",
		"1 High St, Manchester, M1 1AA":        "M1",
		"London EC1A 1BB":                      "EC1A",
		"Site near Leeds":                      "",
		"":                                     "",
		"NG7":                                  "",
		"Old depot LS1 2AB then moved to LS9 8AA": "LS9",
	}
	for in, want := range cases {
		assert.Equal(t, want, OutwardCode(in), "location %q", in)
	}
}

func TestPostalAreas(t *testing.T) {
	assert.Equal(t, "SW", PostalArea("sw11"))
	assert.Equal(t, "M", PostalArea("M1"))
	assert.Equal(t, 2, DistinctAreas([]string{"SW11", "SW8", "SE15", "se5"}))
	assert.True(t, IsOutwardCode("NG7"))
	assert.False(t, IsOutwardCode("7NG"))
}
