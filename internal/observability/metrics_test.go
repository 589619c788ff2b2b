package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/api/search", "200", time.Millisecond)
	m.ObserveTierLookup("redis", "hit", time.Millisecond)
	m.IncTierPromotion("redis", true)
	m.ObserveSearch("general", true, time.Millisecond)
	m.IncJobRun("company_index", "completed")
	m.AddJobRecords("company_index", "processed", 3)
	m.ObserveUpstream("components", false, time.Millisecond)
	m.RegisterDB(nil, "capacity")
	assert.Nil(t, m.Registry())
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveTierLookup("shard", "hit", 2*time.Millisecond)
	m.ObserveTierLookup("shard", "hit", 2*time.Millisecond)
	m.IncTierPromotion("memory", true)
	m.AddJobRecords("location_mapping_full", "skipped", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tierLookups.WithLabelValues("shard", "hit")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.jobRecords.WithLabelValues("location_mapping_full", "skipped")))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `capacity_tier_lookups_total{outcome="hit",tier="shard"} 2`)
	assert.Contains(t, string(body), `capacity_tier_promotions_total{status="ok",tier="memory"} 1`)
}
