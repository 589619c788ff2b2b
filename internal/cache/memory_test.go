package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/capacity-checker/internal/domain"
)

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ns := types.CacheNamespace{Name: "unit", Version: "v1"}

	require.NoError(t, s.Set(ctx, types.CacheEnvelope{Namespace: ns, Key: "abc123", Value: []byte(`[1]`), TTL: time.Minute}))
	require.NoError(t, s.Set(ctx, types.CacheEnvelope{Namespace: ns, Key: "forever", Value: []byte(`[2]`)}))

	v, ok, err := s.Get(ctx, ns, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[1]`, string(v))

	now = now.Add(2 * time.Minute)
	_, ok, err = s.Get(ctx, ns, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = s.Get(ctx, ns, "forever")
	assert.True(t, ok)

	_, ok, _ = s.Get(ctx, types.CacheNamespace{Name: "unit", Version: "v2"}, "forever")
	assert.False(t, ok, "namespaces are versioned")

	require.NoError(t, s.Delete(ctx, ns, "forever"))
	_, ok, _ = s.Get(ctx, ns, "forever")
	assert.False(t, ok)
}

func TestMemoryStoreSetMany(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ns := types.CacheNamespace{Name: "company_index", Version: "v1"}
	require.NoError(t, s.SetMany(ctx,
		types.CacheEnvelope{Namespace: ns, Key: "current", Value: []byte(`{}`)},
		types.CacheEnvelope{Namespace: ns, Key: "last_updated", Value: []byte(`"t"`)},
	))
	_, ok, _ := s.Get(ctx, ns, "current")
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, ns, "last_updated")
	assert.True(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err := s.Get(cancelled, ns, "current")
	assert.Error(t, err)
}
