package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
)

func TestShardFile(t *testing.T) {
	assert.Equal(t, "components_A.json", ShardFile("abc123"))
	assert.Equal(t, "components_9.json", ShardFile("9xy001"))
	assert.Equal(t, "components__.json", ShardFile("/etc"))
	assert.Equal(t, "components__.json", ShardFile(""))
}

func TestShardStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewShardStore(dir)
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "abc123", []byte(`[{"unit_id":"ABC123"}]`), 0))
	require.NoError(t, s.Set(ctx, "abd456", []byte(`[]`), 0))

	v, ok, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"unit_id":"ABC123"}]`, string(v))

	raw, err := os.ReadFile(filepath.Join(dir, "components_A.json"))
	require.NoError(t, err)
	var onDisk map[string][]map[string]string
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Len(t, onDisk, 2)

	require.NoError(t, s.Delete(ctx, "abc123"))
	_, ok, _ = s.Get(ctx, "abc123")
	assert.False(t, ok)

	assert.Error(t, s.Set(ctx, "abc123", []byte(`not json`), 0))
}

func TestShardStoreConcurrentWritersKeepAllKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewShardStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "abc" + string(rune('a'+i))
			assert.NoError(t, s.Set(ctx, key, []byte(`[]`), 0))
		}(i)
	}
	wg.Wait()
	for i := 0; i < 20; i++ {
		_, ok, err := s.Get(ctx, "abc"+string(rune('a'+i)))
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestShardStoreCorruptFileIsTransient(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "components_X.json"), []byte("{broken"), 0o644))
	s, err := NewShardStore(dir)
	require.NoError(t, err)
	_, _, err = s.Get(context.Background(), "xyz001")
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
}

func TestNewShardStoreRequiresDir(t *testing.T) {
	_, err := NewShardStore(" ")
	assert.True(t, errs.IsConfiguration(err))
}
