package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yungbote/capacity-checker/internal/cache"
	types "github.com/yungbote/capacity-checker/internal/domain"
)

const (
	keyCurrent     = "current"
	keyLastUpdated = "last_updated"
)

type loaded[T any] struct {
	stamp string
	value *T
}

// Blob is a derived dataset published as a single value plus a build stamp. Readers decode
// the blob once per stamp and share the decoded value until a newer build is published.
type Blob[T any] struct {
	store   cache.Store
	ns      types.CacheNamespace
	prepare func(*T)

	current atomic.Pointer[loaded[T]]
}

// New returns a Blob under ns. prepare, when set, runs once on every freshly decoded value.
func New[T any](store cache.Store, ns types.CacheNamespace, prepare func(*T)) *Blob[T] {
	return &Blob[T]{store: store, ns: ns, prepare: prepare}
}

func (b *Blob[T]) Namespace() types.CacheNamespace { return b.ns }

// Publish writes the value and its stamp in one SetMany. ttl 0 means no expiry.
func (b *Blob[T]) Publish(ctx context.Context, v *T, builtAt time.Time, ttl time.Duration) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.ns.Name, err)
	}
	stamp, err := json.Marshal(builtAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	return b.store.SetMany(ctx,
		types.CacheEnvelope{Namespace: b.ns, Key: keyCurrent, Value: blob, TTL: ttl},
		types.CacheEnvelope{Namespace: b.ns, Key: keyLastUpdated, Value: stamp, TTL: ttl},
	)
}

// Present reports whether a published value exists.
func (b *Blob[T]) Present(ctx context.Context) (bool, error) {
	_, ok, err := b.store.Get(ctx, b.ns, keyCurrent)
	return ok, err
}

// Load returns the published value. Nothing published is (nil, false, nil).
func (b *Blob[T]) Load(ctx context.Context) (*T, bool, error) {
	stamp, ok, err := b.store.Get(ctx, b.ns, keyLastUpdated)
	if err != nil || !ok {
		return nil, false, err
	}
	if cur := b.current.Load(); cur != nil && cur.stamp == string(stamp) {
		return cur.value, true, nil
	}
	raw, ok, err := b.store.Get(ctx, b.ns, keyCurrent)
	if err != nil || !ok {
		return nil, false, err
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", b.ns.Name, err)
	}
	if b.prepare != nil {
		b.prepare(v)
	}
	b.current.Store(&loaded[T]{stamp: string(stamp), value: v})
	return v, true, nil
}
