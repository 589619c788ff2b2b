package cache

import (
	"context"
	"time"

	types "github.com/yungbote/capacity-checker/internal/domain"
)

// Store is a namespaced key/value store with optional expiry.
type Store interface {
	Get(ctx context.Context, ns types.CacheNamespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, env types.CacheEnvelope) error
	// SetMany writes all envelopes atomically where the backend allows it.
	SetMany(ctx context.Context, envs ...types.CacheEnvelope) error
	Delete(ctx context.Context, ns types.CacheNamespace, key string) error
}

// Tier is one level of the lookup chain. Keys arrive already normalized.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DefaultTTL() time.Duration
}

// ReadOnlyTier is implemented by tiers that never accept promotions.
type ReadOnlyTier interface {
	ReadOnly() bool
}

// DeletableTier is implemented by tiers that support invalidation.
type DeletableTier interface {
	Delete(ctx context.Context, key string) error
}

func isReadOnly(t Tier) bool {
	ro, ok := t.(ReadOnlyTier)
	return ok && ro.ReadOnly()
}

// StoreTier exposes one namespace of a Store as a Tier.
type StoreTier struct {
	name  string
	store Store
	ns    types.CacheNamespace
	ttl   time.Duration
}

func NewStoreTier(name string, store Store, ns types.CacheNamespace, ttl time.Duration) *StoreTier {
	return &StoreTier{name: name, store: store, ns: ns, ttl: ttl}
}

func (t *StoreTier) Name() string              { return t.name }
func (t *StoreTier) DefaultTTL() time.Duration { return t.ttl }

func (t *StoreTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return t.store.Get(ctx, t.ns, key)
}

func (t *StoreTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return t.store.Set(ctx, types.CacheEnvelope{Namespace: t.ns, Key: key, Value: value, TTL: ttl})
}

func (t *StoreTier) Delete(ctx context.Context, key string) error {
	return t.store.Delete(ctx, t.ns, key)
}
