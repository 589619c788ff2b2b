package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/capacity-checker/internal/normalization"
	"github.com/yungbote/capacity-checker/internal/observability"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

// Lookup is the outcome of a chained read. A miss everywhere is Found=false with no error.
// Value is shared between callers collapsed onto the same read and must not be modified.
type Lookup struct {
	Value      []byte
	Found      bool
	Tier       string
	TierIndex  int
	Degraded   bool
	TierErrors []error
}

// Manager reads through an ordered list of tiers, fastest first, and promotes hits into
// every faster tier before returning.
type Manager struct {
	tiers   []Tier
	log     *logger.Logger
	metrics *observability.Metrics
	group   singleflight.Group
}

func NewManager(log *logger.Logger, metrics *observability.Metrics, tiers ...Tier) *Manager {
	return &Manager{
		tiers:   tiers,
		log:     log.With("component", "CacheTierManager"),
		metrics: metrics,
	}
}

func (m *Manager) Tiers() []string {
	out := make([]string, 0, len(m.tiers))
	for _, t := range m.tiers {
		out = append(out, t.Name())
	}
	return out
}

// Get normalizes key and walks the tiers. Tier failures are absorbed and recorded in
// Lookup.TierErrors; an error is returned only when every tier failed.
func (m *Manager) Get(ctx context.Context, key string) (Lookup, error) {
	k := normalization.Key(key)
	if k == "" {
		return Lookup{TierIndex: -1}, nil
	}
	// The shared read outlives any single caller; each caller still honours its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(k, func() (interface{}, error) {
		return m.get(shared, k)
	})
	select {
	case <-ctx.Done():
		return Lookup{TierIndex: -1}, ctx.Err()
	case r := <-ch:
		lookup, _ := r.Val.(Lookup)
		return lookup, r.Err
	}
}

func (m *Manager) get(ctx context.Context, key string) (Lookup, error) {
	var tierErrs []error
	for i, t := range m.tiers {
		value, ok, err := m.tierGet(ctx, t, key)
		if err != nil {
			tierErrs = append(tierErrs, errs.Transient(t.Name(), "get", err))
			m.log.Warn("cache tier read failed", "tier", t.Name(), "key", key, "error", err)
			continue
		}
		if !ok {
			continue
		}
		m.promote(ctx, key, value, i)
		return Lookup{
			Value:      value,
			Found:      true,
			Tier:       t.Name(),
			TierIndex:  i,
			Degraded:   len(tierErrs) > 0,
			TierErrors: tierErrs,
		}, nil
	}
	lookup := Lookup{TierIndex: -1, Degraded: len(tierErrs) > 0, TierErrors: tierErrs}
	if len(m.tiers) > 0 && len(tierErrs) == len(m.tiers) {
		return lookup, fmt.Errorf("all %d cache tiers failed: %w", len(m.tiers), errors.Join(tierErrs...))
	}
	m.log.Debug("key not found in any tier", "key", key)
	return lookup, nil
}

func (m *Manager) tierGet(ctx context.Context, t Tier, key string) (value []byte, ok bool, err error) {
	ctx, span := observability.StartSpan(ctx, "cache.tier.get",
		attribute.String("cache.tier", t.Name()),
		attribute.String("cache.key", key),
	)
	start := time.Now()
	defer func() {
		outcome := "miss"
		switch {
		case err != nil:
			outcome = "error"
		case ok:
			outcome = "hit"
		}
		span.SetAttributes(attribute.String("cache.outcome", outcome))
		m.metrics.ObserveTierLookup(t.Name(), outcome, time.Since(start))
		observability.EndSpan(span, err)
	}()
	return t.Get(ctx, key)
}

// promote writes value into tiers hitIndex-1 down to 0, so the fastest tier is written last.
func (m *Manager) promote(ctx context.Context, key string, value []byte, hitIndex int) {
	for j := hitIndex - 1; j >= 0; j-- {
		t := m.tiers[j]
		if isReadOnly(t) {
			continue
		}
		err := t.Set(ctx, key, value, t.DefaultTTL())
		m.metrics.IncTierPromotion(t.Name(), err == nil)
		if err != nil {
			m.log.Warn("cache promotion failed", "tier", t.Name(), "key", key, "error", err)
		}
	}
}

// Set writes value into every writable tier. ttl <= 0 uses each tier's default.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k := normalization.Key(key)
	if k == "" {
		return nil
	}
	var failed []error
	for _, t := range m.tiers {
		if isReadOnly(t) {
			continue
		}
		d := ttl
		if d <= 0 {
			d = t.DefaultTTL()
		}
		if err := t.Set(ctx, k, value, d); err != nil {
			failed = append(failed, errs.Transient(t.Name(), "set", err))
		}
	}
	return errors.Join(failed...)
}

// Invalidate removes key from every tier that supports deletion, so the next read is
// served by the source of truth and repopulates the faster tiers.
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	k := normalization.Key(key)
	if k == "" {
		return nil
	}
	m.group.Forget(k)
	var failed []error
	for _, t := range m.tiers {
		d, ok := t.(DeletableTier)
		if !ok {
			continue
		}
		if err := d.Delete(ctx, k); err != nil {
			failed = append(failed, errs.Transient(t.Name(), "delete", err))
		}
	}
	return errors.Join(failed...)
}
