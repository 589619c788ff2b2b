package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yungbote/capacity-checker/internal/clients/upstream"
	"github.com/yungbote/capacity-checker/internal/data/repos"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

// UnitNamespace holds a unit's encoded components in key-value tiers.
var UnitNamespace = types.CacheNamespace{Name: "unit", Version: "v1"}

// EncodeComponents is the value format shared by every unit tier.
func EncodeComponents(recs []*types.ComponentRecord) ([]byte, error) {
	if recs == nil {
		recs = []*types.ComponentRecord{}
	}
	return json.Marshal(recs)
}

func DecodeComponents(raw []byte) ([]*types.ComponentRecord, error) {
	out := []*types.ComponentRecord{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errs.Malformed("unit components", err.Error())
	}
	return out, nil
}

// RelationalTier serves a unit's components from the relational store. Values promoted
// into it from the upstream tier are upserted.
type RelationalTier struct {
	components repos.ComponentRepo
}

func NewRelationalTier(componentRepo repos.ComponentRepo) *RelationalTier {
	return &RelationalTier{components: componentRepo}
}

func (t *RelationalTier) Name() string              { return "relational" }
func (t *RelationalTier) DefaultTTL() time.Duration { return 0 }

func (t *RelationalTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	recs, err := t.components.ListByUnitKey(dbctx.New(ctx), key)
	if err != nil {
		return nil, false, err
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	raw, err := EncodeComponents(recs)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (t *RelationalTier) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	recs, err := DecodeComponents(value)
	if err != nil {
		return err
	}
	_, err = t.components.UpsertMany(dbctx.New(ctx), recs)
	return err
}

// UpstreamTier fetches a unit's components from the public datastore. It is the last tier
// and never accepts writes.
type UpstreamTier struct {
	client upstream.Client
	log    *logger.Logger
}

func NewUpstreamTier(client upstream.Client, log *logger.Logger) *UpstreamTier {
	return &UpstreamTier{client: client, log: log.With("tier", "upstream")}
}

func (t *UpstreamTier) Name() string              { return "upstream" }
func (t *UpstreamTier) DefaultTTL() time.Duration { return 0 }
func (t *UpstreamTier) ReadOnly() bool            { return true }

func (t *UpstreamTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rows, err := t.client.ComponentsForUnit(ctx, key)
	if err != nil {
		return nil, false, err
	}
	recs, bad := upstream.ParseComponents(rows)
	if bad > 0 {
		t.log.Warn("skipped malformed upstream records", "key", key, "count", bad)
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	raw, err := EncodeComponents(recs)
	if err != nil {
		return nil, false, fmt.Errorf("encode upstream components: %w", err)
	}
	return raw, true, nil
}

func (t *UpstreamTier) Set(context.Context, string, []byte, time.Duration) error { return nil }
