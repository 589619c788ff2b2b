package resolver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/data/repos"
	"github.com/yungbote/capacity-checker/internal/data/repos/components"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/normalization"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
	"github.com/yungbote/capacity-checker/internal/search/location"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500

	SortDeliveryYearDesc = components.SortDeliveryYearDesc
	SortDeliveryYearAsc  = components.SortDeliveryYearAsc
	SortLocation         = components.SortLocation

	locationLookupConcurrency = 4
)

// LocationLookup resolves a search term to outward codes.
type LocationLookup interface {
	Lookup(ctx context.Context, term string) (location.LookupResult, error)
}

type Filters struct {
	Technology   string `json:"technology,omitempty"`
	DeliveryYear string `json:"delivery_year,omitempty"`
	AuctionName  string `json:"auction_name,omitempty"`
	Status       string `json:"status,omitempty"`
}

type BroadQuery struct {
	Query string
	// Terms defaults to the query split into terms.
	Terms         []string
	BoostUnitKeys []string
	Filters       Filters
	Sort          string
	Page          int
	PageSize      int
}

// Page normalizes page and size and returns the row offset.
func Page(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size, (page - 1) * size
}

type Resolver struct {
	manager    *cache.Manager
	components repos.ComponentRepo
	locations  LocationLookup
	log        *logger.Logger
	metrics    *observability.Metrics
}

// New builds a resolver. locations may be nil, in which case searches get no geographic
// expansion.
func New(log *logger.Logger, metrics *observability.Metrics, manager *cache.Manager, componentRepo repos.ComponentRepo, locations LocationLookup) *Resolver {
	return &Resolver{
		manager:    manager,
		components: componentRepo,
		locations:  locations,
		log:        log.With("component", "ComponentResolver"),
		metrics:    metrics,
	}
}

// ByUnitID reads a unit's components through the tier chain. An unknown unit is an empty
// slice and no error.
func (r *Resolver) ByUnitID(ctx context.Context, id string) (out []*types.ComponentRecord, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "resolver.by_unit_id", attribute.String("unit_id", id))
	defer func() {
		r.metrics.ObserveSearch("unit", err == nil, time.Since(start))
		observability.EndSpan(span, err)
	}()

	lookup, err := r.manager.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lookup.Found {
		return []*types.ComponentRecord{}, nil
	}
	span.SetAttributes(attribute.String("cache.tier", lookup.Tier))
	if lookup.Degraded {
		r.log.Info("unit served after tier failures", "unit_id", id, "tier", lookup.Tier, "failed_tiers", len(lookup.TierErrors))
	}
	return DecodeComponents(lookup.Value)
}

// BroadSearch matches components by any term, any outward code the terms resolve to, or any
// boosted unit. A unit-id shaped query is matched exactly instead.
func (r *Resolver) BroadSearch(ctx context.Context, q BroadQuery) (out []*types.ComponentRecord, total int64, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "resolver.broad_search",
		attribute.String("query", q.Query),
		attribute.Int("boost_units", len(q.BoostUnitKeys)),
	)
	defer func() {
		r.metrics.ObserveSearch("broad", err == nil, time.Since(start))
		observability.EndSpan(span, err)
	}()

	_, size, offset := Page(q.Page, q.PageSize)
	crit := components.SearchCriteria{
		Technology:   q.Filters.Technology,
		DeliveryYear: q.Filters.DeliveryYear,
		AuctionName:  q.Filters.AuctionName,
		Status:       q.Filters.Status,
		Sort:         q.Sort,
		Offset:       offset,
		Limit:        size,
	}
	if normalization.IsUnitID(q.Query) {
		crit.ExactUnitKey = normalization.Key(q.Query)
	} else {
		terms := q.Terms
		if terms == nil {
			terms = normalization.Terms(q.Query)
		}
		crit.Terms = terms
		crit.OutwardCodes = r.outwardCodes(ctx, terms)
		crit.BoostUnitKeys = normalizeKeys(q.BoostUnitKeys)
	}
	return r.components.Search(dbctx.New(ctx), crit)
}

// outwardCodes looks every term up concurrently. Failed and generic lookups add nothing.
func (r *Resolver) outwardCodes(ctx context.Context, terms []string) []string {
	if r.locations == nil || len(terms) == 0 {
		return nil
	}
	var (
		mu    sync.Mutex
		codes = map[string]struct{}{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(locationLookupConcurrency)
	for _, term := range terms {
		g.Go(func() error {
			res, err := r.locations.Lookup(gctx, term)
			if err != nil {
				r.log.Warn("location lookup failed", "term", term, "error", err)
				return nil
			}
			if res.Generic {
				r.log.Debug("term is not geographic", "term", term)
				return nil
			}
			mu.Lock()
			for _, c := range res.OutwardCodes {
				codes[strings.ToUpper(c)] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	out := make([]string, 0, len(codes))
	for c := range codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func normalizeKeys(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		k := normalization.Key(id)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
