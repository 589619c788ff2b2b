package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/capacity-checker/internal/cache"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/normalization"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
	"github.com/yungbote/capacity-checker/internal/search/fuzzy"
	"github.com/yungbote/capacity-checker/internal/search/resolver"
)

type Kind string

const (
	KindEmpty   Kind = "empty"
	KindUnitID  Kind = "cmu_id"
	KindGeneral Kind = "general"
)

const DefaultQueryCacheTTL = 5 * time.Minute

var QueryNamespace = types.CacheNamespace{Name: "query", Version: "v1"}

// Classify decides which resolution path a query takes.
func Classify(query string) Kind {
	switch {
	case strings.TrimSpace(query) == "":
		return KindEmpty
	case normalization.IsUnitID(query):
		return KindUnitID
	default:
		return KindGeneral
	}
}

type Request struct {
	Query    string           `json:"query"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Sort     string           `json:"sort,omitempty"`
	Filters  resolver.Filters `json:"filters"`
}

type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Result struct {
	Kind            Kind                     `json:"kind"`
	Query           string                   `json:"query"`
	Organizations   []fuzzy.Candidate        `json:"organizations"`
	Components      []*types.ComponentRecord `json:"components"`
	TotalComponents int64                    `json:"total_components"`
	TotalPages      int                      `json:"total_pages"`
	Page            int                      `json:"page"`
	PageSize        int                      `json:"page_size"`
	Degraded        bool                     `json:"degraded,omitempty"`
	Cached          bool                     `json:"cached,omitempty"`
	Error           *ResultError             `json:"error,omitempty"`
}

// Components resolves units and searches components.
type Components interface {
	ByUnitID(ctx context.Context, id string) ([]*types.ComponentRecord, error)
	BroadSearch(ctx context.Context, q resolver.BroadQuery) ([]*types.ComponentRecord, int64, error)
}

// IndexSource supplies the current company index.
type IndexSource interface {
	Load(ctx context.Context) (*types.CompanyIndex, bool, error)
}

// CandidateFinder ranks index entries against a query.
type CandidateFinder interface {
	Find(query string, index *types.CompanyIndex) []fuzzy.Candidate
}

type Config struct {
	QueryCacheTTL time.Duration
	// OrganizationLimit caps the organizations returned alongside components.
	OrganizationLimit int
}

type Orchestrator struct {
	components Components
	index      IndexSource
	finder     CandidateFinder
	queryCache cache.Store
	cfg        Config
	log        *logger.Logger
	metrics    *observability.Metrics
}

// New wires an orchestrator. queryCache may be nil to disable result caching.
func New(log *logger.Logger, metrics *observability.Metrics, components Components, index IndexSource, finder CandidateFinder, queryCache cache.Store, cfg Config) *Orchestrator {
	if cfg.QueryCacheTTL <= 0 {
		cfg.QueryCacheTTL = DefaultQueryCacheTTL
	}
	if cfg.OrganizationLimit <= 0 {
		cfg.OrganizationLimit = fuzzy.DefaultLimit
	}
	return &Orchestrator{
		components: components,
		index:      index,
		finder:     finder,
		queryCache: queryCache,
		cfg:        cfg,
		log:        log.With("component", "QueryOrchestrator"),
		metrics:    metrics,
	}
}

// Resolve runs one query through a single pass of the classify and resolve states.
// Failures are reported in Result.Error, never as a Go error.
func (o *Orchestrator) Resolve(ctx context.Context, req Request) Result {
	page, size, _ := resolver.Page(req.Page, req.PageSize)
	req.Page, req.PageSize = page, size
	kind := Classify(req.Query)

	ctx, span := observability.StartSpan(ctx, "orchestrator.resolve",
		attribute.String("query.kind", string(kind)),
		attribute.Int("page", page),
	)
	defer span.End()

	res := Result{
		Kind:          kind,
		Query:         req.Query,
		Organizations: []fuzzy.Candidate{},
		Components:    []*types.ComponentRecord{},
		Page:          page,
		PageSize:      size,
	}
	switch kind {
	case KindEmpty:
		return res
	case KindUnitID:
		o.resolveUnit(ctx, req, &res)
	default:
		if cached, ok := o.cachedResult(ctx, req); ok {
			return cached
		}
		o.resolveGeneral(ctx, req, &res)
		if res.Error == nil && !res.Degraded {
			o.storeResult(ctx, req, res)
		}
	}
	if res.Error != nil {
		span.SetAttributes(attribute.String("error.code", res.Error.Code))
	}
	return res
}

func (o *Orchestrator) resolveUnit(ctx context.Context, req Request, res *Result) {
	recs, err := o.components.ByUnitID(ctx, req.Query)
	if err != nil {
		o.log.Error("unit lookup failed", "query", req.Query, "error", err)
		res.Error = &ResultError{Code: "unit_lookup_failed", Message: err.Error()}
		return
	}
	sortRecords(recs, req.Sort)
	res.TotalComponents = int64(len(recs))
	res.TotalPages = totalPages(res.TotalComponents, req.PageSize)
	start := (req.Page - 1) * req.PageSize
	if start < len(recs) {
		end := start + req.PageSize
		if end > len(recs) {
			end = len(recs)
		}
		res.Components = recs[start:end]
	}
}

func (o *Orchestrator) resolveGeneral(ctx context.Context, req Request, res *Result) {
	var boost []string
	candidates, err := o.matchOrganizations(ctx, req.Query)
	if err != nil {
		o.log.Warn("company matching failed, searching without boost", "query", req.Query, "error", err)
		res.Degraded = true
	} else {
		o.metrics.ObserveFuzzyCandidates(len(candidates))
		seen := map[string]bool{}
		for _, c := range candidates {
			for _, id := range c.Entry.UnitIDs {
				if !seen[id] {
					seen[id] = true
					boost = append(boost, id)
				}
			}
		}
		if len(candidates) > o.cfg.OrganizationLimit {
			candidates = candidates[:o.cfg.OrganizationLimit]
		}
		res.Organizations = candidates
	}

	recs, total, err := o.components.BroadSearch(ctx, resolver.BroadQuery{
		Query:         req.Query,
		BoostUnitKeys: boost,
		Filters:       req.Filters,
		Sort:          req.Sort,
		Page:          req.Page,
		PageSize:      req.PageSize,
	})
	if err != nil {
		o.log.Error("component search failed", "query", req.Query, "error", err)
		res.Error = &ResultError{Code: "search_failed", Message: err.Error()}
		return
	}
	res.Components = recs
	res.TotalComponents = total
	res.TotalPages = totalPages(total, req.PageSize)
}

func (o *Orchestrator) matchOrganizations(ctx context.Context, query string) ([]fuzzy.Candidate, error) {
	if o.index == nil || o.finder == nil {
		return []fuzzy.Candidate{}, nil
	}
	index, ok, err := o.index.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		o.log.Debug("company index not built yet")
		return []fuzzy.Candidate{}, nil
	}
	return o.finder.Find(query, index), nil
}

func sortRecords(recs []*types.ComponentRecord, order string) {
	sort.SliceStable(recs, func(i, j int) bool {
		switch order {
		case resolver.SortDeliveryYearAsc:
			return recs[i].DeliveryYear < recs[j].DeliveryYear
		case resolver.SortLocation:
			return recs[i].Location < recs[j].Location
		default:
			return recs[i].DeliveryYear > recs[j].DeliveryYear
		}
	})
}

func totalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

func cacheKey(req Request) string {
	f := req.Filters
	return strings.Join([]string{
		normalization.Place(req.Query),
		fmt.Sprint(req.Page),
		fmt.Sprint(req.PageSize),
		req.Sort,
		strings.ToLower(f.Technology),
		strings.ToLower(f.DeliveryYear),
		strings.ToLower(f.AuctionName),
		strings.ToLower(f.Status),
	}, "|")
}

func (o *Orchestrator) cachedResult(ctx context.Context, req Request) (Result, bool) {
	if o.queryCache == nil {
		return Result{}, false
	}
	raw, ok, err := o.queryCache.Get(ctx, QueryNamespace, cacheKey(req))
	if err != nil {
		o.log.Warn("query cache read failed", "error", err)
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		o.log.Warn("discarding undecodable cached result", "error", err)
		return Result{}, false
	}
	res.Cached = true
	return res, true
}

func (o *Orchestrator) storeResult(ctx context.Context, req Request, res Result) {
	if o.queryCache == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	err = o.queryCache.Set(ctx, types.CacheEnvelope{
		Namespace: QueryNamespace,
		Key:       cacheKey(req),
		Value:     raw,
		TTL:       o.cfg.QueryCacheTTL,
	})
	if err != nil {
		o.log.Warn("query cache write failed", "error", err)
	}
}
