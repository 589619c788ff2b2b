package location

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/capacity-checker/internal/cache"
	"github.com/yungbote/capacity-checker/internal/data/repos"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/jobs/runtime"
	"github.com/yungbote/capacity-checker/internal/normalization"
	"github.com/yungbote/capacity-checker/internal/observability"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
	"github.com/yungbote/capacity-checker/internal/search/snapshot"
)

const (
	ModeFull        = "full"
	ModeIncremental = "incremental"

	DefaultGenericAreaThreshold = 5
	DefaultLookupCap            = 200
	DefaultBatchSize            = 500
)

var Namespace = types.CacheNamespace{Name: "location_mapping", Version: "v1"}

// JobName is the checkpoint job for a rebuild mode; full and incremental runs resume separately.
func JobName(mode string) string { return "location_mapping_" + mode }

type Config struct {
	// GenericAreaThreshold is the number of distinct postal areas above which a place name
	// is treated as non-geographic.
	GenericAreaThreshold int
	LookupCap            int
	BatchSize            int
}

type RebuildOptions struct {
	Mode          string
	MinComponents int
	Budget        runtime.Budget
}

type RebuildStats struct {
	RunID      string `json:"run_id,omitempty"`
	Mode       string `json:"mode"`
	Resumed    bool   `json:"resumed"`
	Completed  bool   `json:"completed"`
	StopReason string `json:"stop_reason,omitempty"`
	Batches    int    `json:"batches"`
	Offset     int    `json:"offset"`
	Total      int    `json:"total"`
	Counters
}

// Counters are accumulated across the batches of one run.
type Counters struct {
	Locations       int `json:"locations"`
	Discarded       int `json:"discarded"`
	SkippedExisting int `json:"skipped_existing"`
	NoCodes         int `json:"no_codes"`
	Generic         int `json:"generic"`
	Added           int `json:"added"`
	Updated         int `json:"updated"`
}

// rebuildState is staged between batches.
type rebuildState struct {
	Entries  map[string]types.LocationMappingEntry `json:"entries"`
	Seen     map[string]bool                       `json:"seen"`
	Counters Counters                              `json:"counters"`
}

type Service struct {
	components  repos.ComponentRepo
	checkpoints repos.CheckpointRepo
	store       cache.Store
	blob        *snapshot.Blob[types.LocationMapping]
	log         *logger.Logger
	metrics     *observability.Metrics
	cfg         Config
	now         func() time.Time
}

func New(log *logger.Logger, metrics *observability.Metrics, componentRepo repos.ComponentRepo, checkpointRepo repos.CheckpointRepo, store cache.Store, cfg Config) *Service {
	if cfg.GenericAreaThreshold <= 0 {
		cfg.GenericAreaThreshold = DefaultGenericAreaThreshold
	}
	if cfg.LookupCap <= 0 {
		cfg.LookupCap = DefaultLookupCap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Service{
		components:  componentRepo,
		checkpoints: checkpointRepo,
		store:       store,
		blob:        snapshot.New(store, Namespace, (*types.LocationMapping).Reindex),
		log:         log.With("component", "LocationMapper"),
		metrics:     metrics,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Load returns the published mapping, or an empty mapping and false.
func (s *Service) Load(ctx context.Context) (*types.LocationMapping, bool, error) {
	m, ok, err := s.blob.Load(ctx)
	if err != nil || !ok {
		return &types.LocationMapping{Entries: map[string]types.LocationMappingEntry{}}, false, err
	}
	return m, true, nil
}

// Rebuild scans stored locations and publishes a new mapping. A full rebuild starts from the
// seeds and lets discovered places replace them. An incremental rebuild starts from the
// published mapping, never removes or changes an entry and only adds places it lacks.
func (s *Service) Rebuild(ctx context.Context, opts RebuildOptions) (stats RebuildStats, err error) {
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}
	if opts.Mode != ModeFull && opts.Mode != ModeIncremental {
		return stats, fmt.Errorf("%w: unknown rebuild mode %q", errs.ErrInvalidArgument, opts.Mode)
	}
	if opts.MinComponents < 1 {
		opts.MinComponents = 1
	}
	stats.Mode = opts.Mode

	ctx, span := observability.StartSpan(ctx, "location.rebuild",
		attribute.String("mode", opts.Mode),
		attribute.Int("min_components", opts.MinComponents),
	)
	defer func() { observability.EndSpan(span, err) }()

	run, err := runtime.Begin(ctx, runtime.Deps{
		Checkpoints: s.checkpoints,
		Store:       s.store,
		Log:         s.log,
		Metrics:     s.metrics,
	}, JobName(opts.Mode), opts.Budget)
	if err != nil {
		return stats, err
	}
	stats.RunID = run.RunID()
	stats.Resumed = run.Resumed

	state, err := s.initialState(ctx, run, opts.Mode)
	if err != nil {
		run.Fail(err)
		return stats, err
	}

	offset := run.Checkpoint.Offset
	dbc := dbctx.New(ctx)
	for {
		if !run.Allow() {
			run.Pause()
			stats.StopReason = run.StopReason()
			stats.Batches = run.Batches()
			stats.Offset = offset
			stats.Counters = state.Counters
			stats.Total = len(state.Entries)
			return stats, nil
		}
		batch, err := s.components.DistinctLocations(dbc, opts.MinComponents, offset, s.cfg.BatchSize)
		if err != nil {
			run.Fail(err)
			return stats, fmt.Errorf("list locations at offset %d: %w", offset, err)
		}
		if len(batch) == 0 {
			break
		}
		processed, skipped := 0, 0
		for _, loc := range batch {
			ok, err := s.apply(dbc, state, opts.Mode, loc.Location)
			if err != nil {
				run.Fail(err)
				return stats, err
			}
			if ok {
				processed++
			} else {
				skipped++
			}
		}
		offset += len(batch)
		if err := run.Advance(state, offset, processed, skipped); err != nil {
			run.Fail(err)
			return stats, err
		}
		if len(batch) < s.cfg.BatchSize {
			break
		}
	}

	mapping := &types.LocationMapping{
		Version: 1,
		Mode:    opts.Mode,
		BuiltAt: s.now().UTC(),
		Entries: state.Entries,
	}
	if err := s.blob.Publish(ctx, mapping, mapping.BuiltAt, 0); err != nil {
		run.Fail(err)
		return stats, err
	}
	if err := run.Complete(); err != nil {
		return stats, err
	}
	stats.Completed = true
	stats.Batches = run.Batches()
	stats.Offset = offset
	stats.Counters = state.Counters
	stats.Total = len(state.Entries)
	s.log.Info("location mapping rebuilt",
		"mode", opts.Mode,
		"total", stats.Total,
		"added", stats.Added,
		"updated", stats.Updated,
		"generic", stats.Generic,
		"skipped_existing", stats.SkippedExisting,
	)
	return stats, nil
}

func (s *Service) initialState(ctx context.Context, run *runtime.Context, mode string) (*rebuildState, error) {
	state := &rebuildState{}
	if run.Resumed {
		ok, err := run.LoadStaging(state)
		if err != nil {
			return nil, err
		}
		if ok && state.Entries != nil {
			if state.Seen == nil {
				state.Seen = map[string]bool{}
			}
			return state, nil
		}
		if err := run.Restart(); err != nil {
			return nil, err
		}
		state = &rebuildState{}
	}
	state.Entries = map[string]types.LocationMappingEntry{}
	state.Seen = map[string]bool{}

	seeds, err := Seeds()
	if err != nil {
		return nil, err
	}
	if mode == ModeIncremental {
		current, _, err := s.Load(ctx)
		if err != nil {
			return nil, err
		}
		for k, e := range current.Entries {
			state.Entries[k] = e
		}
	}
	for k, e := range seeds {
		if _, ok := state.Entries[k]; !ok {
			state.Entries[k] = e
		}
	}
	return state, nil
}

// apply folds one stored location into the state. It reports whether the location
// produced or refreshed an entry.
func (s *Service) apply(dbc dbctx.Context, state *rebuildState, mode, location string) (bool, error) {
	state.Counters.Locations++
	place := Candidate(location)
	if place == "" {
		state.Counters.Discarded++
		return false, nil
	}
	key := normalization.Key(place)
	if state.Seen[key] {
		return false, nil
	}
	state.Seen[key] = true
	existing, present := state.Entries[key]
	if mode == ModeIncremental && present {
		state.Counters.SkippedExisting++
		return false, nil
	}

	codes, err := s.components.OutwardCodesByLocationPrefix(dbc, place, 0)
	if err != nil {
		return false, fmt.Errorf("outward codes for %q: %w", place, err)
	}
	if len(codes) == 0 {
		state.Counters.NoCodes++
		return false, nil
	}
	if normalization.DistinctAreas(codes) > s.cfg.GenericAreaThreshold {
		state.Counters.Generic++
		s.log.Debug("place spans too many postal areas, treating as generic", "place", place, "codes", len(codes))
		return false, nil
	}
	sort.Strings(codes)
	state.Entries[key] = types.LocationMappingEntry{Key: key, Place: place, OutwardCodes: codes}
	if present && existing.Seeded {
		state.Counters.Updated++
	} else {
		state.Counters.Added++
	}
	return true, nil
}

const (
	TierNone        = ""
	TierExact       = "exact"
	TierPlace       = "place"
	TierOutwardCode = "outward_code"
	TierDatabase    = "database"
)

type LookupResult struct {
	Term         string   `json:"term"`
	Tier         string   `json:"tier,omitempty"`
	Place        string   `json:"place,omitempty"`
	OutwardCodes []string `json:"outward_codes"`
	Generic      bool     `json:"generic,omitempty"`
}

// Lookup resolves a query term to outward codes: an exact place first, then a known place
// occurring as whole words in the term, then the term as an outward code, and finally
// the stored locations themselves. Database matches spanning too many postal areas are
// reported as generic with no codes.
func (s *Service) Lookup(ctx context.Context, term string) (LookupResult, error) {
	res := LookupResult{Term: term, OutwardCodes: []string{}}
	place := normalization.Place(term)
	key := normalization.Key(term)
	if key == "" {
		return res, nil
	}

	mapping, _, err := s.Load(ctx)
	if err != nil {
		s.log.Warn("location mapping unavailable, falling back to database lookup", "error", err)
	}
	if e, ok := mapping.Get(key); ok {
		return s.fromEntry(res, TierExact, e), nil
	}
	for _, e := range mapping.PlacesLongestFirst() {
		if containsWords(place, e.Place) {
			return s.fromEntry(res, TierPlace, e), nil
		}
	}
	if normalization.IsOutwardCode(term) {
		res.Tier = TierOutwardCode
		res.OutwardCodes = []string{strings.ToUpper(strings.TrimSpace(term))}
		return res, nil
	}
	if len([]rune(place)) < minPlaceRunes {
		return res, nil
	}

	dbc := dbctx.New(ctx)
	codes, err := s.components.OutwardCodesByLocationPrefix(dbc, place, s.cfg.LookupCap)
	if err != nil {
		return res, err
	}
	if len(codes) == 0 {
		codes, err = s.components.OutwardCodesByLocationSubstring(dbc, place, s.cfg.LookupCap)
		if err != nil {
			return res, err
		}
	}
	if len(codes) == 0 {
		return res, nil
	}
	res.Tier = TierDatabase
	if normalization.DistinctAreas(codes) > s.cfg.GenericAreaThreshold {
		res.Generic = true
		return res, nil
	}
	res.OutwardCodes = codes
	return res, nil
}

func (s *Service) fromEntry(res LookupResult, tier string, e types.LocationMappingEntry) LookupResult {
	res.Tier = tier
	res.Place = e.Place
	res.OutwardCodes = append([]string(nil), e.OutwardCodes...)
	return res
}
