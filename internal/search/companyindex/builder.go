package companyindex

import (
	"sort"
	"strings"

	"github.com/yungbote/capacity-checker/internal/data/repos/components"
	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/normalization"
)

// builder accumulates index entries across batches. It is staged as JSON between batches,
// so every field is exported.
type builder struct {
	Order   []string                `json:"order"`
	Entries map[string]*entryState  `json:"entries"`
	Claims  map[string]string       `json:"claims"`
	Stats   types.CompanyIndexStats `json:"stats"`
}

type entryState struct {
	Name       string              `json:"name"`
	UnitIDs    []string            `json:"unit_ids"`
	UnitKeys   map[string]bool     `json:"unit_keys"`
	Components int                 `json:"components"`
	Auctions   map[string][]string `json:"auctions"`
}

func newBuilder() *builder {
	return &builder{
		Entries: map[string]*entryState{},
		Claims:  map[string]string{},
	}
}

// placeholderNames counts names in a batch that carry no identity.
func (b *builder) countPlaceholders(names []string) {
	for _, n := range names {
		if normalization.IsPlaceholder(n) {
			b.Stats.Placeholders++
		}
	}
}

// add folds one component row in. A unit belongs to the first organization that claims it;
// later claims by another organization are counted as conflicts and skipped.
func (b *builder) add(row components.CompanyRow) (accepted bool) {
	org := strings.TrimSpace(row.Organization)
	if normalization.IsPlaceholder(org) {
		return false
	}
	key := normalization.Key(org)
	unitKey := row.UnitKey
	if unitKey == "" {
		unitKey = normalization.Key(row.UnitID)
	}
	if key == "" || unitKey == "" {
		b.Stats.Malformed++
		return false
	}
	if owner, claimed := b.Claims[unitKey]; claimed && owner != key {
		b.Stats.UnitConflicts++
		return false
	}
	b.Claims[unitKey] = key

	e, ok := b.Entries[key]
	if !ok {
		e = &entryState{Name: org, UnitKeys: map[string]bool{}, Auctions: map[string][]string{}}
		b.Entries[key] = e
		b.Order = append(b.Order, key)
	}
	if !e.UnitKeys[unitKey] {
		e.UnitKeys[unitKey] = true
		e.UnitIDs = append(e.UnitIDs, strings.TrimSpace(row.UnitID))
	}
	e.Components++
	year := strings.TrimSpace(row.DeliveryYear)
	auction := strings.TrimSpace(row.AuctionName)
	if _, seen := e.Auctions[year]; !seen {
		e.Auctions[year] = []string{}
	}
	if auction != "" && !contains(e.Auctions[year], auction) {
		e.Auctions[year] = append(e.Auctions[year], auction)
	}
	b.Stats.Components++
	return true
}

func (b *builder) index() []types.CompanyIndexEntry {
	out := make([]types.CompanyIndexEntry, 0, len(b.Order))
	for _, key := range b.Order {
		e := b.Entries[key]
		years := make([]string, 0, len(e.Auctions))
		auctions := map[string][]string{}
		for y, list := range e.Auctions {
			if y == "" {
				continue
			}
			years = append(years, y)
			sorted := append([]string(nil), list...)
			sort.Strings(sorted)
			auctions[y] = sorted
		}
		sort.Sort(sort.Reverse(sort.StringSlice(years)))
		out = append(out, types.CompanyIndexEntry{
			Key:            key,
			CompanyName:    e.Name,
			UnitIDs:        append([]string(nil), e.UnitIDs...),
			UnitCount:      len(e.UnitIDs),
			ComponentCount: e.Components,
			Years:          years,
			Auctions:       auctions,
			URL:            "/company/" + key + "/",
		})
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
