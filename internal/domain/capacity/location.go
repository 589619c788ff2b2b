package capacity

import (
	"sort"
	"time"
)

type LocationMappingEntry struct {
	Key          string   `json:"key"`
	Place        string   `json:"place"`
	OutwardCodes []string `json:"outward_codes"`
	Seeded       bool     `json:"seeded,omitempty"`
}

// LocationMapping maps normalized place names to the outward codes seen for them.
type LocationMapping struct {
	Version int                             `json:"version"`
	Mode    string                          `json:"mode"`
	BuiltAt time.Time                       `json:"built_at"`
	Entries map[string]LocationMappingEntry `json:"entries"`

	places []LocationMappingEntry
}

func (m *LocationMapping) Get(key string) (LocationMappingEntry, bool) {
	if m == nil || m.Entries == nil {
		return LocationMappingEntry{}, false
	}
	e, ok := m.Entries[key]
	return e, ok
}

func (m *LocationMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Entries)
}

// Reindex caches the place ordering. Call after decoding or changing entries.
func (m *LocationMapping) Reindex() {
	m.places = sortPlaces(m.Entries)
}

// PlacesLongestFirst lists display place names, longest first, ties alphabetical.
// The result is shared once Reindex has run and must not be modified.
func (m *LocationMapping) PlacesLongestFirst() []LocationMappingEntry {
	if m == nil {
		return nil
	}
	if m.places != nil {
		return m.places
	}
	return sortPlaces(m.Entries)
}

func sortPlaces(entries map[string]LocationMappingEntry) []LocationMappingEntry {
	out := make([]LocationMappingEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Place) != len(out[j].Place) {
			return len(out[i].Place) > len(out[j].Place)
		}
		return out[i].Place < out[j].Place
	})
	return out
}
