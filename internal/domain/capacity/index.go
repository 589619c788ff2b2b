package capacity

import "time"

// CompanyIndexEntry is the derived summary of one organization.
type CompanyIndexEntry struct {
	Key            string              `json:"normalized_name"`
	CompanyName    string              `json:"company_name"`
	UnitIDs        []string            `json:"cmu_ids"`
	UnitCount      int                 `json:"num_cmu_ids"`
	ComponentCount int                 `json:"num_components"`
	Years          []string            `json:"years"`
	Auctions       map[string][]string `json:"auctions,omitempty"`
	URL            string              `json:"url"`
}

type CompanyIndexStats struct {
	Organizations int `json:"organizations"`
	Components    int `json:"components"`
	Placeholders  int `json:"placeholders"`
	Malformed     int `json:"malformed"`
	UnitConflicts int `json:"unit_conflicts"`
}

// CompanyIndex is the full materialized index. Entries keep build order.
type CompanyIndex struct {
	Version int                 `json:"version"`
	BuiltAt time.Time           `json:"built_at"`
	Entries []CompanyIndexEntry `json:"entries"`
	Stats   CompanyIndexStats   `json:"stats"`

	byKey map[string]int
}

// Reindex rebuilds the key lookup. Call after decoding or appending entries.
func (ci *CompanyIndex) Reindex() {
	ci.byKey = make(map[string]int, len(ci.Entries))
	for i, e := range ci.Entries {
		if _, dup := ci.byKey[e.Key]; !dup {
			ci.byKey[e.Key] = i
		}
	}
}

func (ci *CompanyIndex) Lookup(key string) (CompanyIndexEntry, bool) {
	if ci == nil {
		return CompanyIndexEntry{}, false
	}
	if ci.byKey == nil {
		ci.Reindex()
	}
	i, ok := ci.byKey[key]
	if !ok {
		return CompanyIndexEntry{}, false
	}
	return ci.Entries[i], true
}

func (ci *CompanyIndex) Len() int {
	if ci == nil {
		return 0
	}
	return len(ci.Entries)
}
