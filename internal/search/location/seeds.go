package location

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/normalization"
)

//go:embed seeds.yaml
var seedsYAML []byte

type seedFile struct {
	Places map[string][]string `yaml:"places"`
}

// Seeds parses the embedded seed places.
func Seeds() (map[string]types.LocationMappingEntry, error) {
	return parseSeeds(seedsYAML)
}

func parseSeeds(raw []byte) (map[string]types.LocationMappingEntry, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse location seeds: %w", err)
	}
	out := make(map[string]types.LocationMappingEntry, len(f.Places))
	for place, codes := range f.Places {
		key := normalization.Key(place)
		if key == "" {
			continue
		}
		norm := make([]string, 0, len(codes))
		for _, c := range codes {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				norm = append(norm, c)
			}
		}
		sort.Strings(norm)
		out[key] = types.LocationMappingEntry{
			Key:          key,
			Place:        normalization.Place(place),
			OutwardCodes: norm,
			Seeded:       true,
		}
	}
	return out, nil
}
