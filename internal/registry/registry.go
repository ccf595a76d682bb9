// Package registry holds the immutable city → (coordinates, model) mapping
// built once at startup.
package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"energy-forecast/internal/models"
)

// Registry is safe for concurrent reads; it has no write path after New.
type Registry struct {
	regions map[string]models.Region
	cities  []string
	models  []string
}

// New validates regions and builds a registry. Duplicate city names are rejected.
func New(regions []models.Region) (*Registry, error) {
	r := &Registry{regions: make(map[string]models.Region, len(regions))}
	modelSet := make(map[string]struct{})

	for _, region := range regions {
		if strings.TrimSpace(region.City) == "" {
			return nil, fmt.Errorf("region with empty city name")
		}
		if strings.TrimSpace(region.Model) == "" {
			return nil, fmt.Errorf("region %q: empty model name", region.City)
		}
		if err := region.Point().Validate(); err != nil {
			return nil, fmt.Errorf("region %q: %w", region.City, err)
		}
		if _, dup := r.regions[region.City]; dup {
			return nil, fmt.Errorf("duplicate region %q", region.City)
		}

		r.regions[region.City] = region
		r.cities = append(r.cities, region.City)
		modelSet[region.Model] = struct{}{}
	}

	sort.Strings(r.cities)
	for name := range modelSet {
		r.models = append(r.models, name)
	}
	sort.Strings(r.models)

	return r, nil
}

// mappingEntry is one value of the city mapping file
type mappingEntry struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Model string   `json:"model"`
}

// Decode reads a city mapping document of the form
// {"City": {"lat": 12.3, "lon": 76.6, "model": "name"}}.
func Decode(r io.Reader) ([]models.Region, error) {
	var raw map[string]mappingEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode city mapping: %w", err)
	}

	regions := make([]models.Region, 0, len(raw))
	for city, entry := range raw {
		if entry.Lat == nil || entry.Lon == nil {
			return nil, fmt.Errorf("city %q: missing lat/lon", city)
		}
		regions = append(regions, models.Region{
			City:      city,
			Latitude:  *entry.Lat,
			Longitude: *entry.Lon,
			Model:     entry.Model,
		})
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].City < regions[j].City })
	return regions, nil
}

// LoadFile builds a registry from a city mapping file
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open city mapping: %w", err)
	}
	defer f.Close()

	regions, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return New(regions)
}

// Lookup returns the region for an exact city name
func (r *Registry) Lookup(city string) (models.Region, bool) {
	region, ok := r.regions[city]
	return region, ok
}

// Cities returns the city names in alphabetical order
func (r *Registry) Cities() []string {
	return append([]string(nil), r.cities...)
}

// ModelNames returns the distinct model names referenced by any region, sorted
func (r *Registry) ModelNames() []string {
	return append([]string(nil), r.models...)
}

// Regions returns every region ordered by city
func (r *Registry) Regions() []models.Region {
	out := make([]models.Region, 0, len(r.cities))
	for _, city := range r.cities {
		out = append(out, r.regions[city])
	}
	return out
}

// Len is the number of cities
func (r *Registry) Len() int {
	return len(r.regions)
}
