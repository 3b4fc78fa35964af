package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"dancetonight/internal/eventsearch/geo"
)

// Region is a named bounding box used to label coordinates in the prompt.
// Bounds are exclusive.
type Region struct {
	Name   string  `yaml:"name"`
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

// Contains reports whether p lies inside the region.
func (r Region) Contains(p geo.Point) bool {
	return geo.InBox(p, r.MinLat, r.MaxLat, r.MinLng, r.MaxLng)
}

// DefaultRegions are the boxes known without a regions file.
func DefaultRegions() []Region {
	return []Region{
		{Name: "Cairns, Australia", MinLat: -17.0, MaxLat: -16.8, MinLng: 145.6, MaxLng: 145.8},
	}
}

type regionsFile struct {
	Regions []Region `yaml:"regions"`
}

// LoadRegions reads bounding boxes from a YAML file of the form
//
//	regions:
//	  - name: Cairns, Australia
//	    min_lat: -17.0
//	    max_lat: -16.8
//	    min_lng: 145.6
//	    max_lng: 145.8
func LoadRegions(path string) ([]Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	return ParseRegions(data)
}

// ParseRegions decodes and validates a regions document.
func ParseRegions(data []byte) ([]Region, error) {
	var doc regionsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	out := make([]Region, 0, len(doc.Regions))
	for i, r := range doc.Regions {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return nil, fmt.Errorf("region %d: name is required", i)
		}
		if r.MinLat >= r.MaxLat || r.MinLng >= r.MaxLng {
			return nil, fmt.Errorf("region %q: empty bounding box", r.Name)
		}
		out = append(out, r)
	}
	return out, nil
}
