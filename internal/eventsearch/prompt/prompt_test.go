package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dancetonight/internal/models"
)

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder()
	filters := models.DefaultFilters()
	loc := &models.UserLocation{Latitude: 40.7128, Longitude: -74.006}
	assert.Equal(t, b.Build(filters, loc), b.Build(filters, loc))
}

func TestBuildManualLocationWins(t *testing.T) {
	filters := models.DefaultFilters()
	filters.ManualLocationQuery = "Austin, TX"
	p := NewBuilder().Build(filters, &models.UserLocation{Latitude: 1, Longitude: 2})

	assert.Contains(t, p, `primary search location: "Austin, TX"`)
	assert.NotContains(t, p, "latitude 1.0000")
	assert.Contains(t, p, `dance studios in Austin, TX`)
	assert.Contains(t, p, `(Example: "Austin")`)
}

func TestBuildCoordinatesAndRegion(t *testing.T) {
	b := NewBuilder()
	p := b.Build(models.DefaultFilters(), &models.UserLocation{Latitude: -16.92, Longitude: 145.77})
	assert.Contains(t, p, "latitude -16.9200, longitude 145.7700")
	assert.Contains(t, p, "This is in the Cairns, Australia area")

	p = b.Build(models.DefaultFilters(), &models.UserLocation{Latitude: 48.8566, Longitude: 2.3522})
	assert.Contains(t, p, "the area around lat 48.86, lon 2.35")
}

func TestBuildDefaultLocation(t *testing.T) {
	b := NewBuilder(WithDefaultLocation(models.UserLocation{Latitude: 51.5, Longitude: -0.12}, "London, UK"))
	p := b.Build(models.DefaultFilters(), nil)
	assert.Contains(t, p, "latitude 51.5000, longitude -0.1200")
	assert.Contains(t, p, "This is a default location, e.g., London, UK.")
}

func TestBuildFilterClauses(t *testing.T) {
	filters := models.Filters{
		DanceStyle:   models.DanceStyleSalsa,
		EventType:    models.EventTypeLesson,
		SkillLevel:   models.SkillLevelBeginner,
		CostCategory: models.CostFree,
		Date:         "2026-04-01",
		Radius:       10,
	}
	p := NewBuilder().Build(filters, nil)

	assert.Contains(t, p, "specifically for the dance style: 'salsa'")
	assert.Contains(t, p, "Event type should be: 'lesson'")
	assert.Contains(t, p, "The skill level should be 'beginner'.")
	assert.Contains(t, p, "only include events that are free")
	assert.Contains(t, p, "Date: for 2026-04-01.")
	assert.Contains(t, p, "approximately 10 km")
	assert.Contains(t, p, "This MUST match the requested event type ('lesson')")
}

func TestBuildSkillLevelOnlyForLessonsAndWorkshops(t *testing.T) {
	filters := models.DefaultFilters()
	filters.EventType = models.EventTypeSocial
	filters.SkillLevel = models.SkillLevelAdvanced
	p := NewBuilder().Build(filters, nil)
	assert.NotContains(t, p, "The skill level should be")
	assert.Contains(t, p, "Date: for tonight.")
}

func TestBuildOutputContractVocabulary(t *testing.T) {
	p := NewBuilder().Build(models.DefaultFilters(), nil)
	for _, style := range models.Concrete(models.DanceStyles) {
		assert.Contains(t, p, string(style))
	}
	assert.NotContains(t, p, "Choose from: all styles")
	assert.True(t, strings.HasSuffix(p, "matching ALL specified criteria.\n"))
	assert.NotContains(t, p, "Cost:")
}

func TestParseRegions(t *testing.T) {
	regions, err := ParseRegions([]byte(`
regions:
  - name: Lisbon, Portugal
    min_lat: 38.6
    max_lat: 38.8
    min_lng: -9.3
    max_lng: -9.0
`))
	require.NoError(t, err)
	require.Len(t, regions, 1)

	b := NewBuilder(WithRegions(regions))
	assert.Equal(t, "Lisbon, Portugal", b.RegionLabel(models.UserLocation{Latitude: 38.72, Longitude: -9.14}))
	assert.Equal(t, "", b.RegionLabel(models.UserLocation{Latitude: -16.92, Longitude: 145.77}))
}

func TestParseRegionsRejectsBadBoxes(t *testing.T) {
	_, err := ParseRegions([]byte("regions:\n  - name: ''\n    min_lat: 1\n    max_lat: 2\n    min_lng: 1\n    max_lng: 2\n"))
	assert.Error(t, err)
	_, err = ParseRegions([]byte("regions:\n  - name: Flat\n    min_lat: 1\n    max_lat: 1\n    min_lng: 1\n    max_lng: 2\n"))
	assert.Error(t, err)
	_, err = ParseRegions([]byte("regions: [unclosed"))
	assert.Error(t, err)
}

func TestLoadRegions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions:\n  - name: Cairns\n    min_lat: -17\n    max_lat: -16.8\n    min_lng: 145.6\n    max_lng: 145.8\n"), 0o600))
	regions, err := LoadRegions(path)
	require.NoError(t, err)
	assert.Equal(t, "Cairns", regions[0].Name)

	_, err = LoadRegions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
