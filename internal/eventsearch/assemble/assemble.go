package assemble

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"dancetonight/internal/eventsearch/core"
	"dancetonight/internal/eventsearch/extract"
	"dancetonight/internal/eventsearch/geo"
	"dancetonight/internal/models"
)

const (
	DefaultTitle       = "Untitled Event"
	DefaultVenue       = "Unknown Venue"
	DefaultAddress     = "No address provided"
	DefaultCost        = "Not specified"
	DefaultDescription = "No description available."
)

// Assembler converts raw provider records into canonical events.
type Assembler struct {
	dates  *extract.DateNormalizer
	logger *slog.Logger
}

func New(dates *extract.DateNormalizer, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if dates == nil {
		dates = extract.NewDateNormalizer(nil, nil, logger)
	}
	return &Assembler{dates: dates, logger: logger}
}

// Events maps every record, in order. Identifiers are unique within the result.
func (a *Assembler) Events(records []core.RawEventRecord) []models.DanceEvent {
	out := make([]models.DanceEvent, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, raw := range records {
		event := a.Event(raw, i)
		if _, dup := seen[event.ID]; dup {
			base := event.ID
			for n := 1; ; n++ {
				candidate := base + "-" + strconv.Itoa(n)
				if _, taken := seen[candidate]; !taken {
					a.logger.Debug("assemble_duplicate_id", "id", base, "replacement", candidate)
					event.ID = candidate
					break
				}
			}
		}
		seen[event.ID] = struct{}{}
		out = append(out, event)
	}
	return out
}

// Event maps one record. index is its position in the provider array.
func (a *Assembler) Event(raw core.RawEventRecord, index int) models.DanceEvent {
	start := a.dates.Normalize(raw.StartTime.String())
	end := a.dates.Normalize(raw.EndTime.String())

	event := models.DanceEvent{
		ID:        raw.ID.String(),
		Title:     orDefault(raw.Title.String(), DefaultTitle),
		ImageURL:  raw.ImageURL.String(),
		StartTime: start,
		EndTime:   end,
		City:      raw.City.String(),
		Location: models.EventLocation{
			Venue:   orDefault(raw.Location.Venue.String(), DefaultVenue),
			Address: orDefault(raw.Location.Address.String(), DefaultAddress),
			Lat:     raw.Location.Lat.Ptr(),
			Lng:     raw.Location.Lng.Ptr(),
		},
		Genres:       genres(raw.Genres),
		Type:         models.EventTypeSocial,
		Cost:         orDefault(raw.Cost.String(), DefaultCost),
		CostCategory: extract.ClassifyCost(raw.Cost.String()),
		Description:  orDefault(raw.Description.String(), DefaultDescription),
		Website:      raw.Website.String(),
		Host:         raw.Host.String(),
	}
	if event.ID == "" {
		event.ID = SyntheticID(raw.Title.String(), index, start.UnixMilli())
	}
	if t, ok := extract.NormalizeEnum(raw.Type.String(), models.EventTypes); ok && t != models.EventTypeAll {
		event.Type = t
	}
	if raw.Level != "" {
		if level, ok := extract.NormalizeEnum(raw.Level.String(), models.SkillLevels); ok && level != models.SkillLevelAll {
			event.Level = &level
		}
	}
	return event
}

// SyntheticID builds an identifier from the title slug, position and start instant.
func SyntheticID(title string, index int, startMillis int64) string {
	slug := extract.Slugify(title)
	if slug == "" {
		slug = "event"
	}
	return fmt.Sprintf("%s-%d-%d", slug, index, startMillis)
}

func genres(values []string) []models.DanceStyle {
	out := make([]models.DanceStyle, 0, len(values))
	for _, value := range values {
		style, ok := extract.NormalizeEnum(value, models.DanceStyles)
		if !ok || style == models.DanceStyleAll {
			continue
		}
		out = append(out, style)
	}
	return out
}

// ApplyDistance computes distances from loc, drops events beyond radiusKM and
// orders the rest nearest first with coordinate-less events last. Without a
// location the events are returned unchanged with no distance set.
func ApplyDistance(events []models.DanceEvent, loc *models.UserLocation, radiusKM int) []models.DanceEvent {
	out := make([]models.DanceEvent, 0, len(events))
	if loc == nil {
		for _, event := range events {
			event.DistanceKM = nil
			out = append(out, event)
		}
		return out
	}
	origin := geo.Point{Lat: loc.Latitude, Lng: loc.Longitude}
	for _, event := range events {
		event.DistanceKM = nil
		if event.Location.HasCoordinates() {
			d := geo.Distance(origin, geo.Point{Lat: *event.Location.Lat, Lng: *event.Location.Lng})
			if d > float64(radiusKM) {
				continue
			}
			event.DistanceKM = &d
		}
		out = append(out, event)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DistanceKM, out[j].DistanceKM
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
	return out
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
