package enrich

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"dancetonight/internal/eventsearch/assemble"
	"dancetonight/internal/eventsearch/core"
	"dancetonight/internal/geocode"
	"dancetonight/internal/models"
)

const defaultConcurrency = 4

// Geocoder resolves a free-text address to its best match.
type Geocoder interface {
	First(ctx context.Context, query string) (geocode.Result, bool, error)
}

// Enricher fills in coordinates for events the provider left without them,
// first from the event page's schema.org markup, then by geocoding the address.
type Enricher struct {
	fetcher     core.Fetcher
	geocoder    Geocoder
	concurrency int
	logger      *slog.Logger
}

type Option func(*Enricher)

func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New returns an enricher. Either fetcher or geocoder may be nil to skip that source.
func New(fetcher core.Fetcher, geocoder Geocoder, logger *slog.Logger, opts ...Option) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Enricher{
		fetcher:     fetcher,
		geocoder:    geocoder,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns events with coordinates added where they could be found.
// Lookups failing for one event never affect the others.
func (e *Enricher) Enrich(ctx context.Context, events []models.DanceEvent) []models.DanceEvent {
	out := append([]models.DanceEvent(nil), events...)
	if e == nil || (e.fetcher == nil && e.geocoder == nil) {
		return out
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range out {
		if out[i].Location.HasCoordinates() {
			continue
		}
		i := i
		g.Go(func() error {
			lat, lng, source, ok := e.locate(gctx, out[i])
			if !ok {
				return nil
			}
			out[i].Location.Lat = &lat
			out[i].Location.Lng = &lng
			e.logger.Debug("enrich_coordinates", "event_id", out[i].ID, "source", source)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Enricher) locate(ctx context.Context, event models.DanceEvent) (float64, float64, string, bool) {
	if e.fetcher != nil && event.Website != "" {
		lat, lng, err := e.fromPage(ctx, event.Website)
		if err == nil {
			return lat, lng, "json_ld", true
		}
		e.logger.Debug("enrich_page_miss", "event_id", event.ID, "error", err)
	}
	if e.geocoder == nil {
		return 0, 0, "", false
	}
	query := geocodeQuery(event.Location)
	if query == "" {
		return 0, 0, "", false
	}
	result, ok, err := e.geocoder.First(ctx, query)
	if err != nil {
		e.logger.Warn("enrich_geocode_failed", "event_id", event.ID, "error", err)
		return 0, 0, "", false
	}
	if !ok {
		return 0, 0, "", false
	}
	return result.Lat, result.Lng, "geocode", true
}

// geocodeQuery joins venue and address, ignoring assembler placeholders.
func geocodeQuery(loc models.EventLocation) string {
	parts := make([]string, 0, 2)
	if v := strings.TrimSpace(loc.Venue); v != "" && v != assemble.DefaultVenue {
		parts = append(parts, v)
	}
	if a := strings.TrimSpace(loc.Address); a != "" && a != assemble.DefaultAddress {
		parts = append(parts, a)
	}
	if len(parts) == 0 {
		return ""
	}
	// A bare venue name geocodes poorly; require an address.
	if loc.Address == "" || loc.Address == assemble.DefaultAddress {
		return ""
	}
	return strings.Join(parts, ", ")
}
