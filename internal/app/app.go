// Package app wires the search pipeline from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"dancetonight/internal/archive"
	"dancetonight/internal/config"
	"dancetonight/internal/eventsearch"
	"dancetonight/internal/eventsearch/enrich"
	"dancetonight/internal/eventsearch/extract"
	"dancetonight/internal/eventsearch/fetch"
	"dancetonight/internal/eventsearch/prompt"
	"dancetonight/internal/geocode"
	"dancetonight/internal/metrics"
	"dancetonight/internal/models"
	"dancetonight/internal/provider/gemini"
)

// Pipeline holds the long-lived search components.
type Pipeline struct {
	Search          *eventsearch.Orchestrator
	Forward         *geocode.Nominatim
	Reverse         *geocode.Reverser
	DefaultLocation models.UserLocation
}

// Build assembles the orchestrator and geocoders. m may be nil.
func Build(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tz, err := cfg.Search.Location()
	if err != nil {
		return nil, err
	}

	regions := prompt.DefaultRegions()
	if cfg.Search.RegionsFile != "" {
		regions, err = prompt.LoadRegions(cfg.Search.RegionsFile)
		if err != nil {
			return nil, fmt.Errorf("regions: %w", err)
		}
	}

	defaultLocation := models.UserLocation{Latitude: cfg.Search.DefaultLat, Longitude: cfg.Search.DefaultLng}
	// Geocoders and the enricher share one fetcher so the geocoding hosts keep
	// their configured rate no matter which component calls them.
	fetcher := fetch.NewWithConfig(logger.With("component", "fetch"), fetch.Config{
		Retries:      2,
		RateLimitRPS: 2,
	})
	forward := geocode.NewNominatim(fetcher, cfg.Geocode.NominatimEndpoint)
	reverse := geocode.NewReverser(fetcher, cfg.Geocode.ReverseEndpoint, logger)
	fetcher.LimitHost(forward.Host(), cfg.Geocode.RateLimitRPS)
	fetcher.LimitHost(reverse.Host(), cfg.Geocode.RateLimitRPS)

	provider := gemini.New(gemini.Config{
		APIKey:       cfg.Gemini.APIKey,
		Model:        cfg.Gemini.Model,
		Endpoint:     cfg.Gemini.Endpoint,
		Timeout:      cfg.Gemini.Timeout,
		RateLimitRPS: cfg.Gemini.RateLimitRPS,
	}, logger)

	opts := []eventsearch.Option{
		eventsearch.WithPromptBuilder(prompt.NewBuilder(
			prompt.WithRegions(regions),
			prompt.WithDefaultLocation(defaultLocation, cfg.Search.DefaultLabel),
		)),
		eventsearch.WithDateNormalizer(extract.NewDateNormalizer(tz, nil, logger)),
		eventsearch.WithDefaultLocation(defaultLocation),
		eventsearch.WithMetrics(m),
	}
	if cfg.Search.Pacing {
		opts = append(opts, eventsearch.WithPacing(eventsearch.DefaultPacing))
	}
	if cfg.Search.EnrichCoordinates {
		opts = append(opts, eventsearch.WithEnricher(enrich.New(fetcher, forward, logger)))
	}
	store, err := archive.NewS3(cfg.S3, logger)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	if store != nil {
		opts = append(opts, eventsearch.WithArchive(store))
	}
	if !provider.HasCredentials() {
		logger.WarnContext(ctx, "provider_credentials_missing", "hint", "set GEMINI_API_KEY")
	}

	return &Pipeline{
		Search:          eventsearch.New(provider, logger, opts...),
		Forward:         forward,
		Reverse:         reverse,
		DefaultLocation: defaultLocation,
	}, nil
}
