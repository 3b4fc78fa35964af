package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dancetonight/internal/eventsearch/core"
)

const (
	defaultReverseEndpoint = "https://api.bigdatacloud.net/data/reverse-geocode-client"
	UnknownLocation        = "Unknown Location"
)

// Place is a human-readable name for a coordinate pair.
type Place struct {
	Name      string  `json:"name"`
	City      string  `json:"city,omitempty"`
	Suburb    string  `json:"suburb,omitempty"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Resolved is false when Name is the coordinate fallback.
	Resolved bool `json:"resolved"`
}

type bigDataCloudResponse struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
	CountryName          string `json:"countryName"`
	Neighbourhood        string `json:"neighbourhood"`
}

// Reverser turns coordinates into a place name using the BigDataCloud client endpoint.
type Reverser struct {
	endpoint string
	fetcher  core.Fetcher
	logger   *slog.Logger
}

func NewReverser(fetcher core.Fetcher, endpoint string, logger *slog.Logger) *Reverser {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultReverseEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reverser{endpoint: endpoint, fetcher: fetcher, logger: logger}
}

// Reverse never fails: any lookup problem yields the coordinates as text.
func (r *Reverser) Reverse(ctx context.Context, lat, lng float64) Place {
	place := Place{Latitude: lat, Longitude: lng, Name: FormatCoordinates(lat, lng)}
	if r == nil || r.fetcher == nil {
		return place
	}
	payload, err := r.lookup(ctx, lat, lng)
	if err != nil {
		r.logger.Warn("reverse_geocode_failed", "lat", lat, "lng", lng, "error", err)
		return place
	}
	place.Name = payload.placeName()
	place.City = strings.TrimSpace(payload.City)
	if place.City == "" {
		place.City = strings.TrimSpace(payload.Locality)
	}
	place.Suburb = strings.TrimSpace(payload.Neighbourhood)
	place.State = strings.TrimSpace(payload.PrincipalSubdivision)
	place.Country = strings.TrimSpace(payload.CountryName)
	place.Resolved = true
	return place
}

func (r *Reverser) lookup(ctx context.Context, lat, lng float64) (bigDataCloudResponse, error) {
	var payload bigDataCloudResponse
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	values.Set("localityLanguage", "en")

	body, status, err := r.fetcher.Get(ctx, r.endpoint+"?"+values.Encode(), map[string]string{"Accept": "application/json"})
	if err != nil {
		return payload, err
	}
	if status != http.StatusOK {
		return payload, &core.StatusError{URL: r.endpoint, Status: status}
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, fmt.Errorf("decode reverse geocode response: %w", err)
	}
	return payload, nil
}

// placeName joins the most specific available parts: neighbourhood, city,
// region, and the country only when fewer than two parts were found.
func (p bigDataCloudResponse) placeName() string {
	parts := make([]string, 0, 4)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for _, existing := range parts {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		parts = append(parts, s)
	}
	add(p.Neighbourhood)
	if p.City != "" {
		add(p.City)
	} else {
		add(p.Locality)
	}
	add(p.PrincipalSubdivision)
	if len(parts) < 2 {
		add(p.CountryName)
	}
	if len(parts) == 0 {
		return UnknownLocation
	}
	return strings.Join(parts, ", ")
}

// FormatCoordinates renders a pair with four decimals.
func FormatCoordinates(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

// Host is the endpoint's host name, used to give it its own request rate.
func (r *Reverser) Host() string {
	return endpointHost(r.endpoint)
}
