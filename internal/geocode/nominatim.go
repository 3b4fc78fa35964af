package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dancetonight/internal/eventsearch/core"
)

const defaultSearchEndpoint = "https://nominatim.openstreetmap.org/search"

var ErrEmptyQuery = errors.New("query is empty")

// Result is one forward-geocoding match.
type Result struct {
	DisplayName string  `json:"displayName"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

type nominatimItem struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Nominatim resolves free-text places to coordinates.
type Nominatim struct {
	endpoint string
	language string
	fetcher  core.Fetcher
}

func NewNominatim(fetcher core.Fetcher, endpoint string) *Nominatim {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultSearchEndpoint
	}
	return &Nominatim{endpoint: endpoint, language: "en", fetcher: fetcher}
}

// Search returns up to limit matches (clamped to 1..5), best first.
func (c *Nominatim) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if c == nil || c.fetcher == nil {
		return nil, fmt.Errorf("geocoder is not configured")
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 1
	}
	if limit > 5 {
		limit = 5
	}

	values := url.Values{}
	values.Set("q", q)
	values.Set("format", "jsonv2")
	values.Set("limit", strconv.Itoa(limit))
	values.Set("accept-language", c.language)
	reqURL := c.endpoint + "?" + values.Encode()

	body, status, err := c.fetcher.Get(ctx, reqURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("nominatim search: %w", err)
	}
	if status != http.StatusOK {
		return nil, &core.StatusError{URL: c.endpoint, Status: status}
	}

	var payload []nominatimItem
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode nominatim response: %w", err)
	}
	out := make([]Result, 0, len(payload))
	for _, item := range payload {
		lat, err := strconv.ParseFloat(strings.TrimSpace(item.Lat), 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(item.Lon), 64)
		if err != nil {
			continue
		}
		out = append(out, Result{
			DisplayName: strings.TrimSpace(item.DisplayName),
			Lat:         lat,
			Lng:         lng,
		})
	}
	return out, nil
}

// First returns the best match, or ok=false when nothing matched.
func (c *Nominatim) First(ctx context.Context, query string) (Result, bool, error) {
	results, err := c.Search(ctx, query, 1)
	if err != nil || len(results) == 0 {
		return Result{}, false, err
	}
	return results[0], true, nil
}

// Host is the endpoint's host name, used to give it its own request rate.
func (c *Nominatim) Host() string {
	return endpointHost(c.endpoint)
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
