package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dancetonight/internal/eventsearch/core"
)

var errNoGeo = errors.New("no event geo coordinates on page")

func (e *Enricher) fromPage(ctx context.Context, pageURL string) (float64, float64, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return 0, 0, errors.New("website is not an http url")
	}
	body, status, err := e.fetcher.Get(ctx, u.String(), nil)
	if err != nil {
		return 0, 0, err
	}
	if status >= http.StatusBadRequest {
		return 0, 0, &core.StatusError{URL: u.String(), Status: status}
	}
	return GeoFromHTML(body)
}

// GeoFromHTML finds the coordinates of the first schema.org Event in the
// page's JSON-LD blocks that carries location.geo.
func GeoFromHTML(body []byte) (float64, float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	var (
		lat, lng float64
		found    bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		raw := strings.TrimSpace(script.Text())
		if raw == "" {
			return true
		}
		var payload interface{}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return true
		}
		for _, obj := range collectJSONObjects(payload) {
			if !isEventType(obj["@type"]) {
				continue
			}
			if la, ln, ok := locationGeo(obj["location"]); ok {
				lat, lng, found = la, ln, true
				return false
			}
		}
		return true
	})
	if !found {
		return 0, 0, errNoGeo
	}
	return lat, lng, nil
}

func collectJSONObjects(payload interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0)
	switch v := payload.(type) {
	case map[string]interface{}:
		out = append(out, v)
		if graph, ok := v["@graph"]; ok {
			out = append(out, collectJSONObjects(graph)...)
		}
	case []interface{}:
		for _, item := range v {
			out = append(out, collectJSONObjects(item)...)
		}
	}
	return out
}

// isEventType accepts Event and its subtypes such as DanceEvent.
func isEventType(value interface{}) bool {
	match := func(s string) bool {
		return strings.HasSuffix(strings.ToLower(strings.TrimSpace(s)), "event")
	}
	switch v := value.(type) {
	case string:
		return match(v)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && match(s) {
				return true
			}
		}
	}
	return false
}

func locationGeo(value interface{}) (float64, float64, bool) {
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if lat, lng, ok := locationGeo(item); ok {
				return lat, lng, true
			}
		}
	case map[string]interface{}:
		geo, ok := v["geo"].(map[string]interface{})
		if !ok {
			return 0, 0, false
		}
		lat, okLat := numberField(geo, "latitude")
		lng, okLng := numberField(geo, "longitude")
		if !okLat || !okLng || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return 0, 0, false
		}
		return lat, lng, true
	}
	return 0, 0, false
}

func numberField(m map[string]interface{}, key string) (float64, bool) {
	var (
		v   float64
		err error
	)
	switch raw := m[key].(type) {
	case float64:
		v = raw
	case string:
		v, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
