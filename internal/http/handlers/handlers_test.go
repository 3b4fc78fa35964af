package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dancetonight/internal/eventsearch"
	"dancetonight/internal/eventsearch/core"
	"dancetonight/internal/geocode"
	"dancetonight/internal/geolocate"
	"dancetonight/internal/logging"
	"dancetonight/internal/models"
)

const providerAnswer = "Here you go:\n```json\n" + `[{
	"title": "Mission Salsa Social",
	"startTime": "2026-10-18T20:00:00",
	"endTime": "2026-10-18T23:00:00",
	"location": {"venue": "Mission Hall", "address": "1 Valencia St", "lat": 37.7800, "lng": -122.4100},
	"genres": ["salsa"],
	"type": "social",
	"cost": "$10"
}]` + "\n```"

type stubProvider struct {
	text    string
	err     error
	prompts []string
}

func (p *stubProvider) Search(_ context.Context, prompt string) (*core.ProviderResponse, error) {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return nil, p.err
	}
	return &core.ProviderResponse{
		Text:      p.text,
		Citations: []core.Citation{{URI: "https://example.org/salsa", Title: "Salsa SF"}},
	}, nil
}

type fakeReverse struct{}

func (fakeReverse) Reverse(_ context.Context, lat, lng float64) geocode.Place {
	return geocode.Place{Name: "Mission District, San Francisco", Latitude: lat, Longitude: lng, Resolved: true}
}

type fakeForward struct {
	results []geocode.Result
	err     error
	limit   int
}

func (f *fakeForward) Search(_ context.Context, _ string, limit int) ([]geocode.Result, error) {
	f.limit = limit
	return f.results, f.err
}

var sanFrancisco = models.UserLocation{Latitude: 37.7749, Longitude: -122.4194}

func newTestHandler(provider core.Provider) *Handler {
	logger := logging.Discard()
	var orch *eventsearch.Orchestrator
	if provider != nil {
		orch = eventsearch.New(provider, logger, eventsearch.WithDefaultLocation(sanFrancisco))
	}
	return New(Deps{
		Search:          orch,
		Reverse:         fakeReverse{},
		Forward:         &fakeForward{results: []geocode.Result{{DisplayName: "Oakland, CA", Lat: 37.8, Lng: -122.27}}},
		DefaultLocation: sanFrancisco,
		Logger:          logger,
	})
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/events/search", h.SearchEvents)
	r.Get("/events/search/stream", h.SearchEventsStream)
	r.Get("/events/search/latest", h.LatestSearch)
	r.Delete("/events/search", h.CancelSearch)
	r.Get("/vocabularies", h.Vocabularies)
	r.Get("/filters", h.GetFilters)
	r.Put("/filters", h.PutFilters)
	r.Get("/filters/{slot}", h.GetFilters)
	r.Put("/filters/{slot}", h.PutFilters)
	r.Get("/geocode/reverse", h.ReverseGeocode)
	r.Get("/geocode/search", h.SearchPlaces)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) eventsearch.Result {
	t.Helper()
	var res eventsearch.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestSearchEvents(t *testing.T) {
	provider := &stubProvider{text: providerAnswer}
	router := newRouter(newTestHandler(provider))

	rec := do(t, router, http.MethodPost, "/events/search", `{
		"filters": {"danceStyle":"Salsa","eventType":"social","skillLevel":"all levels","costCategory":"all costs","date":"tonight","radius":25},
		"location": {"latitude": 37.7749, "longitude": -122.4194}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeResult(t, rec)
	assert.Equal(t, core.OutcomeOK, res.Outcome)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Mission Salsa Social", res.Events[0].Title)
	require.NotNil(t, res.Events[0].DistanceKM)
	assert.Less(t, *res.Events[0].DistanceKM, 2.0)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, core.Stages[1:], res.Stages)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "the dance style: 'salsa'")

	stored := do(t, router, http.MethodGet, "/filters", "")
	var filters models.Filters
	require.NoError(t, json.Unmarshal(stored.Body.Bytes(), &filters))
	assert.Equal(t, models.DanceStyleSalsa, filters.DanceStyle)
	assert.Equal(t, models.EventTypeSocial, filters.EventType)
}

func TestSearchEventsUsesStoredFilters(t *testing.T) {
	provider := &stubProvider{text: providerAnswer}
	router := newRouter(newTestHandler(provider))

	put := do(t, router, http.MethodPut, "/filters", `{"danceStyle":"tango","eventType":"all types","skillLevel":"all levels","costCategory":"all costs","date":"tomorrow","radius":10}`)
	require.Equal(t, http.StatusOK, put.Code, put.Body.String())

	rec := do(t, router, http.MethodPost, "/events/search", `{"location": {"latitude": 37.7749, "longitude": -122.4194}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "the dance style: 'tango'")
	assert.Contains(t, provider.prompts[0], "Search Radius: approximately 10 km")
}

func TestSearchEventsRejectsBadInput(t *testing.T) {
	router := newRouter(newTestHandler(&stubProvider{text: providerAnswer}))

	cases := map[string]string{
		"invalid json":     `{"filters":`,
		"unknown preset":   `{"preset":"midnight-rave"}`,
		"invalid radius":   `{"filters":{"danceStyle":"salsa","eventType":"social","skillLevel":"all levels","costCategory":"all costs","date":"tonight","radius":5000}}`,
		"invalid latitude": `{"location":{"latitude":123,"longitude":0}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/events/search", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestSearchEventsPreset(t *testing.T) {
	provider := &stubProvider{text: providerAnswer}
	router := newRouter(newTestHandler(provider))

	rec := do(t, router, http.MethodPost, "/events/search", `{"preset":"beginner-classes","location":{"latitude":37.7749,"longitude":-122.4194}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	stored := do(t, router, http.MethodGet, "/filters", "")
	var filters models.Filters
	require.NoError(t, json.Unmarshal(stored.Body.Bytes(), &filters))
	assert.Equal(t, models.EventTypeLesson, filters.EventType)
	assert.Equal(t, models.SkillLevelBeginner, filters.SkillLevel)
}

func TestSearchEventsGeolocationError(t *testing.T) {
	router := newRouter(newTestHandler(&stubProvider{text: providerAnswer}))

	rec := do(t, router, http.MethodPost, "/events/search", `{"geolocationError":"permission_denied"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.Equal(t, geolocate.MessagePermissionDenied, res.LocationStatus)
	require.NotNil(t, res.Location)
	assert.Equal(t, sanFrancisco, *res.Location)
	assert.NotContains(t, res.Stages, core.StageDetectingLocation)
}

func TestSearchEventsProviderFailure(t *testing.T) {
	router := newRouter(newTestHandler(&stubProvider{err: &core.ProviderError{Status: 429, Message: "quota"}}))

	rec := do(t, router, http.MethodPost, "/events/search", `{"location":{"latitude":1,"longitude":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.Equal(t, core.OutcomeProviderError, res.Outcome)
	assert.Empty(t, res.Events)
	assert.NotEmpty(t, res.Notice)
	assert.Equal(t, core.StageComplete, res.Stages[len(res.Stages)-1])
}

func TestSearchNotConfigured(t *testing.T) {
	router := newRouter(newTestHandler(nil))
	rec := do(t, router, http.MethodPost, "/events/search", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchEventsStream(t *testing.T) {
	router := newRouter(newTestHandler(&stubProvider{text: providerAnswer}))

	rec := do(t, router, http.MethodGet, "/events/search/stream?danceStyle=salsa&radius=10&lat=37.7749&lng=-122.4194", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, len(core.Stages)-1, strings.Count(body, "event: stage\n"))
	assert.Equal(t, 1, strings.Count(body, "event: result\n"))
	assert.Contains(t, body, `data: {"stage":"complete"}`)

	idx := strings.Index(body, "event: result\ndata: ")
	require.GreaterOrEqual(t, idx, 0)
	payload := strings.TrimSpace(body[idx+len("event: result\ndata: "):])
	var res eventsearch.Result
	require.NoError(t, json.Unmarshal([]byte(payload), &res))
	assert.Equal(t, core.OutcomeOK, res.Outcome)
	assert.Len(t, res.Events, 1)
}

func TestSearchEventsStreamBadQuery(t *testing.T) {
	router := newRouter(newTestHandler(&stubProvider{text: providerAnswer}))

	for _, target := range []string{
		"/events/search/stream?radius=far",
		"/events/search/stream?lat=1",
		"/events/search/stream?preset=nope",
	} {
		rec := do(t, router, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSearchRequestFromQuery(t *testing.T) {
	req, err := searchRequestFromQuery(map[string][]string{
		"q":      {"Austin, TX"},
		"date":   {"2026-10-20"},
		"slot":   {"mobile"},
		"preset": {"salsa"},
	})
	require.NoError(t, err)
	require.NotNil(t, req.Filters)
	assert.Equal(t, "Austin, TX", req.Filters.ManualLocationQuery)
	assert.Equal(t, "2026-10-20", req.Filters.Date)
	assert.Equal(t, models.DefaultRadiusKM, req.Filters.Radius)
	assert.Nil(t, req.Location)
	assert.Equal(t, "mobile", req.Slot)

	req, err = searchRequestFromQuery(map[string][]string{})
	require.NoError(t, err)
	assert.Nil(t, req.Filters)
}

func TestFilters(t *testing.T) {
	router := newRouter(newTestHandler(nil))

	rec := do(t, router, http.MethodGet, "/filters/phone", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Filters
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.DefaultFilters(), got)

	rec = do(t, router, http.MethodPut, "/filters/phone", `{"danceStyle":"foxtrot","eventType":"social","skillLevel":"all levels","costCategory":"all costs","date":"tonight","radius":25}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "DanceStyle")

	rec = do(t, router, http.MethodPut, "/filters/phone", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/filters/phone", `{"danceStyle":"zouk","eventType":"festival","skillLevel":"all levels","costCategory":"high","date":"2026-11-01","radius":100}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/filters/phone", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.DanceStyleZouk, got.DanceStyle)
	assert.Equal(t, 100, got.Radius)

	rec = do(t, router, http.MethodGet, "/filters", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.DefaultFilters(), got)
}

func TestVocabularies(t *testing.T) {
	h := newTestHandler(nil)
	h.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }

	rec := do(t, newRouter(h), http.MethodGet, "/vocabularies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got vocabulariesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.DanceStyles, got.DanceStyles)
	assert.Equal(t, models.RadiusOptions, got.RadiusOptions)
	assert.Len(t, got.Presets, len(models.Presets))
	assert.Equal(t, "2026-10-18", got.MinDate)
	assert.Equal(t, "2026-11-01", got.MaxDate)
	assert.Equal(t, models.DefaultFilters(), got.Defaults)
}

func TestReverseGeocode(t *testing.T) {
	router := newRouter(newTestHandler(nil))

	rec := do(t, router, http.MethodGet, "/geocode/reverse?lat=37.76&lng=-122.41", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var place geocode.Place
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &place))
	assert.Equal(t, "Mission District, San Francisco", place.Name)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/geocode/reverse?lat=37.76", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/geocode/reverse?lat=95&lng=0", "").Code)

	h := New(Deps{Logger: logging.Discard()})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, newRouter(h), http.MethodGet, "/geocode/reverse?lat=1&lng=1", "").Code)
}

func TestSearchPlaces(t *testing.T) {
	forward := &fakeForward{results: []geocode.Result{{DisplayName: "Oakland, CA", Lat: 37.8, Lng: -122.27}}}
	h := New(Deps{Forward: forward, Logger: logging.Discard()})
	router := newRouter(h)

	rec := do(t, router, http.MethodGet, "/geocode/search?q=oakland&limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, forward.limit)
	var body struct {
		Results []geocode.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "Oakland, CA", body.Results[0].DisplayName)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/geocode/search?q=", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/geocode/search?q=x&limit=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/geocode/search?q="+strings.Repeat("a", 201), "").Code)

	forward.err = errors.New("upstream down")
	assert.Equal(t, http.StatusBadGateway, do(t, router, http.MethodGet, "/geocode/search?q=oakland", "").Code)
}

func TestConfiguredDefaultSlot(t *testing.T) {
	router := newRouter(New(Deps{DefaultSlot: "kiosk", Logger: logging.Discard()}))

	rec := do(t, router, http.MethodPut, "/filters", `{"danceStyle":"swing","eventType":"all types","skillLevel":"all levels","costCategory":"all costs","date":"tonight","radius":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/filters/kiosk", "")
	var got models.Filters
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.DanceStyleSwing, got.DanceStyle)
}

func TestLatestSearch(t *testing.T) {
	router := newRouter(newTestHandler(&stubProvider{text: providerAnswer}))

	rec := do(t, router, http.MethodGet, "/events/search/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/events/search", `{"location":{"latitude":37.7749,"longitude":-122.4194}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeResult(t, rec)

	rec = do(t, router, http.MethodGet, "/events/search/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.SearchID, decodeResult(t, rec).SearchID)

	rec = do(t, router, http.MethodGet, "/events/search/latest?slot=other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelSearch(t *testing.T) {
	router := newRouter(newTestHandler(&stubProvider{text: providerAnswer}))
	rec := do(t, router, http.MethodDelete, "/events/search?slot=phone", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	router = newRouter(newTestHandler(nil))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, router, http.MethodDelete, "/events/search", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, router, http.MethodGet, "/events/search/latest", "").Code)
}

func TestSessionsEvictLeastRecentlyUsed(t *testing.T) {
	h := newTestHandler(&stubProvider{text: providerAnswer})
	h.maxSessions = 2
	clock := time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC)
	h.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	router := newRouter(h)

	for _, slot := range []string{"a", "b"} {
		rec := do(t, router, http.MethodPost, "/events/search", `{"slot":"`+slot+`","location":{"latitude":37.7749,"longitude":-122.4194}}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	// Touching "a" makes "b" the oldest.
	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/events/search/latest?slot=a", "").Code)

	rec := do(t, router, http.MethodPost, "/events/search", `{"slot":"c","location":{"latitude":37.7749,"longitude":-122.4194}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, h.sessions, 2)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/events/search/latest?slot=a", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/events/search/latest?slot=b", "").Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/events/search/latest?slot=c", "").Code)
}

func TestLookupsDoNotCreateSessions(t *testing.T) {
	h := newTestHandler(&stubProvider{text: providerAnswer})
	router := newRouter(h)
	for i := 0; i < 10; i++ {
		slot := fmt.Sprintf("slot-%d", i)
		assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/events/search/latest?slot="+slot, "").Code)
		assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/events/search?slot="+slot, "").Code)
	}
	assert.Empty(t, h.sessions)
}
