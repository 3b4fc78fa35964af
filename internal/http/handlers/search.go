package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dancetonight/internal/eventsearch"
	"dancetonight/internal/eventsearch/core"
	"dancetonight/internal/geolocate"
	"dancetonight/internal/models"
	"dancetonight/internal/preferences"
)

const maxSearchBody = 64 << 10

type searchRequest struct {
	Filters  *models.Filters      `json:"filters"`
	Location *models.UserLocation `json:"location"`
	// GeolocationError is the client's position error code when it could not
	// obtain a location, e.g. "permission_denied".
	GeolocationError string `json:"geolocationError"`
	Preset           string `json:"preset"`
	Slot             string `json:"slot"`
}

// SearchEvents runs one search and returns the full result.
func (h *Handler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	var req searchRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSearchBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	searchReq, status, err := h.prepareSearch(r, req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	res, _ := h.session(h.slotOrDefault(req.Slot)).Search(r.Context(), searchReq.Request, nil)
	searchReq.annotate(&res)
	logger.Info("search_events", "action", "search", "search_id", res.SearchID, "outcome", res.Outcome, "events", len(res.Events))
	writeJSON(w, http.StatusOK, res)
}

// SearchEventsStream runs a search described by query parameters and streams
// progress stages as server-sent events, ending with the result.
func (h *Handler) SearchEventsStream(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	req, err := searchRequestFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	searchReq, status, err := h.prepareSearch(r, req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	progress := func(stage core.Stage) {
		writeSSE(w, "stage", map[string]string{"stage": string(stage)})
		flusher.Flush()
	}
	res, _ := h.session(h.slotOrDefault(req.Slot)).Search(r.Context(), searchReq.Request, progress)
	searchReq.annotate(&res)
	writeSSE(w, "result", res)
	flusher.Flush()
	logger.Info("search_events", "action", "stream", "search_id", res.SearchID, "outcome", res.Outcome, "events", len(res.Events))
}

type preparedSearch struct {
	eventsearch.Request
	locationStatus string
}

func (p preparedSearch) annotate(res *eventsearch.Result) {
	if p.locationStatus != "" {
		res.LocationStatus = p.locationStatus
	}
}

// prepareSearch resolves filters (body, preset, or the stored slot), persists
// them, and maps a client geolocation failure onto the default location.
func (h *Handler) prepareSearch(r *http.Request, req searchRequest) (preparedSearch, int, error) {
	if h.search == nil {
		return preparedSearch{}, http.StatusServiceUnavailable, fmt.Errorf("search is not configured")
	}
	slot := h.slotOrDefault(req.Slot)
	var filters models.Filters
	if req.Filters != nil {
		filters = req.Filters.Normalize()
	} else {
		filters = h.filters.Load(r.Context(), slot)
	}
	if req.Preset != "" {
		preset, ok := models.FindPreset(req.Preset)
		if !ok {
			return preparedSearch{}, http.StatusBadRequest, fmt.Errorf("unknown preset %q", req.Preset)
		}
		filters = preset.Apply(filters).Normalize()
	}
	if err := h.validator.Struct(filters); err != nil {
		return preparedSearch{}, http.StatusBadRequest, fmt.Errorf("invalid filters: %s", preferences.Describe(err))
	}
	if req.Location != nil {
		if err := h.validator.Struct(req.Location); err != nil {
			return preparedSearch{}, http.StatusBadRequest, fmt.Errorf("invalid location: %s", preferences.Describe(err))
		}
	}
	if req.Filters != nil || req.Preset != "" {
		if err := h.filters.Save(r.Context(), slot, filters); err != nil {
			h.loggerForRequest(r).Warn("filters_save_failed", "slot", slot, "error", err)
		}
	}

	out := preparedSearch{Request: eventsearch.Request{Filters: filters, Location: req.Location}}
	if req.Location == nil && req.GeolocationError != "" && filters.ManualLocationQuery == "" {
		status := geolocate.FromClientError(req.GeolocationError, h.defaultLocation)
		loc := status.Location
		out.Location = &loc
		out.locationStatus = status.Message
	}
	return out, http.StatusOK, nil
}

func searchRequestFromQuery(q url.Values) (searchRequest, error) {
	req := searchRequest{
		GeolocationError: q.Get("geolocationError"),
		Preset:           q.Get("preset"),
		Slot:             q.Get("slot"),
	}
	filterKeys := []string{"danceStyle", "eventType", "skillLevel", "costCategory", "date", "radius", "q"}
	hasFilters := false
	for _, key := range filterKeys {
		if q.Has(key) {
			hasFilters = true
			break
		}
	}
	if hasFilters {
		f := models.DefaultFilters()
		if v := q.Get("danceStyle"); v != "" {
			f.DanceStyle = models.DanceStyle(v)
		}
		if v := q.Get("eventType"); v != "" {
			f.EventType = models.EventType(v)
		}
		if v := q.Get("skillLevel"); v != "" {
			f.SkillLevel = models.SkillLevel(v)
		}
		if v := q.Get("costCategory"); v != "" {
			f.CostCategory = models.CostCategory(v)
		}
		if v := q.Get("date"); v != "" {
			f.Date = v
		}
		if v := q.Get("radius"); v != "" {
			radius, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("radius must be an integer")
			}
			f.Radius = radius
		}
		f.ManualLocationQuery = q.Get("q")
		req.Filters = &f
	}
	if q.Has("lat") || q.Has("lng") {
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
		if errLat != nil || errLng != nil {
			return req, fmt.Errorf("lat and lng must both be numbers")
		}
		req.Location = &models.UserLocation{Latitude: lat, Longitude: lng}
	}
	return req, nil
}

func writeSSE(w io.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{}`)
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// LatestSearch returns the last result committed for a slot.
func (h *Handler) LatestSearch(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}
	var (
		res eventsearch.Result
		ok  bool
	)
	if s, found := h.existingSession(h.slotOrDefault(r.URL.Query().Get("slot"))); found {
		res, ok = s.Current()
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no search yet")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CancelSearch stops the search in flight for a slot, if any.
func (h *Handler) CancelSearch(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}
	slot := h.slotOrDefault(r.URL.Query().Get("slot"))
	if s, ok := h.existingSession(slot); ok {
		s.Cancel()
	}
	h.loggerForRequest(r).Info("cancel_search", "action", "cancel", "slot", slot)
	w.WriteHeader(http.StatusNoContent)
}
