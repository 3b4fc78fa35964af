package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"dancetonight/internal/models"
)

// ReverseGeocode names a coordinate pair. Lookup failures still answer 200
// with the coordinates as the name.
func (h *Handler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	if h.reverse == nil {
		writeError(w, http.StatusServiceUnavailable, "reverse geocoding is not configured")
		return
	}
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required numbers")
		return
	}
	if err := h.validator.Struct(models.UserLocation{Latitude: lat, Longitude: lng}); err != nil {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	writeJSON(w, http.StatusOK, h.reverse.Reverse(ctx, lat, lng))
}

// SearchPlaces forward-geocodes a free-text place for the manual location box.
func (h *Handler) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	if h.forward == nil {
		writeError(w, http.StatusServiceUnavailable, "geocoding is not configured")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	if len(q) > 200 {
		writeError(w, http.StatusBadRequest, "q is too long")
		return
	}
	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	results, err := h.forward.Search(ctx, q, limit)
	if err != nil {
		logger.Warn("search_places", "action", "geocode", "error", err)
		writeError(w, http.StatusBadGateway, "geocoding failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
