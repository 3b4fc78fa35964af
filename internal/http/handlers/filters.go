package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dancetonight/internal/models"
	"dancetonight/internal/preferences"
)

// GetFilters returns the filters stored in a slot, or the defaults.
func (h *Handler) GetFilters(w http.ResponseWriter, r *http.Request) {
	slot := h.slotOrDefault(chi.URLParam(r, "slot"))
	writeJSON(w, http.StatusOK, h.filters.Load(r.Context(), slot))
}

// PutFilters replaces the filters stored in a slot.
func (h *Handler) PutFilters(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	slot := h.slotOrDefault(chi.URLParam(r, "slot"))
	var filters models.Filters
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSearchBody)).Decode(&filters); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := h.filters.Save(ctx, slot, filters); err != nil {
		var verr *preferences.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		logger.Error("put_filters", "action", "save", "slot", slot, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save filters")
		return
	}
	logger.Info("put_filters", "action", "save", "slot", slot)
	writeJSON(w, http.StatusOK, filters)
}
