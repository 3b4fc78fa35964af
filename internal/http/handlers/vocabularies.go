package handlers

import (
	"net/http"

	"dancetonight/internal/models"
)

type vocabulariesResponse struct {
	DanceStyles    []models.DanceStyle   `json:"danceStyles"`
	EventTypes     []models.EventType    `json:"eventTypes"`
	SkillLevels    []models.SkillLevel   `json:"skillLevels"`
	CostCategories []models.CostCategory `json:"costCategories"`
	RadiusOptions  []int                 `json:"radiusOptions"`
	Presets        []models.Preset       `json:"presets"`
	Defaults       models.Filters        `json:"defaults"`
	MinDate        string                `json:"minDate"`
	MaxDate        string                `json:"maxDate"`
}

// Vocabularies lists the values every filter accepts.
func (h *Handler) Vocabularies(w http.ResponseWriter, r *http.Request) {
	minDate, maxDate := models.DateRange(h.now())
	writeJSON(w, http.StatusOK, vocabulariesResponse{
		DanceStyles:    models.DanceStyles,
		EventTypes:     models.EventTypes,
		SkillLevels:    models.SkillLevels,
		CostCategories: models.CostCategories,
		RadiusOptions:  models.RadiusOptions,
		Presets:        models.Presets,
		Defaults:       models.DefaultFilters(),
		MinDate:        minDate,
		MaxDate:        maxDate,
	})
}
