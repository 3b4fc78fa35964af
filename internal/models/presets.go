package models

import "strings"

// Preset is a named partial filter set offered as a one-tap shortcut.
// Empty fields leave the current value untouched.
type Preset struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Date         string       `json:"date,omitempty"`
	DanceStyle   DanceStyle   `json:"danceStyle,omitempty"`
	EventType    EventType    `json:"eventType,omitempty"`
	SkillLevel   SkillLevel   `json:"skillLevel,omitempty"`
	CostCategory CostCategory `json:"costCategory,omitempty"`
}

var Presets = []Preset{
	{ID: "tonight-social", Name: "Tonight's Social", Date: DateTonight, EventType: EventTypeSocial, DanceStyle: DanceStyleAll},
	{ID: "beginner-classes", Name: "Beginner Classes", EventType: EventTypeLesson, SkillLevel: SkillLevelBeginner, DanceStyle: DanceStyleAll},
	{ID: "salsa", Name: "Salsa Events", DanceStyle: DanceStyleSalsa, EventType: EventTypeAll},
	{ID: "free", Name: "Free Events", CostCategory: CostFree, EventType: EventTypeAll},
}

// FindPreset looks a preset up by id, case-insensitively.
func FindPreset(id string) (Preset, bool) {
	for _, p := range Presets {
		if strings.EqualFold(p.ID, strings.TrimSpace(id)) {
			return p, true
		}
	}
	return Preset{}, false
}

// Apply overlays the preset's non-empty fields on f.
func (p Preset) Apply(f Filters) Filters {
	if p.Date != "" {
		f.Date = p.Date
	}
	if p.DanceStyle != "" {
		f.DanceStyle = p.DanceStyle
	}
	if p.EventType != "" {
		f.EventType = p.EventType
	}
	if p.SkillLevel != "" {
		f.SkillLevel = p.SkillLevel
	}
	if p.CostCategory != "" {
		f.CostCategory = p.CostCategory
	}
	return f
}
