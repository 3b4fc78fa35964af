package models

import (
	"regexp"
	"strings"
	"time"
)

const (
	DateTonight  = "tonight"
	DateTomorrow = "tomorrow"

	DefaultRadiusKM = 25
	// MaxFutureDays bounds the concrete dates offered by date pickers.
	MaxFutureDays = 14
)

var isoDateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type Filters struct {
	DanceStyle          DanceStyle   `json:"danceStyle" validate:"required,dancestyle"`
	EventType           EventType    `json:"eventType" validate:"required,eventtype"`
	SkillLevel          SkillLevel   `json:"skillLevel" validate:"required,skilllevel"`
	CostCategory        CostCategory `json:"costCategory" validate:"required,costcategory"`
	Date                string       `json:"date" validate:"required,filterdate"`
	Radius              int          `json:"radius" validate:"gt=0,lte=1000"`
	ManualLocationQuery string       `json:"manualLocationQuery" validate:"max=200"`
}

// DefaultFilters returns the filter set used when nothing was persisted.
func DefaultFilters() Filters {
	return Filters{
		DanceStyle:   DanceStyleAll,
		EventType:    EventTypeAll,
		SkillLevel:   SkillLevelAll,
		CostCategory: CostAll,
		Date:         DateTonight,
		Radius:       DefaultRadiusKM,
	}
}

// IsSymbolicDate reports whether date is one of the relative tokens.
func IsSymbolicDate(date string) bool {
	return date == DateTonight || date == DateTomorrow
}

// IsFilterDate reports whether date is a symbolic token or a YYYY-MM-DD calendar date.
func IsFilterDate(date string) bool {
	if IsSymbolicDate(date) {
		return true
	}
	if !isoDateRE.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// Normalize returns a copy with unknown values replaced by their defaults.
func (f Filters) Normalize() Filters {
	out := f
	out.DanceStyle = DanceStyle(strings.ToLower(strings.TrimSpace(string(f.DanceStyle))))
	if !containsValue(DanceStyles, out.DanceStyle) {
		out.DanceStyle = DanceStyleAll
	}
	out.EventType = EventType(strings.ToLower(strings.TrimSpace(string(f.EventType))))
	if !containsValue(EventTypes, out.EventType) {
		out.EventType = EventTypeAll
	}
	out.SkillLevel = SkillLevel(strings.ToLower(strings.TrimSpace(string(f.SkillLevel))))
	if !containsValue(SkillLevels, out.SkillLevel) {
		out.SkillLevel = SkillLevelAll
	}
	out.CostCategory = CostCategory(strings.ToLower(strings.TrimSpace(string(f.CostCategory))))
	if !containsValue(CostCategories, out.CostCategory) {
		out.CostCategory = CostAll
	}
	out.Date = strings.ToLower(strings.TrimSpace(f.Date))
	if !IsFilterDate(out.Date) {
		out.Date = DateTonight
	}
	if out.Radius <= 0 {
		out.Radius = DefaultRadiusKM
	}
	out.ManualLocationQuery = strings.TrimSpace(f.ManualLocationQuery)
	return out
}

// DateRange returns the first and last concrete dates a client may pick,
// starting from today.
func DateRange(today time.Time) (string, string) {
	return today.Format("2006-01-02"), today.AddDate(0, 0, MaxFutureDays).Format("2006-01-02")
}

// SkillLevelApplies reports whether the skill level filter is meaningful for the event type.
func (f Filters) SkillLevelApplies() bool {
	return (f.EventType == EventTypeLesson || f.EventType == EventTypeWorkshop) && f.SkillLevel != SkillLevelAll
}

type UserLocation struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type EventLocation struct {
	Venue   string   `json:"venue"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// HasCoordinates reports whether both coordinates are known.
func (l EventLocation) HasCoordinates() bool {
	return l.Lat != nil && l.Lng != nil
}

type DanceEvent struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	ImageURL     string        `json:"imageUrl,omitempty"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	City         string        `json:"city,omitempty"`
	Location     EventLocation `json:"location"`
	Genres       []DanceStyle  `json:"genres"`
	Type         EventType     `json:"type"`
	Level        *SkillLevel   `json:"level,omitempty"`
	Cost         string        `json:"cost"`
	CostCategory CostCategory  `json:"costCategory"`
	Description  string        `json:"description"`
	Website      string        `json:"website,omitempty"`
	Host         string        `json:"host,omitempty"`
	DistanceKM   *float64      `json:"distance,omitempty"`
}

type GroundingSource struct {
	ID     string `json:"id"`
	URI    string `json:"uri"`
	Title  string `json:"title,omitempty"`
	Domain string `json:"domain,omitempty"`
}
