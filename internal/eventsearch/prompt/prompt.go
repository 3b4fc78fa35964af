package prompt

import (
	"fmt"
	"strings"

	"dancetonight/internal/eventsearch/geo"
	"dancetonight/internal/models"
)

const appName = "DanceTonight"

// Builder renders filters and location into the provider instruction.
// Build is pure: the same inputs always give the same text.
type Builder struct {
	regions         []Region
	defaultLocation models.UserLocation
	defaultLabel    string
}

// Option configures a Builder.
type Option func(*Builder)

// WithRegions replaces the built-in bounding boxes.
func WithRegions(regions []Region) Option {
	return func(b *Builder) {
		b.regions = append([]Region(nil), regions...)
	}
}

// WithDefaultLocation sets the coordinates and label used when no location is known.
func WithDefaultLocation(loc models.UserLocation, label string) Option {
	return func(b *Builder) {
		b.defaultLocation = loc
		if strings.TrimSpace(label) != "" {
			b.defaultLabel = strings.TrimSpace(label)
		}
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		regions:         DefaultRegions(),
		defaultLocation: models.UserLocation{Latitude: 37.7749, Longitude: -122.4194},
		defaultLabel:    "San Francisco, CA (example, based on default coordinates)",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegionLabel returns the name of the first region containing loc, or "".
func (b *Builder) RegionLabel(loc models.UserLocation) string {
	p := geo.Point{Lat: loc.Latitude, Lng: loc.Longitude}
	for _, r := range b.regions {
		if r.Contains(p) {
			return r.Name
		}
	}
	return ""
}

// Build renders the prompt. loc may be nil.
func (b *Builder) Build(filters models.Filters, loc *models.UserLocation) string {
	locationInstruction, focus := b.locationClause(filters, loc)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert dance event finder for the %q app. Your task is to find dance events based on the following criteria:\n", appName)
	fmt.Fprintf(&sb, "Location: %s\n", locationInstruction)
	fmt.Fprintf(&sb, "Date: %s\n", dateClause(filters.Date, focus))
	sb.WriteString(styleClause(filters.DanceStyle, focus) + "\n")
	sb.WriteString(typeClause(filters.EventType) + "\n")
	if filters.SkillLevelApplies() {
		fmt.Fprintf(&sb, "The skill level should be '%s'.\n", filters.SkillLevel)
	}
	if clause := costClause(filters.CostCategory); clause != "" {
		sb.WriteString(clause + "\n")
	}
	fmt.Fprintf(&sb, "Search Radius: approximately %d km from the specified location focus (if coordinates are used) or within the general area of the manually specified location.\n\n", filters.Radius)

	sb.WriteString("CRITICAL SEARCH INSTRUCTIONS:\n")
	fmt.Fprintf(&sb, "1. Perform a thorough web search. Actively search websites of local dance studios (e.g., \"dance studios in %s\"), Facebook Events pages for %s, and local community event boards for %s.\n", focus, focus, focus)
	sb.WriteString("2. Prioritize official sources like dance school websites or direct event pages over general event aggregators if possible.\n")
	sb.WriteString("3. If a specific dance style (e.g., 'salsa') and event type (e.g., 'lesson') are requested, the events you return MUST be explicitly for that style and type. Do not substitute with other styles or types.\n\n")

	sb.WriteString(outputContract(filters, focus))
	return sb.String()
}

func (b *Builder) locationClause(filters models.Filters, loc *models.UserLocation) (string, string) {
	if manual := strings.TrimSpace(filters.ManualLocationQuery); manual != "" {
		return fmt.Sprintf("Use the following text as the primary search location: %q. This manually entered location should be the central point of your search and overrides any latitude/longitude for search focus.", manual), manual
	}
	if loc != nil {
		instruction := fmt.Sprintf("Use the geographical coordinates: latitude %.4f, longitude %.4f.", loc.Latitude, loc.Longitude)
		if label := b.RegionLabel(*loc); label != "" {
			return instruction + fmt.Sprintf(" (This is in the %s area. Focus your search here.)", label), label
		}
		focus := fmt.Sprintf("the area around lat %.2f, lon %.2f", loc.Latitude, loc.Longitude)
		return instruction + " (Focus your search in this general area.)", focus
	}
	instruction := fmt.Sprintf("Use the geographical coordinates: latitude %.4f, longitude %.4f.", b.defaultLocation.Latitude, b.defaultLocation.Longitude)
	return instruction + fmt.Sprintf(" (This is a default location, e.g., %s. Focus your search here.)", b.defaultLabel), b.defaultLabel
}

func dateClause(date, focus string) string {
	if models.IsSymbolicDate(date) {
		return fmt.Sprintf("for %s. Calculate the actual date based on the current local date for the event's location (derived from %s). Assume '%s' refers to the evening of that calculated date.", date, focus, date)
	}
	return fmt.Sprintf("for %s.", date)
}

func styleClause(style models.DanceStyle, focus string) string {
	if style == models.DanceStyleAll || style == "" {
		return "Find events for dance styles: any popular dance styles."
	}
	return fmt.Sprintf("You MUST find events specifically for the dance style: '%[1]s'. Events returned MUST prominently feature this style. If an event covers multiple styles, '%[1]s' must be one of them. Prioritize listings from official dance school websites or studios that explicitly offer '%[1]s'. For example, if searching for '%[1]s' in '%[2]s', look for '%[1]s classes %[2]s' or check websites of dance studios in '%[2]s'.", style, focus)
}

func typeClause(eventType models.EventType) string {
	if eventType == models.EventTypeAll || eventType == "" {
		return "Event type should be: any type."
	}
	return fmt.Sprintf("Event type should be: '%s'. Results MUST match this event type. For example, if 'lesson' is requested, find actual classes or lessons, not just social dances.", eventType)
}

func costClause(cost models.CostCategory) string {
	switch cost {
	case models.CostFree:
		return "Cost: only include events that are free to attend."
	case models.CostLow:
		return "Cost: prefer events costing less than $10."
	case models.CostMedium:
		return "Cost: prefer events costing between $10 and $25."
	case models.CostHigh:
		return "Cost: events costing more than $25 are acceptable."
	default:
		return ""
	}
}

func outputContract(filters models.Filters, focus string) string {
	city := strings.TrimSpace(strings.Split(focus, ",")[0])
	styleExample := string(filters.DanceStyle)
	if filters.DanceStyle == models.DanceStyleAll || styleExample == "" {
		styleExample = string(models.DanceStyleSalsa)
	}

	var sb strings.Builder
	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString("Your entire response MUST be a single, valid JSON array of event objects. Do NOT include any text, comments, backticks, or markdown formatting like ```json ... ``` before or after the JSON array.\n")
	sb.WriteString("The response must start with '[' and end with ']'. If no events are found, return an empty JSON array: [].\n\n")
	sb.WriteString("Each event object in the JSON array should have the following fields:\n")
	sb.WriteString("- id: (Optional) A unique string identifier.\n")
	fmt.Fprintf(&sb, "- title: The name of the event. (Example: \"Salsa Beginners Class at a studio in %s\")\n", focus)
	sb.WriteString("- imageUrl: (Optional) A URL to an image for the event.\n")
	sb.WriteString("- startTime: The start date and time in UTC ISO 8601 format (YYYY-MM-DDTHH:mm:ssZ). Ensure this corresponds to the requested date filter (e.g., \"tonight\" in the event's local time).\n")
	sb.WriteString("- endTime: The end date and time in UTC ISO 8601 format.\n")
	fmt.Fprintf(&sb, "- city: (Optional) The city where the event is held. (Example: %q)\n", city)
	sb.WriteString("- location: An object with:\n")
	sb.WriteString("    - venue: The name of the venue. (Example: \"Local Dance Studio\")\n")
	sb.WriteString("    - address: The full street address.\n")
	sb.WriteString("    - lat: (Optional) Latitude as a number.\n")
	sb.WriteString("    - lng: (Optional) Longitude as a number.\n")
	fmt.Fprintf(&sb, "- genres: An array of dance style strings. Choose from: %s, or other clearly identifiable dance styles. If a specific style like '%s' was requested, this array MUST include its string representation. If no specific styles are mentioned in the event details but it's a dance event, you can use ['%s']. If multiple styles apply, include them all.\n",
		joinVocab(models.Concrete(models.DanceStyles)), styleExample, models.DanceStyleGeneral)
	fmt.Fprintf(&sb, "- type: A string for event type. Choose from: %s.", joinVocab(models.Concrete(models.EventTypes)))
	if filters.EventType != models.EventTypeAll && filters.EventType != "" {
		fmt.Fprintf(&sb, " This MUST match the requested event type ('%s').", filters.EventType)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "- level: (Optional) Skill level string. Choose from: %s. If not specified or not applicable, omit this field.\n", joinVocab(models.Concrete(models.SkillLevels)))
	sb.WriteString("- cost: A string describing the cost (e.g., \"Free\", \"$15\", \"$20 online\", \"Contact for price\").\n")
	sb.WriteString("- description: A brief description of the event (max 200 characters). Highlight key details.\n")
	sb.WriteString("- website: (Optional) A URL to the event's website or more information page (e.g., Facebook event page, Eventbrite page, dance school's class schedule page).\n")
	sb.WriteString("- host: (Optional) The event organizer, school, or host. (Example: \"Studio Name\")\n\n")
	sb.WriteString("Be extremely thorough and accurate in matching ALL specified criteria.\n")
	return sb.String()
}

func joinVocab[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
