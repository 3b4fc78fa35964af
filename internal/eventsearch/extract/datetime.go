package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateStrategyEmpty          = "empty"
	DateStrategyTimeOfDay      = "time_of_day"
	DateStrategyDirect         = "direct"
	DateStrategyMidnightSuffix = "midnight_suffix"
	DateStrategyNow            = "now"
)

var (
	enMonthPattern = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t|tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

	timeOfDayRE = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})(?::(\d{2}))?\s*(am|pm)?$`)

	dateCandidatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(?::\d{2})?(?:Z|[+-]\d{2}:?\d{2})?\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}[./-]\d{1,2}[./-]\d{2,4}(?:\s*(?:at)?\s*\d{1,2}[:.]\d{2}(?:\s?(?:am|pm))?)?\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s+` + enMonthPattern + `(?:\s+\d{2,4})?(?:\s*(?:at)?\s*\d{1,2}(?::\d{2}|\.\d{2})?(?:\s?(?:am|pm))?)?\b`),
		regexp.MustCompile(`(?i)\b` + enMonthPattern + `\s+\d{1,2},?\s+\d{4}(?:\s*(?:at)?\s*\d{1,2}(?::\d{2})?(?:\s?(?:am|pm))?)?\b`),
	}

	weekdayCleaner = regexp.MustCompile(`(?i)\b(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|wed|thu|fri|sat|sun),?\s+`)
	atCleaner      = regexp.MustCompile(`(?i)(^|\s)at\s+`)
	ampmSpaceRE    = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?)\s*(am|pm)\b`)
	ordinalRE      = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\b`)

	errTimeOutOfRange = errors.New("time of day out of range")
)

type layoutSpec struct {
	layout  string
	hasYear bool
	// utc marks layouts whose zone-less values are read as UTC instead of the
	// normalizer's local zone (bare ISO calendar dates).
	utc bool
}

// Machine formats, tried against the raw (case-preserved) input.
var isoLayouts = []layoutSpec{
	{layout: time.RFC3339Nano, hasYear: true},
	{layout: "2006-01-02T15:04Z07:00", hasYear: true},
	{layout: "2006-01-02T15:04:05.999999999", hasYear: true},
	{layout: "2006-01-02T15:04", hasYear: true},
	{layout: "2006-01-02 15:04:05Z07:00", hasYear: true},
	{layout: "2006-01-02 15:04:05", hasYear: true},
	{layout: "2006-01-02 15:04", hasYear: true},
	{layout: "2006-01-02", hasYear: true, utc: true},
	{layout: "2006/01/02 15:04:05", hasYear: true},
	{layout: "2006/01/02 15:04", hasYear: true},
	{layout: "2006/01/02", hasYear: true},
	{layout: time.RFC1123, hasYear: true},
	{layout: time.RFC1123Z, hasYear: true},
	{layout: time.RFC850, hasYear: true},
	{layout: time.ANSIC, hasYear: true},
	{layout: "Mon, 2 Jan 2006 15:04:05 MST", hasYear: true},
	{layout: "Mon Jan 02 2006 15:04:05 GMT-0700", hasYear: true},
}

// Human formats, tried against the lower-cased, cleaned input.
var humanLayouts = []layoutSpec{
	{layout: "2 Jan 2006 15:04", hasYear: true},
	{layout: "2 Jan 2006 15.04", hasYear: true},
	{layout: "2 January 2006 15:04", hasYear: true},
	{layout: "2 January 2006 15.04", hasYear: true},
	{layout: "2 Jan 2006 3:04pm", hasYear: true},
	{layout: "2 January 2006 3:04pm", hasYear: true},
	{layout: "2 Jan 2006 3pm", hasYear: true},
	{layout: "2 January 2006 3pm", hasYear: true},
	{layout: "02.01.2006 15:04", hasYear: true},
	{layout: "2.1.2006 15:04", hasYear: true},
	{layout: "2 Jan 2006", hasYear: true},
	{layout: "2 January 2006", hasYear: true},
	{layout: "02.01.2006", hasYear: true},
	{layout: "2.1.2006", hasYear: true},
	{layout: "1/2/2006 15:04", hasYear: true},
	{layout: "1/2/2006 3:04pm", hasYear: true},
	{layout: "1/2/2006", hasYear: true},
	{layout: "January 2, 2006 15:04", hasYear: true},
	{layout: "January 2, 2006 3:04pm", hasYear: true},
	{layout: "January 2, 2006 3pm", hasYear: true},
	{layout: "January 2, 2006", hasYear: true},
	{layout: "Jan 2, 2006 15:04", hasYear: true},
	{layout: "Jan 2, 2006 3:04pm", hasYear: true},
	{layout: "Jan 2, 2006 3pm", hasYear: true},
	{layout: "Jan 2, 2006", hasYear: true},
	{layout: "January 2 2006 15:04", hasYear: true},
	{layout: "January 2 2006 3:04pm", hasYear: true},
	{layout: "January 2 2006", hasYear: true},
	{layout: "Jan 2 2006 15:04", hasYear: true},
	{layout: "Jan 2 2006", hasYear: true},
	{layout: "2 Jan 15:04", hasYear: false},
	{layout: "2 January 15:04", hasYear: false},
	{layout: "2 Jan 3:04pm", hasYear: false},
	{layout: "2 January 3:04pm", hasYear: false},
	{layout: "January 2 15:04", hasYear: false},
	{layout: "January 2 3:04pm", hasYear: false},
	{layout: "January 2 3pm", hasYear: false},
	{layout: "2 Jan", hasYear: false},
	{layout: "2 January", hasYear: false},
	{layout: "January 2", hasYear: false},
}

// Layouts accepted once the midnight suffix has been appended.
var midnightLayouts = []layoutSpec{
	{layout: "2006-01-02T15:04:05", hasYear: true},
	{layout: "2006-1-2T15:04:05", hasYear: true},
	{layout: "2006/1/2T15:04:05", hasYear: true},
	{layout: "2006.01.02T15:04:05", hasYear: true},
}

type dateStrategy struct {
	name string
	// parse returns matched=false to hand over to the next strategy. A match with
	// an error ends the chain at the final fallback.
	parse func(n *DateNormalizer, raw string) (t time.Time, matched bool, err error)
}

var dateStrategies = []dateStrategy{
	{name: DateStrategyTimeOfDay, parse: (*DateNormalizer).parseTimeOfDay},
	{name: DateStrategyDirect, parse: (*DateNormalizer).parseDirect},
	{name: DateStrategyMidnightSuffix, parse: (*DateNormalizer).parseMidnightSuffix},
}

// DateNormalizer turns provider date strings into absolute instants. It never fails:
// every unusable input resolves to the current instant.
type DateNormalizer struct {
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// NewDateNormalizer creates a normalizer. loc is the zone used for bare times and
// zone-less timestamps; nil means time.Local.
func NewDateNormalizer(loc *time.Location, now func() time.Time, logger *slog.Logger) *DateNormalizer {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DateNormalizer{loc: loc, now: now, logger: logger}
}

// Normalize returns the instant for raw, in UTC.
func (n *DateNormalizer) Normalize(raw string) time.Time {
	t, _ := n.NormalizeWithStrategy(raw)
	return t
}

// NormalizeWithStrategy also reports which strategy produced the value.
func (n *DateNormalizer) NormalizeWithStrategy(raw string) (time.Time, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		n.logger.Warn("date_normalize_fallback", "reason", "empty_input")
		return n.now().UTC(), DateStrategyEmpty
	}
	for _, strategy := range dateStrategies {
		t, matched, err := strategy.parse(n, trimmed)
		if !matched {
			continue
		}
		if err != nil {
			n.logger.Warn("date_normalize_fallback", "input", trimmed, "strategy", strategy.name, "error", err)
			return n.now().UTC(), DateStrategyNow
		}
		return t.UTC(), strategy.name
	}
	n.logger.Warn("date_normalize_fallback", "input", trimmed, "reason", "unparseable")
	return n.now().UTC(), DateStrategyNow
}

func (n *DateNormalizer) parseTimeOfDay(raw string) (time.Time, bool, error) {
	m := timeOfDayRE.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false, nil
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds := 0
	if m[3] != "" {
		seconds, _ = strconv.Atoi(m[3])
	}
	switch strings.ToLower(m[4]) {
	case "pm":
		if hours < 12 {
			hours += 12
		}
	case "am":
		if hours == 12 {
			hours = 0
		}
	}
	if hours > 23 || minutes > 59 || seconds > 59 {
		return time.Time{}, true, fmt.Errorf("%w: %q", errTimeOutOfRange, raw)
	}
	today := n.now().In(n.loc)
	return time.Date(today.Year(), today.Month(), today.Day(), hours, minutes, seconds, 0, n.loc), true, nil
}

func (n *DateNormalizer) parseDirect(raw string) (time.Time, bool, error) {
	if t, ok := n.parseLayouts(isoLayouts, raw); ok {
		return t, true, nil
	}
	cleaned := normalizeDateInput(raw)
	if t, ok := n.parseLayouts(humanLayouts, cleaned); ok {
		return t, true, nil
	}
	for _, candidate := range ExtractDateCandidates(raw) {
		if t, ok := n.parseLayouts(isoLayouts, candidate); ok {
			return t, true, nil
		}
		if t, ok := n.parseLayouts(humanLayouts, normalizeDateInput(candidate)); ok {
			return t, true, nil
		}
	}
	return time.Time{}, false, nil
}

func (n *DateNormalizer) parseMidnightSuffix(raw string) (time.Time, bool, error) {
	if t, ok := n.parseLayouts(midnightLayouts, raw+"T00:00:00"); ok {
		return t, true, nil
	}
	return time.Time{}, false, nil
}

func (n *DateNormalizer) parseLayouts(specs []layoutSpec, value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, spec := range specs {
		loc := n.loc
		if spec.utc {
			loc = time.UTC
		}
		t, err := time.ParseInLocation(spec.layout, value, loc)
		if err != nil {
			continue
		}
		if !spec.hasYear || t.Year() <= 1 {
			year := n.now().In(loc).Year()
			t = time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
		}
		return t, true
	}
	return time.Time{}, false
}

// ExtractDateCandidates finds date-looking fragments inside free text.
func ExtractDateCandidates(text string) []string {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, re := range dateCandidatePatterns {
		for _, match := range re.FindAllString(normalized, -1) {
			clean := strings.TrimSpace(match)
			if clean == "" {
				continue
			}
			if _, ok := seen[clean]; ok {
				continue
			}
			seen[clean] = struct{}{}
			out = append(out, clean)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeDateInput(candidate string) string {
	s := strings.TrimSpace(candidate)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ToLower(s)
	s = weekdayCleaner.ReplaceAllString(s, "")
	s = ordinalRE.ReplaceAllString(s, "$1")
	s = ampmSpaceRE.ReplaceAllString(s, "$1$2")
	s = atCleaner.ReplaceAllString(s, "$1")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
