package extract

import (
	"html"
	"regexp"
	"strings"
)

var (
	multiSpaceRE = regexp.MustCompile(`\s+`)
	slugStripRE  = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeText unescapes HTML entities, collapses whitespace per line and drops empty lines.
func NormalizeText(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.TrimSpace(multiSpaceRE.ReplaceAllString(line, " "))
		if clean == "" {
			continue
		}
		out = append(out, clean)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Slugify lower-cases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	slug := slugStripRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	return slug
}
