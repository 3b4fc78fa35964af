package assemble

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"dancetonight/internal/eventsearch/core"
	"dancetonight/internal/models"
)

// Sources converts provider citations into grounding sources. Citations
// without a URI are dropped; ids keep the citation's original position.
func Sources(citations []core.Citation) []models.GroundingSource {
	out := make([]models.GroundingSource, 0, len(citations))
	for i, c := range citations {
		uri := strings.TrimSpace(c.URI)
		if uri == "" {
			continue
		}
		out = append(out, models.GroundingSource{
			ID:     fmt.Sprintf("source-%d-%s", i, uri),
			URI:    uri,
			Title:  strings.TrimSpace(c.Title),
			Domain: registrableDomain(uri),
		})
	}
	return out
}

func registrableDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
