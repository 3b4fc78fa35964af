package gemini

import (
	"strings"

	"google.golang.org/genai"

	"dancetonight/internal/eventsearch/core"
)

// toResponse keeps the first candidate only and skips thought parts. Chunks
// without a web entry keep their slot with an empty URI so citation positions
// stay aligned.
func toResponse(resp *genai.GenerateContentResponse) *core.ProviderResponse {
	out := &core.ProviderResponse{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}
	first := resp.Candidates[0]
	if first.Content != nil {
		var sb strings.Builder
		for _, p := range first.Content.Parts {
			if p == nil || p.Thought {
				continue
			}
			sb.WriteString(p.Text)
		}
		out.Text = sb.String()
	}
	if first.GroundingMetadata == nil {
		return out
	}
	for _, chunk := range first.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			out.Citations = append(out.Citations, core.Citation{})
			continue
		}
		out.Citations = append(out.Citations, core.Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return out
}
