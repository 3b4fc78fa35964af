package tests

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dancetonight/internal/eventsearch"
	"dancetonight/internal/eventsearch/extract"
	"dancetonight/internal/provider/gemini"
)

var fixedNow = time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGemini answers generateContent with the given model text and citations
// and remembers the prompts it received.
type fakeGemini struct {
	mu      sync.Mutex
	text    string
	uris    []string
	status  int
	prompts []string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
		f.prompts = append(f.prompts, req.Contents[0].Parts[0].Text)
	}
	f.mu.Unlock()

	if f.status != 0 && f.status != http.StatusOK {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"failure"}}`))
		return
	}
	chunks := make([]map[string]interface{}, 0, len(f.uris))
	for _, uri := range f.uris {
		chunks = append(chunks, map[string]interface{}{"web": map[string]string{"uri": uri, "title": uri}})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": []interface{}{map[string]interface{}{
			"content":           map[string]interface{}{"parts": []interface{}{map[string]string{"text": f.text}}},
			"groundingMetadata": map[string]interface{}{"groundingChunks": chunks},
		}},
	})
}

func (f *fakeGemini) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func newPipeline(t *testing.T, upstream http.Handler, apiKey string) *eventsearch.Orchestrator {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	logger := quietLogger()
	client := gemini.New(gemini.Config{APIKey: apiKey, Endpoint: srv.URL}, logger)
	return eventsearch.New(client, logger,
		eventsearch.WithDateNormalizer(extract.NewDateNormalizer(time.UTC, func() time.Time { return fixedNow }, logger)),
		eventsearch.WithClock(func() time.Time { return fixedNow }),
	)
}

func fenced(jsonText string) string {
	return "Here are the events I found:\n```json\n" + strings.TrimSpace(jsonText) + "\n```\nHave fun!"
}
