package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"dancetonight/internal/eventsearch/core"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-2.5-flash"
)

type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	// Timeout of zero leaves the call bounded only by the caller's context.
	Timeout      time.Duration
	RateLimitRPS float64
	HTTPClient   *http.Client
}

// Client calls generateContent with the Google Search tool enabled.
type Client struct {
	apiKey  string
	model   string
	timeout time.Duration
	genai   *genai.Client
	initErr error
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New never fails: a missing key leaves the SDK client unset so Search
// reports ErrMissingCredentials, and SDK setup errors surface on the first
// Search.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	c := &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		timeout: cfg.Timeout,
		limiter: limiter,
		logger:  logger,
	}
	if c.apiKey == "" {
		return c
	}
	c.genai, c.initErr = genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      c.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: endpoint + "/"},
	})
	if c.initErr != nil {
		logger.Error("provider_init_failed", "error", c.initErr)
	}
	return c
}

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool {
	return c != nil && c.apiKey != ""
}

// Search sends prompt and returns the concatenated candidate text and the
// web grounding citations.
func (c *Client) Search(ctx context.Context, prompt string) (*core.ProviderResponse, error) {
	if !c.HasCredentials() {
		return nil, core.ErrMissingCredentials
	}
	if c.initErr != nil {
		return nil, &core.ProviderError{Message: "client setup", Err: c.initErr}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &core.ProviderError{Message: "rate limiter", Err: err}
		}
	}

	started := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		c.logger.Debug("provider_response", "model", c.model, "error", err, "duration_ms", time.Since(started).Milliseconds())
		return nil, providerError(err)
	}
	c.logger.Debug("provider_response", "model", c.model, "candidates", len(resp.Candidates), "duration_ms", time.Since(started).Milliseconds())

	if len(resp.Candidates) == 0 && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &core.ProviderError{Status: http.StatusOK, Message: "prompt blocked: " + string(resp.PromptFeedback.BlockReason)}
	}
	return toResponse(resp), nil
}

func providerError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return &core.ProviderError{Message: "request failed", Err: err}
	}
	msg := strings.TrimSpace(apiErr.Message)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	// Non-JSON error bodies leave the HTTP status line ("429 Too Many
	// Requests") in Status; only the symbolic API status is worth keeping.
	if s := apiErr.Status; s != "" && (s[0] < '0' || s[0] > '9') {
		if msg == "" {
			msg = s
		} else {
			msg = s + ": " + msg
		}
	}
	return &core.ProviderError{Status: apiErr.Code, Message: msg, Err: err}
}
