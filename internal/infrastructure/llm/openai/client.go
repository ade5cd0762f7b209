package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/photoblog-ai/internal/core/aiquery"
	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/core/ports"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"

	// RateLimitKey is the shared counter every image query is charged against.
	RateLimitKey = "openai-image-query"

	curatorPrefix = "You are a poetic and creative bilingual (English/Chinese) photography curator. "
)

type SamplingParams struct {
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

func DefaultSamplingParams() SamplingParams {
	return SamplingParams{
		Temperature:      0.9,
		TopP:             0.9,
		FrequencyPenalty: 0.5,
		PresencePenalty:  0.5,
	}
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Sampling is omitted from requests when nil so the provider defaults apply.
	Sampling      *SamplingParams
	CuratorPrefix bool
	Timeout       time.Duration
}

// CallObserver records model call outcomes.
type CallObserver interface {
	ObserveModelCall(mode, outcome string, duration time.Duration)
}

type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    ports.RateLimiter
	observer   CallObserver
}

type Option func(*Client)

func WithRateLimiter(limiter ports.RateLimiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

func WithObserver(observer CallObserver) Option {
	return func(c *Client) { c.observer = observer }
}

func New(cfg Config, opts ...Option) *Client {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether a credential is configured.
func (c *Client) Enabled() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

func (c *Client) Generate(ctx context.Context, imageBase64, prompt string) (string, bool, error) {
	if !c.Enabled() {
		return "", false, nil
	}
	start := time.Now()

	if err := c.checkRateLimit(ctx); err != nil {
		c.observe("generate", outcomeFor(err), start)
		return "", true, err
	}

	var response chatResponse
	if err := c.postJSON(ctx, "/chat/completions", c.imageRequest(imageBase64, prompt, false), &response, "generate"); err != nil {
		err = wrapTemporaryIfNeeded("openai generate", err)
		c.observe("generate", outcomeFor(err), start)
		return "", true, err
	}

	text, err := response.text()
	if err != nil {
		c.observe("generate", "error", start)
		return "", true, domain.WrapError(domain.ErrTemporary, "openai generate", err)
	}
	if aiquery.IsContentFilterResponse(text) {
		c.observe("generate", "filtered", start)
		return "", true, domain.WrapError(domain.ErrContentFiltered, "openai generate", fmt.Errorf("model replied %q", truncate(text, 80)))
	}

	c.observe("generate", "success", start)
	return text, true, nil
}

// TestConnection sends a text-only probe.
func (c *Client) TestConnection(ctx context.Context) (string, bool, error) {
	if !c.Enabled() {
		return "", false, nil
	}
	if err := c.checkRateLimit(ctx); err != nil {
		return "", true, err
	}

	request := c.baseRequest(false)
	request.Messages = []chatMessage{{
		Role:    "user",
		Content: []contentPart{{Type: "text", Text: "Test connection"}},
	}}

	var response chatResponse
	if err := c.postJSON(ctx, "/chat/completions", request, &response, "test connection"); err != nil {
		return "", true, wrapTemporaryIfNeeded("openai test connection", err)
	}
	text, err := response.text()
	if err != nil {
		return "", true, err
	}
	return text, true, nil
}

func (c *Client) checkRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	allowed, err := c.limiter.Allow(ctx, RateLimitKey)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "check ai rate limit", err)
	}
	if !allowed {
		return domain.WrapError(domain.ErrRateLimited, "openai", errors.New("hourly image query quota used up"))
	}
	return nil
}

func (c *Client) baseRequest(stream bool) chatRequest {
	request := chatRequest{
		Model:  c.cfg.Model,
		Stream: stream,
	}
	if c.cfg.Sampling != nil {
		s := *c.cfg.Sampling
		request.Temperature = &s.Temperature
		request.TopP = &s.TopP
		request.FrequencyPenalty = &s.FrequencyPenalty
		request.PresencePenalty = &s.PresencePenalty
	}
	return request
}

func (c *Client) imageRequest(imageBase64, prompt string, stream bool) chatRequest {
	if c.cfg.CuratorPrefix {
		prompt = curatorPrefix + prompt
	}
	request := c.baseRequest(stream)
	request.Messages = []chatMessage{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: imageDataURL(imageBase64)}},
		},
	}}
	return request
}

func (c *Client) observe(mode, outcome string, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveModelCall(mode, outcome, time.Since(start))
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrRateLimited):
		return "rate_limited"
	case domain.IsKind(err, domain.ErrContentFiltered):
		return "filtered"
	default:
		return "error"
	}
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
