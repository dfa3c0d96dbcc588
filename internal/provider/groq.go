package provider

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const defaultGroqURL = "https://api.groq.com/openai/v1"

// GroqProvider streams from Groq's OpenAI-compatible Chat Completions API.
// Groq backs the free tier.
type GroqProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// GroqOption configures the provider.
type GroqOption func(*GroqProvider)

// WithGroqURL overrides the base URL. Used by tests.
func WithGroqURL(url string) GroqOption {
	return func(p *GroqProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// NewGroq creates the Groq adapter.
func NewGroq(apiKey, model string, timeout time.Duration, opts ...GroqOption) *GroqProvider {
	p := &GroqProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGroqURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GroqProvider) Name() string     { return Groq }
func (p *GroqProvider) Configured() bool { return p.apiKey != "" }

func (p *GroqProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return openChatStream(ctx, p.client, p.baseURL, p.apiKey, chatBody(p.model, req, true, 4096))
}
