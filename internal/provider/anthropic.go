package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider streams from Anthropic's Messages API.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// AnthropicOption configures the provider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicURL overrides the endpoint. Used by tests.
func WithAnthropicURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = url }
}

// NewAnthropic creates the Anthropic adapter.
func NewAnthropic(apiKey, model string, timeout time.Duration, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultAnthropicURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AnthropicProvider) Name() string     { return Anthropic }
func (p *AnthropicProvider) Configured() bool { return p.apiKey != "" }

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	body, _ := json.Marshal(map[string]any{
		"model":      p.model,
		"max_tokens": 4096,
		"stream":     true,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{
					"type": "image",
					"source": map[string]any{
						"type":       "base64",
						"media_type": "image/png",
						"data":       base64.StdEncoding.EncodeToString(req.ImagePNG),
					},
				},
				{"type": "text", "text": req.System + "\n\n" + req.User},
			},
		}},
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, ErrProviderUnavailable
	}
	if err := mapHTTPError(resp); err != nil {
		return nil, err
	}

	return &anthropicStream{reader: bufio.NewReader(resp.Body), body: resp.Body}, nil
}

// anthropicEvent is the subset of Messages API stream events we care about.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
}

func (s *anthropicStream) Next() (string, error) {
	for {
		data, err := nextSSEData(s.reader)
		if err != nil {
			return "", io.EOF
		}

		var ev anthropicEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue // skip malformed events
		}

		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Text != "" {
				return ev.Delta.Text, nil
			}
		case "message_stop":
			return "", io.EOF
		}
	}
}

func (s *anthropicStream) Close() error { return s.body.Close() }
