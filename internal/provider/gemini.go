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
	"strings"
	"time"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider streams from the Gemini generateContent API.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// GeminiOption configures the provider.
type GeminiOption func(*GeminiProvider)

// WithGeminiURL overrides the base URL. Used by tests.
func WithGeminiURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// NewGemini creates the Gemini adapter.
func NewGemini(apiKey, model string, timeout time.Duration, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GeminiProvider) Name() string     { return Gemini }
func (p *GeminiProvider) Configured() bool { return p.apiKey != "" }

// geminiChunk is one SSE payload from streamGenerateContent.
type geminiChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	body, _ := json.Marshal(map[string]any{
		"contents": []map[string]any{{
			"role": "user",
			"parts": []map[string]any{
				{
					"inline_data": map[string]any{
						"mime_type": "image/png",
						"data":      base64.StdEncoding.EncodeToString(req.ImagePNG),
					},
				},
				{"text": req.System + "\n\n" + req.User},
			},
		}},
	})

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, ErrProviderUnavailable
	}
	if err := mapHTTPError(resp); err != nil {
		return nil, err
	}

	return &geminiStream{reader: bufio.NewReader(resp.Body), body: resp.Body}, nil
}

type geminiStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
}

func (s *geminiStream) Next() (string, error) {
	for {
		data, err := nextSSEData(s.reader)
		if err != nil {
			return "", io.EOF
		}

		var chunk geminiChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if len(chunk.Candidates) > 0 && len(chunk.Candidates[0].Content.Parts) > 0 {
			if text := chunk.Candidates[0].Content.Parts[0].Text; text != "" {
				return text, nil
			}
		}
	}
}

func (s *geminiStream) Close() error { return s.body.Close() }
