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

	"github.com/rs/zerolog/log"
)

const defaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIProvider streams from the OpenAI Chat Completions API. When the
// streaming call cannot be opened it makes one non-streaming attempt and
// replays the full text character by character, so the orchestrator sees the
// same chunked contract either way.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// OpenAIOption configures the provider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIURL overrides the base URL. Used by tests.
func WithOpenAIURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// NewOpenAI creates the OpenAI adapter.
func NewOpenAI(apiKey, model string, timeout time.Duration, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultOpenAIURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProvider) Name() string     { return OpenAI }
func (p *OpenAIProvider) Configured() bool { return p.apiKey != "" }

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	stream, err := openChatStream(ctx, p.client, p.baseURL, p.apiKey, chatBody(p.model, req, true, 4096))
	if err == nil {
		return stream, nil
	}
	log.Warn().Err(err).Msg("openai streaming failed, trying non-streaming fallback")

	text, fbErr := p.complete(ctx, req)
	if fbErr != nil {
		return nil, err // report the original streaming failure
	}
	return newCharStream(text), nil
}

// complete is the single non-streaming fallback call.
func (p *OpenAIProvider) complete(ctx context.Context, req Request) (string, error) {
	resp, err := doChatRequest(ctx, p.client, p.baseURL, p.apiKey, chatBody(p.model, req, false, 2000))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cr struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("openai decode: %w", err)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: empty response")
	}
	return cr.Choices[0].Message.Content, nil
}

// ── OpenAI-compatible chat wire format (shared with Groq) ────────────────────

// chatBody builds a Chat Completions request with the snapshot embedded as a
// base64 data URL, the form both OpenAI and Groq expect for inline images.
func chatBody(model string, req Request, stream bool, maxTokens int) []byte {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ImagePNG)
	body, _ := json.Marshal(map[string]any{
		"model":      model,
		"stream":     stream,
		"max_tokens": maxTokens,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": req.System + "\n\n" + req.User},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			},
		}},
	})
	return body
}

func doChatRequest(ctx context.Context, client *http.Client, baseURL, apiKey string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, ErrProviderUnavailable
	}
	if err := mapHTTPError(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func openChatStream(ctx context.Context, client *http.Client, baseURL, apiKey string, body []byte) (Stream, error) {
	resp, err := doChatRequest(ctx, client, baseURL, apiKey, body)
	if err != nil {
		return nil, err
	}
	return &chatStream{reader: bufio.NewReader(resp.Body), body: resp.Body}, nil
}

// chatChunk is one Chat Completions SSE payload.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
}

func (s *chatStream) Next() (string, error) {
	for {
		data, err := nextSSEData(s.reader)
		if err != nil {
			return "", io.EOF
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return chunk.Choices[0].Delta.Content, nil
		}
	}
}

func (s *chatStream) Close() error { return s.body.Close() }
