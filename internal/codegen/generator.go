// Package codegen drives code generation across the provider priority list.
//
// For each eligible provider the generator reserves quota, opens the vendor
// stream, and commits to the first provider that yields at least one chunk.
// Once a provider is chosen no other provider is attempted, even if its
// stream later produces nothing more. When every provider is skipped or
// fails, a fixed mock artifact is streamed instead.
package codegen

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/artmorph-ai/artmorph/internal/metrics"
	"github.com/artmorph-ai/artmorph/internal/provider"
	"github.com/artmorph-ai/artmorph/internal/quota"
	"github.com/artmorph-ai/artmorph/internal/snapshot"
)

const defaultPriority = "anthropic,gemini,openai"

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Outcome reasons.
const (
	ReasonNoCredential   = "no credential"
	ReasonQuotaExhausted = "quota exhausted"
	ReasonCallError      = "call error"
)

// Outcome records what happened with one provider during a generation.
type Outcome struct {
	Provider string `json:"provider"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// Generator is the provider fallback orchestrator.
type Generator struct {
	providers map[string]provider.Provider
	quota     quota.Store
	priority  string // raw comma-separated paid-tier order
	mockDelay time.Duration
}

// NewGenerator builds a Generator over the given adapters. priority is the
// raw comma-separated paid-tier order ("" means the default order).
func NewGenerator(providers []provider.Provider, store quota.Store, priority string, mockDelay time.Duration) *Generator {
	m := make(map[string]provider.Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Generator{providers: m, quota: store, priority: priority, mockDelay: mockDelay}
}

// Priority returns the provider order for a tier. Free tier is pinned to
// Groq; any other tier value walks the configured paid order. Entries are
// lower-cased and trimmed, empty entries dropped. Recomputed per request.
func (g *Generator) Priority(tier string) []string {
	if tier == "free" {
		return []string{provider.Groq}
	}
	raw := g.priority
	if raw == "" {
		raw = defaultPriority
	}
	var order []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			order = append(order, p)
		}
	}
	return order
}

// Run is the unified output stream of one generation. It implements the same
// pull contract as a provider stream: Next returns io.EOF at the end.
type Run struct {
	ctx      context.Context
	first    string
	hasFirst bool
	inner    provider.Stream
	provider string // "" means mock fallback
	outcomes []Outcome
}

// Provider reports which provider produced the output, or "" for the mock.
func (r *Run) Provider() string { return r.provider }

// Outcomes reports the per-provider decisions made for this generation.
func (r *Run) Outcomes() []Outcome { return r.outcomes }

func (r *Run) Next() (string, error) {
	if r.hasFirst {
		r.hasFirst = false
		return r.first, nil
	}
	if err := r.ctx.Err(); err != nil {
		return "", err
	}
	return r.inner.Next()
}

func (r *Run) Close() error {
	if r.inner != nil {
		return r.inner.Close()
	}
	return nil
}

// Generate produces the code stream for one snapshot. The only error it
// returns is for snapshot bytes that do not decode as an image; every vendor
// or persistence failure is absorbed into the fallback walk.
func (g *Generator) Generate(ctx context.Context, image []byte, tier string) (*Run, error) {
	png, err := snapshot.Normalize(image, snapshot.MaxDimension)
	if err != nil {
		return nil, err
	}

	metrics.GenerationsTotal.WithLabelValues(tier).Inc()
	req := provider.Request{ImagePNG: png, System: systemPrompt, User: userPrompt}

	var outcomes []Outcome
	for _, name := range g.Priority(tier) {
		p, ok := g.providers[name]
		if !ok || !p.Configured() {
			outcomes = append(outcomes, Outcome{Provider: name, Status: StatusSkipped, Reason: ReasonNoCredential})
			metrics.ProviderAttemptsTotal.WithLabelValues(name, StatusSkipped).Inc()
			continue
		}

		// Quota is reserved before the call and not rolled back on failure.
		if !g.quota.Reserve(ctx, name) {
			log.Info().Str("provider", name).Msg("daily limit reached, trying next")
			outcomes = append(outcomes, Outcome{Provider: name, Status: StatusSkipped, Reason: ReasonQuotaExhausted})
			metrics.ProviderAttemptsTotal.WithLabelValues(name, StatusSkipped).Inc()
			continue
		}

		run, err := g.attempt(ctx, p, req)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("provider failed, trying next")
			outcomes = append(outcomes, Outcome{Provider: name, Status: StatusFailed, Reason: ReasonCallError})
			metrics.ProviderAttemptsTotal.WithLabelValues(name, StatusFailed).Inc()
			continue
		}

		log.Info().Str("provider", name).Str("tier", tier).Msg("streaming generation")
		outcomes = append(outcomes, Outcome{Provider: name, Status: StatusSuccess})
		metrics.ProviderAttemptsTotal.WithLabelValues(name, StatusSuccess).Inc()
		run.outcomes = outcomes
		return run, nil
	}

	log.Info().Str("tier", tier).Msg("no provider available, falling back to mock")
	metrics.FallbacksTotal.Inc()
	return &Run{
		ctx:      ctx,
		inner:    newMockStream(ctx, g.mockDelay),
		outcomes: outcomes,
	}, nil
}

// attempt opens the provider stream and pulls the first chunk eagerly. A
// stream that ends or errors before yielding anything is a failed attempt, so
// the walk can continue to the next provider without having emitted output.
func (g *Generator) attempt(ctx context.Context, p provider.Provider, req provider.Request) (*Run, error) {
	stream, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	first, err := stream.Next()
	if err != nil {
		stream.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("%s: stream produced no content", p.Name())
		}
		return nil, err
	}

	return &Run{
		ctx:      ctx,
		first:    first,
		hasFirst: true,
		inner:    stream,
		provider: p.Name(),
	}, nil
}
