// Package events defines the messages published on RabbitMQ for downstream
// usage accounting and observability consumers.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ── Routing keys (topic exchange: artmorph.events) ───────────────────────────
const (
	GenerationComplete = "generation.complete"
	GenerationFallback = "generation.fallback"
)

// ── Envelope wraps every message ─────────────────────────────────────────────

type Envelope struct {
	ID         string          `json:"id"`
	RoutingKey string          `json:"routing_key"`
	Timestamp  time.Time       `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func Wrap(routingKey string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		ID:         uuid.New().String(),
		RoutingKey: routingKey,
		Timestamp:  time.Now(),
		Payload:    p,
	})
}

func Unwrap[T any](raw []byte) (*T, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	var t T
	return &t, json.Unmarshal(env.Payload, &t)
}

// ── Payload types ─────────────────────────────────────────────────────────────

type ProviderOutcome struct {
	Provider string `json:"provider"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

type GenerationPayload struct {
	RequestID string            `json:"request_id"`
	Tier      string            `json:"tier"`
	Provider  string            `json:"provider,omitempty"` // empty on fallback
	Chunks    int               `json:"chunks"`
	Outcomes  []ProviderOutcome `json:"outcomes"`
}
