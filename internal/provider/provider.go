// Package provider integrates the vision-capable LLM vendors behind one
// streaming capability. Each adapter owns its vendor's request shape and
// streaming event format; nothing vendor-specific leaks past Stream.
package provider

import "context"

// Provider ids. The set is closed; the orchestrator only ever sees these tags.
const (
	Anthropic = "anthropic"
	Gemini    = "gemini"
	OpenAI    = "openai"
	Groq      = "groq"
)

// Request carries the snapshot and prompt text for one generation.
type Request struct {
	ImagePNG []byte
	System   string
	User     string
}

// Stream is a finite, non-restartable sequence of generated text chunks.
// Next returns io.EOF when the vendor's stream ends.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Provider is one vendor adapter.
type Provider interface {
	Name() string

	// Configured reports whether a credential is present. Checked before any
	// quota reservation or network call.
	Configured() bool

	// Stream opens a streaming generation call. Chunks carry only the textual
	// payload; metadata and control envelopes are discarded inside the adapter.
	Stream(ctx context.Context, req Request) (Stream, error)
}
