// Package server is the HTTP ingress. It accepts canvas snapshots, invokes
// the generation orchestrator, and relays its output stream to the caller.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/artmorph-ai/artmorph/internal/codegen"
	"github.com/artmorph-ai/artmorph/internal/config"
	"github.com/artmorph-ai/artmorph/internal/events"
	"github.com/artmorph-ai/artmorph/internal/metrics"
	"github.com/artmorph-ai/artmorph/internal/mq"
	"github.com/artmorph-ai/artmorph/internal/provider"
	"github.com/artmorph-ai/artmorph/internal/quota"
	"github.com/artmorph-ai/artmorph/internal/snapshot"
)

const maxUploadBytes = 32 << 20

type Server struct {
	cfg       config.Config
	gen       *codegen.Generator
	quota     quota.Store
	providers []provider.Provider
	broker    *mq.Broker // nil when AMQP is not configured
	sem       *semaphore.Weighted
}

func New(cfg config.Config, gen *codegen.Generator, store quota.Store, providers []provider.Provider, broker *mq.Broker) *Server {
	return &Server{
		cfg:       cfg,
		gen:       gen,
		quota:     store,
		providers: providers,
		broker:    broker,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/generate", s.serveWS)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.cors(mux)
}

// handleGenerate reads the snapshot, then streams generated code chunk by
// chunk with per-chunk flushes so the caller sees output as it is produced.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.sem.TryAcquire(1) {
		jsonErr(w, "too many concurrent generations", http.StatusServiceUnavailable)
		return
	}
	defer s.sem.Release(1)

	image, tier, err := readSnapshot(r)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Info().Str("tier", tier).Int("bytes", len(image)).Msg("received canvas snapshot")

	run, err := s.gen.Generate(r.Context(), image, tier)
	if err != nil {
		// Invalid snapshot bytes are the only error Generate reports.
		jsonErr(w, "invalid image", http.StatusBadRequest)
		return
	}
	defer run.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)

	chunks := 0
	for {
		chunk, err := run.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// Caller gone or stream torn down mid-flight; nothing to send.
				log.Debug().Err(err).Msg("generation stream ended early")
				return
			}
			break
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		chunks++
		metrics.ChunksRelayedTotal.Inc()
	}

	s.publishResult(r, tier, run, chunks)
}

func (s *Server) publishResult(r *http.Request, tier string, run *codegen.Run, chunks int) {
	key := events.GenerationComplete
	if run.Provider() == "" {
		key = events.GenerationFallback
	}

	outcomes := make([]events.ProviderOutcome, 0, len(run.Outcomes()))
	for _, o := range run.Outcomes() {
		outcomes = append(outcomes, events.ProviderOutcome{Provider: o.Provider, Status: o.Status, Reason: o.Reason})
	}

	b, err := events.Wrap(key, events.GenerationPayload{
		RequestID: uuid.New().String(),
		Tier:      tier,
		Provider:  run.Provider(),
		Chunks:    chunks,
		Outcomes:  outcomes,
	})
	if err == nil {
		err = s.broker.Publish(r.Context(), key, b)
	}
	if err != nil {
		log.Warn().Err(err).Msg("usage event publish failed")
	}
}

// readSnapshot extracts the image bytes and tier from a multipart form.
func readSnapshot(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", errors.New("multipart form required")
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, "", errors.New("image file field required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, "", errors.New("reading image failed")
	}

	tier := r.FormValue("tier")
	if tier == "" {
		tier = "free"
	}
	return data, tier, nil
}

// ── Introspection ─────────────────────────────────────────────────────────────

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonErr(w, "not found", http.StatusNotFound)
		return
	}
	jsonOK(w, map[string]any{
		"status":  "running",
		"service": "ArtMorph Code Generator",
		"version": "1.0.0",
	}, http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	keys := make(map[string]bool, len(s.providers))
	for _, p := range s.providers {
		keys[p.Name()] = p.Configured()
	}

	jsonOK(w, map[string]any{
		"status":              "healthy",
		"api_keys_configured": keys,
		"rate_limit_state":    s.quota.Load(r.Context()),
		"tiers": map[string]string{
			"free": "Groq (" + s.cfg.Providers["groq"].Model + ")",
			"paid": "Claude/Gemini/OpenAI (premium models)",
		},
		"max_snapshot_dimension": snapshot.MaxDimension,
	}, http.StatusOK)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) cors(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.CORSOrigins))
	wildcard := false
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (wildcard || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
