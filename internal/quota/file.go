package quota

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// FileStore persists state as a single JSON file, rewritten wholesale on every
// successful reservation.
//
// Reserve is a plain load-modify-store cycle with no file lock: two requests
// racing on the same provider can both read a stale count and both pass the
// limit. This matches the persisted-counter semantics the service has always
// had; use the Redis store when linearized reservations are required.
type FileStore struct {
	path   string
	limits map[string]int
	now    func() time.Time
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithClock overrides the time source. Used by tests to simulate rollover.
func WithClock(now func() time.Time) FileOption {
	return func(s *FileStore) { s.now = now }
}

// NewFileStore creates a file-backed Store at path with the given daily limits.
func NewFileStore(path string, limits map[string]int, opts ...FileOption) *FileStore {
	s := &FileStore{path: path, limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted state, initializing it when absent and resetting it
// when the stored day is not today. Any read or parse failure yields a fresh
// default so the caller never sees an error.
func (s *FileStore) Load(_ context.Context) State {
	today := day(s.now)
	def := defaultState(s.limits, today)

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.save(def)
		return def
	}
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("quota state unreadable, using default")
		return def
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("quota state corrupt, using default")
		return def
	}

	// Day rollover: all counts start from zero.
	if st.LastReset != today {
		s.save(def)
		return def
	}
	if st.Counts == nil {
		st.Counts = def.Counts
	}
	return st
}

// Reserve consumes one request for the provider if its count is strictly below
// the configured limit. On success the whole state is persisted immediately.
func (s *FileStore) Reserve(ctx context.Context, provider string) bool {
	st := s.Load(ctx)

	if st.Counts[provider] >= limitFor(s.limits, provider) {
		return false
	}

	st.Counts[provider]++
	st.LastReset = day(s.now)
	s.save(st)
	return true
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) save(st State) {
	raw, err := json.Marshal(st)
	if err == nil {
		err = os.WriteFile(s.path, raw, 0o644)
	}
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("failed saving quota state")
	}
}
