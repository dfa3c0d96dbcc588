package quota

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(day string) func() time.Time {
	t, _ := time.Parse("2006-01-02", day)
	return func() time.Time { return t }
}

func TestFileStoreReserveUpToLimit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	store := NewFileStore(path, map[string]int{"groq": 3}, WithClock(fixedClock("2026-08-25")))

	for i := 0; i < 3; i++ {
		assert.True(t, store.Reserve(ctx, "groq"), "reservation %d should succeed", i+1)
	}
	assert.False(t, store.Reserve(ctx, "groq"), "reservation past the limit must be denied")

	st := store.Load(ctx)
	assert.Equal(t, 3, st.Counts["groq"], "denied reservation must not mutate the count")
	assert.Equal(t, "2026-08-25", st.LastReset)
}

func TestFileStoreDayRollover(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	limits := map[string]int{"groq": 1, "anthropic": 5}

	store := NewFileStore(path, limits, WithClock(fixedClock("2026-08-25")))
	assert.True(t, store.Reserve(ctx, "groq"))
	assert.False(t, store.Reserve(ctx, "groq"))

	// Same file, next day: all counts reset before evaluation.
	next := NewFileStore(path, limits, WithClock(fixedClock("2026-08-26")))
	assert.True(t, next.Reserve(ctx, "groq"))

	st := next.Load(ctx)
	assert.Equal(t, "2026-08-26", st.LastReset)
	assert.Equal(t, 1, st.Counts["groq"])
	assert.Equal(t, 0, st.Counts["anthropic"])
}

func TestFileStoreInitializesWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	store := NewFileStore(path, map[string]int{"groq": 1, "gemini": 2}, WithClock(fixedClock("2026-08-25")))

	st := store.Load(context.Background())
	assert.Equal(t, map[string]int{"groq": 0, "gemini": 0}, st.Counts)

	// The default must have been persisted.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk State
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, st, onDisk)
}

func TestFileStoreCorruptStateDegradesToDefault(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"last_reset": "2026-`), 0o644))

	store := NewFileStore(path, map[string]int{"groq": 2}, WithClock(fixedClock("2026-08-25")))

	st := store.Load(ctx)
	assert.Equal(t, 0, st.Counts["groq"])
	assert.True(t, store.Reserve(ctx, "groq"))
}

func TestFileStoreUnknownProviderIsNotZeroLimited(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	store := NewFileStore(path, map[string]int{"groq": 1}, WithClock(fixedClock("2026-08-25")))

	// No configured limit: effectively unlimited, never denied outright.
	for i := 0; i < 50; i++ {
		assert.True(t, store.Reserve(context.Background(), "mystery"))
	}
}

// TestFileStoreRaceIsUnsynchronized characterizes the documented behavior:
// Reserve is load-modify-store with no lock, so concurrent reservations may
// exceed the limit. The test only asserts what is guaranteed — at least one
// success and a still-parseable state file — not a bound the store does not
// promise.
func TestFileStoreRaceIsUnsynchronized(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rate_limit.json")
	store := NewFileStore(path, map[string]int{"groq": 1}, WithClock(fixedClock("2026-08-25")))

	var wg sync.WaitGroup
	granted := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted <- store.Reserve(ctx, "groq")
		}()
	}
	wg.Wait()
	close(granted)

	successes := 0
	for ok := range granted {
		if ok {
			successes++
		}
	}
	assert.GreaterOrEqual(t, successes, 1)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var st State
	assert.NoError(t, json.Unmarshal(raw, &st))
}
