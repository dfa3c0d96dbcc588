// Package quota enforces per-provider daily request budgets.
//
// A reservation is taken before the vendor call is made, so a provider whose
// call subsequently fails still counts against its daily budget. This bounds
// retries against a flaky vendor.
package quota

import (
	"context"
	"time"
)

// Unlimited is the limit applied to providers with no configured budget.
// Unknown providers must never default to zero.
const Unlimited = 999999

// State is the persisted daily usage record.
type State struct {
	LastReset string         `json:"last_reset"`
	Counts    map[string]int `json:"counts"`
}

// Store reserves daily quota for providers.
type Store interface {
	// Load returns the current state. It never fails: unreadable or corrupt
	// persisted state degrades to a fresh default for today.
	Load(ctx context.Context) State

	// Reserve attempts to consume one request for the provider today.
	// Counts reset when the calendar day rolls over. Reports whether the
	// reservation was granted.
	Reserve(ctx context.Context, provider string) bool

	Close() error
}

func defaultState(limits map[string]int, day string) State {
	counts := make(map[string]int, len(limits))
	for name := range limits {
		counts[name] = 0
	}
	return State{LastReset: day, Counts: counts}
}

func limitFor(limits map[string]int, provider string) int {
	if l, ok := limits[provider]; ok {
		return l
	}
	return Unlimited
}

func day(now func() time.Time) string {
	return now().Format("2006-01-02")
}
