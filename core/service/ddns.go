package service

import (
	"time"

	"github.com/jxo-me/ddnsd/core/ddns"
)

// IDDNSService is a long running unit managed by the overwatch manager.
// Start blocks until the service has stopped; Stop requests shutdown and
// returns once in-flight work has drained.
type IDDNSService interface {
	String() string
	Hash() string
	Start() error
	Stop() error
}

// Outcome is the terminal state of one tick.
type Outcome string

const (
	// OutcomeEmpty no address family could be fetched
	OutcomeEmpty Outcome = "empty"
	// OutcomeUnchanged fetched record equals the cached one
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeDryRun change detected, nothing applied
	OutcomeDryRun Outcome = "dry-run"
	// OutcomeCommitted all providers succeeded and the cache was written
	OutcomeCommitted Outcome = "committed"
	// OutcomeFailed at least one provider failed or the cache write failed
	OutcomeFailed Outcome = "failed"
)

// ProviderResult is the result of one provider task.
type ProviderResult struct {
	Provider string `json:"provider"`
	Changed  bool   `json:"changed"`
	Err      error  `json:"-"`
}

// TickResult describes one fetch/compare/update cycle.
type TickResult struct {
	ID        string           `json:"id"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Outcome   Outcome          `json:"outcome"`
	Record    ddns.Record      `json:"-"`
	Previous  ddns.Record      `json:"-"`
	CacheHit  bool             `json:"cache_hit"`
	Providers []ProviderResult `json:"providers,omitempty"`
	Err       error            `json:"-"`
}

// Changed reports whether the tick observed a record different from the cache.
func (r *TickResult) Changed() bool {
	switch r.Outcome {
	case OutcomeDryRun, OutcomeCommitted, OutcomeFailed:
		return true
	}
	return false
}
