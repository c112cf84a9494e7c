// internal/domain/trend/engine.go

package trend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common engine errors.
var (
	// ErrNotFound is returned when no trend state exists for a user.
	ErrNotFound = errors.New("trend state not found")

	// ErrNoContent marks a total refresh failure: normalization produced no
	// items at all.
	ErrNoContent = errors.New("no content items produced")

	// ErrUserDisabled is returned when refreshing a user whose monitoring is
	// switched off.
	ErrUserDisabled = errors.New("trend monitoring disabled for user")

	// ErrMonitorStopped is returned for requests after the monitor shut down.
	ErrMonitorStopped = errors.New("trend monitor stopped")
)

// FetchError wraps a market signal fetch failure for one term. It downgrades
// the cycle, never aborts it.
type FetchError struct {
	Term string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("market signal fetch for %q: %v", e.Term, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// JobPhase is the scheduler state of a user's refresh job.
type JobPhase string

const (
	PhaseIdle               JobPhase = "idle"
	PhaseRunning            JobPhase = "running"
	PhaseSucceeded          JobPhase = "succeeded"
	PhasePartiallySucceeded JobPhase = "partially_succeeded"
	PhaseFailed             JobPhase = "failed"
)

// JobStatus exposes scheduler and staleness metadata for a user.
type JobStatus struct {
	UserID          string        `json:"user_id"`
	Phase           JobPhase      `json:"phase"`
	Enabled         bool          `json:"enabled"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	LastRefreshedAt time.Time     `json:"last_refreshed_at"`
	LastStatus      RefreshStatus `json:"last_status"`
	Staleness       time.Duration `json:"staleness"`
}

// Monitor drives the trend pipeline per user on a schedule and on demand.
type Monitor interface {
	// Start launches the per-user schedulers.
	Start(ctx context.Context) error

	// Stop gracefully stops scheduling; running cycles finish first.
	Stop(ctx context.Context) error

	// Refresh runs an on-demand cycle for the user. Concurrent calls for the
	// same user coalesce onto the in-flight cycle and share its result.
	Refresh(ctx context.Context, userID string) (*TrendState, error)

	// State returns the latest consistent trend state for the user.
	State(ctx context.Context, userID string) (*TrendState, error)

	// Status reports the user's job phase and staleness metadata.
	Status(ctx context.Context, userID string) (JobStatus, error)
}

// MarketProvider fetches an external trend series for a term. Best-effort:
// slow, rate-limited and allowed to fail per term.
type MarketProvider interface {
	Fetch(ctx context.Context, term string, r TimeRange) (*MarketSignal, error)
}

// StateStore persists per-user trend state and append-only spike history.
// Save must replace the user's record atomically.
type StateStore interface {
	Load(ctx context.Context, userID string) (*TrendState, error)
	Save(ctx context.Context, userID string, state *TrendState) error
	AppendSpikeHistory(ctx context.Context, userID string, spikes []Spike) error
	SpikeHistory(ctx context.Context, userID, term string, limit int) ([]Spike, error)
}
