// internal/domain/trend/model.go

// Package trend defines the engine's core data model: term frequency series,
// spikes, market signals, correlation results and the per-user trend state.
package trend

import (
	"time"
)

// Severity classifies a spike by how far it deviates from baseline.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityNone     Severity = "none"
)

// Rank orders severities for sorting; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityModerate:
		return 1
	default:
		return 0
	}
}

// RefreshStatus reports the outcome of the most recent refresh cycle.
type RefreshStatus string

const (
	RefreshOK      RefreshStatus = "ok"
	RefreshPartial RefreshStatus = "partial"
	RefreshFailed  RefreshStatus = "failed"
)

// Confidence qualifies a correlation result by sample size.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Spike records a statistically anomalous rise in a term's frequency.
// Append-only: a spike is never mutated, newer spikes for the same term
// supersede it logically.
type Spike struct {
	ID             string    `json:"id"`
	Term           string    `json:"term"`
	Bucket         time.Time `json:"bucket"`
	ObservedCount  int       `json:"observed_count"`
	BaselineMean   float64   `json:"baseline_mean"`
	BaselineStddev float64   `json:"baseline_stddev"`
	ZScore         float64   `json:"z_score"`
	Severity       Severity  `json:"severity"`
	DetectedAt     time.Time `json:"detected_at"`
}

// SignalPoint is one observation in an external market signal.
type SignalPoint struct {
	Bucket time.Time `json:"bucket"`
	Value  float64   `json:"value"`
}

// MarketSignal is a read-only snapshot of an external per-term trend series.
type MarketSignal struct {
	Term      string        `json:"term"`
	Points    []SignalPoint `json:"points"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// TimeRange bounds a market signal fetch.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CorrelationResult aligns a term's internal frequency series against its
// market signal.
type CorrelationResult struct {
	Term            string     `json:"term"`
	Coefficient     float64    `json:"correlation_coefficient"`
	LagBuckets      int        `json:"lag_buckets"`
	Confidence      Confidence `json:"confidence"`
	SampleSize      int        `json:"sample_size"`
	SignalFetchedAt time.Time  `json:"signal_fetched_at"`
}

// TopTerm is a term ranked by current frequency.
type TopTerm struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// TrendState is the per-user aggregate consumed by curation. It is built
// fully in isolation during a refresh cycle and swapped in atomically;
// readers never observe a half-updated state.
type TrendState struct {
	UserID          string              `json:"user_id"`
	CycleID         string              `json:"cycle_id"`
	TopTerms        []TopTerm           `json:"top_terms"`
	Spikes          []Spike             `json:"spikes"`
	Correlations    []CorrelationResult `json:"correlations"`
	MissingTerms    []string            `json:"missing_terms,omitempty"`
	SourceFailures  int                 `json:"source_failures"`
	ItemsIndexed    int                 `json:"items_indexed"`
	ItemsRejected   int                 `json:"items_rejected"`
	LastRefreshedAt time.Time           `json:"last_refreshed_at"`
	RefreshStatus   RefreshStatus       `json:"refresh_status"`
}

// Clone returns a deep copy so callers can hold a state without aliasing the
// monitor's snapshot.
func (s *TrendState) Clone() *TrendState {
	if s == nil {
		return nil
	}
	out := *s
	out.TopTerms = append([]TopTerm(nil), s.TopTerms...)
	out.Spikes = append([]Spike(nil), s.Spikes...)
	out.Correlations = append([]CorrelationResult(nil), s.Correlations...)
	out.MissingTerms = append([]string(nil), s.MissingTerms...)
	return &out
}
