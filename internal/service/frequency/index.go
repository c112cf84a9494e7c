// internal/service/frequency/index.go

// Package frequency converts batches of normalized content items into
// incremental term counts in a user's frequency series.
package frequency

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"trendwire/internal/domain/content"
	"trendwire/internal/domain/trend"
)

// Config holds the bucketing and retention settings for the index.
type Config struct {
	// BucketWidth is the fixed bucket interval.
	BucketWidth time.Duration

	// Retention is the number of most recent buckets kept, current included.
	Retention int
}

// DefaultConfig returns hourly buckets with a 30-bucket sliding window.
func DefaultConfig() Config {
	return Config{
		BucketWidth: time.Hour,
		Retention:   30,
	}
}

// BatchResult summarizes one Apply call. Rejected counts normalization
// failures (missing or invalid timestamps); they are reported, never fatal.
type BatchResult struct {
	Indexed  int `json:"indexed"`
	Rejected int `json:"rejected"`
}

// Index applies content batches to a trend.Series under one extraction
// policy. It holds no series state itself.
type Index struct {
	policy Policy
	cfg    Config
	log    *zap.Logger
}

// New creates a frequency index. Configuration invariants are checked up
// front: a violated invariant aborts the cycle before any series mutation.
func New(policy Policy, cfg Config, log *zap.Logger) (*Index, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("extraction policy: %w", err)
	}
	if cfg.BucketWidth <= 0 {
		return nil, fmt.Errorf("bucket width must be positive, got %s", cfg.BucketWidth)
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("retention window must be positive, got %d", cfg.Retention)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Index{policy: policy, cfg: cfg, log: log}, nil
}

// Bucket truncates t to the configured bucket width in UTC.
func (ix *Index) Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(ix.cfg.BucketWidth)
}

// WindowStart returns the oldest bucket retained relative to the current one.
func (ix *Index) WindowStart(current time.Time) time.Time {
	return current.Add(-time.Duration(ix.cfg.Retention-1) * ix.cfg.BucketWidth)
}

// Apply extracts terms from the batch and increments the series. Buckets
// older than the retention window are pruned before any count is added. An
// empty batch is a no-op beyond the pruning pass.
func (ix *Index) Apply(series *trend.Series, items []content.Item, now time.Time) BatchResult {
	current := ix.Bucket(now)
	oldest := ix.WindowStart(current)
	series.Prune(oldest)

	var res BatchResult
	for _, item := range items {
		if !ix.validTimestamp(item.PublishedAt, current) {
			res.Rejected++
			continue
		}

		bucket := ix.Bucket(item.PublishedAt)
		if bucket.Before(oldest) {
			// Valid but already outside the retention window.
			res.Indexed++
			continue
		}

		for _, term := range ix.policy.Extract(item.Text) {
			series.Increment(term, bucket, 1)
		}
		res.Indexed++
	}

	if res.Rejected > 0 {
		ix.log.Warn("rejected items with invalid timestamps",
			zap.Int("rejected", res.Rejected),
			zap.Int("indexed", res.Indexed))
	}

	return res
}

// validTimestamp rejects zero timestamps and anything dated past the end of
// the current bucket.
func (ix *Index) validTimestamp(t time.Time, current time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.UTC().After(current.Add(ix.cfg.BucketWidth))
}
