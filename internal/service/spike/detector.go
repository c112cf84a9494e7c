// internal/service/spike/detector.go

// Package spike flags terms whose current-bucket count deviates abnormally
// from their recent history. Detection is pure: the same series snapshot
// always yields the same spikes.
package spike

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"trendwire/internal/domain/trend"
)

// Severity thresholds on the z-score; the higher threshold wins on a
// boundary.
const (
	criticalThreshold = 3.0
	highThreshold     = 2.0
	moderateThreshold = 1.0
)

// Config controls the baseline window requirements.
type Config struct {
	// BucketWidth must match the frequency index bucket width.
	BucketWidth time.Duration

	// Window is the maximum number of prior buckets used as baseline.
	Window int

	// MinHistory is the minimum number of prior buckets a term needs before
	// it is evaluated; terms with less history are silently skipped.
	MinHistory int
}

// DefaultConfig matches the frequency index defaults: the baseline is the
// rest of the 30-bucket retention window.
func DefaultConfig() Config {
	return Config{
		BucketWidth: time.Hour,
		Window:      29,
		MinHistory:  5,
	}
}

// Detector computes z-score spikes over a frequency series snapshot.
type Detector struct {
	cfg Config
}

// New creates a spike detector.
func New(cfg Config) *Detector {
	if cfg.BucketWidth <= 0 {
		cfg.BucketWidth = time.Hour
	}
	if cfg.Window <= 0 {
		cfg.Window = 29
	}
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = 5
	}
	return &Detector{cfg: cfg}
}

// Detect evaluates every tracked term against the baseline of prior buckets
// and returns the cycle's spikes sorted by z-score descending, ties broken by
// term lexical order.
//
// The baseline excludes the current bucket and fills unobserved buckets with
// zero, bounded to the span the series has actually covered.
func (d *Detector) Detect(series *trend.Series, current time.Time, detectedAt time.Time) []trend.Spike {
	prior := d.priorBuckets(series, current)
	if len(prior) < d.cfg.MinHistory {
		return nil
	}

	var spikes []trend.Spike
	for _, term := range series.Terms() {
		counts := make([]float64, len(prior))
		for i, b := range prior {
			counts[i] = float64(series.CountAt(term, b))
		}

		observed := series.CountAt(term, current)
		mean, stddev := meanStddev(counts)

		z, severity := Classify(observed, mean, stddev)
		if severity == trend.SeverityNone {
			continue
		}

		spikes = append(spikes, trend.Spike{
			ID:             uuid.New().String(),
			Term:           term,
			Bucket:         current,
			ObservedCount:  observed,
			BaselineMean:   mean,
			BaselineStddev: stddev,
			ZScore:         z,
			Severity:       severity,
			DetectedAt:     detectedAt,
		})
	}

	sort.SliceStable(spikes, func(i, j int) bool {
		if spikes[i].ZScore != spikes[j].ZScore {
			return spikes[i].ZScore > spikes[j].ZScore
		}
		return spikes[i].Term < spikes[j].Term
	})

	return spikes
}

// Classify maps an observation against its baseline to a z-score and
// severity. Pure function of its inputs.
//
// A zero-variance baseline cannot produce a meaningful z-score: any increase
// over the mean is treated as critical, with the raw excess standing in for
// the score, and a flat zero yields no spike.
func Classify(observed int, mean, stddev float64) (float64, trend.Severity) {
	obs := float64(observed)

	if stddev == 0 {
		if obs > mean {
			return obs - mean, trend.SeverityCritical
		}
		return 0, trend.SeverityNone
	}

	z := (obs - mean) / stddev
	switch {
	case z >= criticalThreshold:
		return z, trend.SeverityCritical
	case z >= highThreshold:
		return z, trend.SeverityHigh
	case z >= moderateThreshold:
		return z, trend.SeverityModerate
	default:
		return z, trend.SeverityNone
	}
}

// priorBuckets returns the baseline bucket grid: every bucket before current
// within the window, clipped to the span the series has observed.
func (d *Detector) priorBuckets(series *trend.Series, current time.Time) []time.Time {
	first, ok := series.FirstBucket()
	if !ok {
		return nil
	}

	start := current.Add(-time.Duration(d.cfg.Window) * d.cfg.BucketWidth)
	if first.After(start) {
		start = first
	}

	var buckets []time.Time
	for b := start; b.Before(current); b = b.Add(d.cfg.BucketWidth) {
		buckets = append(buckets, b)
	}
	return buckets
}

// meanStddev returns the mean and population standard deviation of counts.
func meanStddev(counts []float64) (float64, float64) {
	if len(counts) == 0 {
		return 0, 0
	}

	var sum float64
	for _, c := range counts {
		sum += c
	}
	mean := sum / float64(len(counts))

	var sq float64
	for _, c := range counts {
		d := c - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(counts)))
}
