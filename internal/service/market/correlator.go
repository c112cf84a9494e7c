// internal/service/market/correlator.go

// Package market compares internal term frequency series against external
// market trend signals for the cycle's top candidate terms.
package market

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trendwire/internal/domain/trend"
	"trendwire/internal/retry"
)

// Config controls candidate volume, fetch concurrency and alignment.
type Config struct {
	// CandidateLimit bounds external call volume per cycle.
	CandidateLimit int

	// MaxConcurrent bounds in-flight provider fetches.
	MaxConcurrent int

	// BucketWidth and Window define the alignment grid; they must match the
	// frequency index configuration.
	BucketWidth time.Duration
	Window      int

	// LagRange tests lag offsets -LagRange..+LagRange buckets.
	LagRange int

	// MinOverlap is the sample size under which a result is flagged as low
	// confidence.
	MinOverlap int

	// Retry is the per-fetch retry policy for transient provider failures.
	Retry retry.Config
}

// DefaultConfig returns the stock correlator settings.
func DefaultConfig() Config {
	return Config{
		CandidateLimit: 10,
		MaxConcurrent:  5,
		BucketWidth:    time.Hour,
		Window:         30,
		LagRange:       2,
		MinOverlap:     5,
		Retry:          retry.DefaultConfig(),
	}
}

// Outcome is one correlation run: results for terms whose signal was fetched,
// and the terms whose fetch failed outright.
type Outcome struct {
	Results []trend.CorrelationResult
	Missing []string
}

// Correlator fetches market signals and correlates them against the internal
// series.
type Correlator struct {
	provider trend.MarketProvider
	cfg      Config
	log      *zap.Logger
}

// New creates a correlator over the given provider.
func New(provider trend.MarketProvider, cfg Config, log *zap.Logger) *Correlator {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 10
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.BucketWidth <= 0 {
		cfg.BucketWidth = time.Hour
	}
	if cfg.Window <= 0 {
		cfg.Window = 30
	}
	if cfg.LagRange < 0 {
		cfg.LagRange = 2
	}
	if cfg.MinOverlap <= 0 {
		cfg.MinOverlap = 5
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Correlator{provider: provider, cfg: cfg, log: log}
}

// Candidates ranks terms for correlation: spiking terms first, ordered by
// severity then z-score, followed by the remaining top terms by current
// count. At most the configured candidate limit is returned.
func (c *Correlator) Candidates(series *trend.Series, spikes []trend.Spike, current time.Time) []string {
	seen := make(map[string]struct{})
	candidates := make([]string, 0, c.cfg.CandidateLimit)

	ranked := append([]trend.Spike(nil), spikes...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Severity.Rank() != ranked[j].Severity.Rank() {
			return ranked[i].Severity.Rank() > ranked[j].Severity.Rank()
		}
		if ranked[i].ZScore != ranked[j].ZScore {
			return ranked[i].ZScore > ranked[j].ZScore
		}
		return ranked[i].Term < ranked[j].Term
	})

	for _, s := range ranked {
		if len(candidates) == c.cfg.CandidateLimit {
			return candidates
		}
		if _, ok := seen[s.Term]; ok {
			continue
		}
		seen[s.Term] = struct{}{}
		candidates = append(candidates, s.Term)
	}

	for _, t := range series.TopTerms(current, 0) {
		if len(candidates) == c.cfg.CandidateLimit {
			break
		}
		if _, ok := seen[t.Term]; ok {
			continue
		}
		seen[t.Term] = struct{}{}
		candidates = append(candidates, t.Term)
	}

	return candidates
}

// Correlate fetches a fresh market signal for every candidate term and
// correlates it against the internal series. Fetches run concurrently up to
// the configured limit; one term's failure never aborts the batch.
func (c *Correlator) Correlate(ctx context.Context, series *trend.Series, candidates []string, current time.Time) Outcome {
	if len(candidates) == 0 {
		return Outcome{}
	}

	r := trend.TimeRange{
		From: current.Add(-time.Duration(c.cfg.Window-1) * c.cfg.BucketWidth),
		To:   current.Add(c.cfg.BucketWidth),
	}

	signals := make([]*trend.MarketSignal, len(candidates))
	errs := make([]error, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrent)
	for i, term := range candidates {
		i, term := i, term
		g.Go(func() error {
			errs[i] = retry.Do(gctx, c.cfg.Retry, func() error {
				sig, err := c.provider.Fetch(gctx, term, r)
				if err != nil {
					return err
				}
				signals[i] = sig
				return nil
			})
			return nil
		})
	}
	_ = g.Wait()

	var out Outcome
	for i, term := range candidates {
		if errs[i] != nil || signals[i] == nil {
			c.log.Warn("market signal unavailable",
				zap.String("term", term),
				zap.Error(&trend.FetchError{Term: term, Err: errs[i]}))
			out.Missing = append(out.Missing, term)
			continue
		}
		out.Results = append(out.Results, c.correlate(term, series, signals[i], current))
	}

	return out
}

// correlate aligns the internal counts and the market signal on shared
// buckets, scans the configured lag offsets and keeps the lag with the
// strongest absolute correlation.
func (c *Correlator) correlate(term string, series *trend.Series, signal *trend.MarketSignal, current time.Time) trend.CorrelationResult {
	signalAt := make(map[time.Time]float64, len(signal.Points))
	for _, p := range signal.Points {
		signalAt[p.Bucket.UTC().Truncate(c.cfg.BucketWidth)] = p.Value
	}

	grid := make([]time.Time, 0, c.cfg.Window)
	start := current.Add(-time.Duration(c.cfg.Window-1) * c.cfg.BucketWidth)
	for b := start; !b.After(current); b = b.Add(c.cfg.BucketWidth) {
		grid = append(grid, b)
	}

	best := trend.CorrelationResult{
		Term:            term,
		SignalFetchedAt: signal.FetchedAt,
	}
	bestSet := false

	for lag := -c.cfg.LagRange; lag <= c.cfg.LagRange; lag++ {
		shift := time.Duration(lag) * c.cfg.BucketWidth

		var xs, ys []float64
		for _, b := range grid {
			v, ok := signalAt[b.Add(shift)]
			if !ok {
				continue
			}
			xs = append(xs, float64(series.CountAt(term, b)))
			ys = append(ys, v)
		}

		r := pearson(xs, ys)
		if !bestSet || betterLag(r, len(xs), lag, best) {
			best.Coefficient = r
			best.LagBuckets = lag
			best.SampleSize = len(xs)
			bestSet = true
		}
	}

	best.Confidence = c.confidence(best.SampleSize)
	return best
}

// betterLag prefers the stronger absolute correlation, then the larger
// overlap, then the smaller absolute lag.
func betterLag(r float64, n, lag int, best trend.CorrelationResult) bool {
	ar, abest := math.Abs(r), math.Abs(best.Coefficient)
	if ar != abest {
		return ar > abest
	}
	if n != best.SampleSize {
		return n > best.SampleSize
	}
	return abs(lag) < abs(best.LagBuckets)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (c *Correlator) confidence(n int) trend.Confidence {
	switch {
	case n < c.cfg.MinOverlap:
		return trend.ConfidenceLow
	case n < 2*c.cfg.MinOverlap:
		return trend.ConfidenceMedium
	default:
		return trend.ConfidenceHigh
	}
}

// pearson computes the Pearson correlation coefficient, zero when either
// side has no variance or fewer than two samples.
func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
