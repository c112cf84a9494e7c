// internal/service/market/correlator_test.go

package market_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendwire/internal/domain/trend"
	"trendwire/internal/retry"
	"trendwire/internal/service/market"
)

// stubProvider serves canned signals per term and fails the rest.
type stubProvider struct {
	mu      sync.Mutex
	signals map[string]*trend.MarketSignal
	calls   map[string]int
}

func (p *stubProvider) Fetch(_ context.Context, term string, _ trend.TimeRange) (*trend.MarketSignal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[term]++

	sig, ok := p.signals[term]
	if !ok {
		return nil, errors.New("provider unavailable")
	}
	return sig, nil
}

func testConfig() market.Config {
	return market.Config{
		CandidateLimit: 10,
		MaxConcurrent:  2,
		BucketWidth:    time.Hour,
		Window:         6,
		LagRange:       2,
		MinOverlap:     5,
		Retry:          retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond},
	}
}

func signalFor(term string, buckets []time.Time, values []float64) *trend.MarketSignal {
	points := make([]trend.SignalPoint, len(buckets))
	for i := range buckets {
		points[i] = trend.SignalPoint{Bucket: buckets[i], Value: values[i]}
	}
	return &trend.MarketSignal{Term: term, Points: points, FetchedAt: buckets[len(buckets)-1]}
}

func rampedSeries(term string, current time.Time, n int) *trend.Series {
	s := trend.NewSeries()
	for i := 0; i < n; i++ {
		s.Increment(term, current.Add(-time.Duration(n-1-i)*time.Hour), i+1)
	}
	return s
}

func TestCorrelator_CorrelatePerfectAlignment(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	series := rampedSeries("solar", current, 6)

	buckets := make([]time.Time, 6)
	values := make([]float64, 6)
	for i := range buckets {
		buckets[i] = current.Add(-time.Duration(5-i) * time.Hour)
		values[i] = float64((i + 1) * 10)
	}

	provider := &stubProvider{signals: map[string]*trend.MarketSignal{
		"solar": signalFor("solar", buckets, values),
	}}
	c := market.New(provider, testConfig(), nil)

	out := c.Correlate(context.Background(), series, []string{"solar"}, current)

	require.Len(t, out.Results, 1)
	require.Empty(t, out.Missing)
	res := out.Results[0]
	assert.Equal(t, "solar", res.Term)
	assert.InDelta(t, 1.0, res.Coefficient, 1e-9)
	assert.Equal(t, 6, res.SampleSize)
	assert.Equal(t, trend.ConfidenceMedium, res.Confidence)
}

func TestCorrelator_CorrelateDetectsLag(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	series := rampedSeries("chips", current, 6)

	// The external signal trails the internal series by one bucket.
	buckets := make([]time.Time, 6)
	values := make([]float64, 6)
	for i := range buckets {
		buckets[i] = current.Add(-time.Duration(4-i) * time.Hour)
		values[i] = float64((i + 1) * 10)
	}

	provider := &stubProvider{signals: map[string]*trend.MarketSignal{
		"chips": signalFor("chips", buckets, values),
	}}
	c := market.New(provider, testConfig(), nil)

	out := c.Correlate(context.Background(), series, []string{"chips"}, current)

	require.Len(t, out.Results, 1)
	res := out.Results[0]
	assert.InDelta(t, 1.0, res.Coefficient, 1e-9)
	assert.Equal(t, 1, res.LagBuckets)
	assert.Equal(t, 6, res.SampleSize)
}

func TestCorrelator_CorrelateInverseSignal(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	series := rampedSeries("bonds", current, 6)

	buckets := make([]time.Time, 6)
	values := make([]float64, 6)
	for i := range buckets {
		buckets[i] = current.Add(-time.Duration(5-i) * time.Hour)
		values[i] = float64((6 - i) * 10)
	}

	provider := &stubProvider{signals: map[string]*trend.MarketSignal{
		"bonds": signalFor("bonds", buckets, values),
	}}
	c := market.New(provider, testConfig(), nil)

	out := c.Correlate(context.Background(), series, []string{"bonds"}, current)

	require.Len(t, out.Results, 1)
	assert.InDelta(t, -1.0, out.Results[0].Coefficient, 1e-9)
}

func TestCorrelator_CorrelateSparseOverlapIsLowConfidence(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	series := rampedSeries("ore", current, 6)

	buckets := []time.Time{current.Add(-time.Hour), current}
	values := []float64{10, 20}

	provider := &stubProvider{signals: map[string]*trend.MarketSignal{
		"ore": signalFor("ore", buckets, values),
	}}
	c := market.New(provider, testConfig(), nil)

	out := c.Correlate(context.Background(), series, []string{"ore"}, current)

	require.Len(t, out.Results, 1)
	assert.Equal(t, trend.ConfidenceLow, out.Results[0].Confidence)
	assert.LessOrEqual(t, out.Results[0].SampleSize, 2)
}

func TestCorrelator_CorrelateOneFailureNeverAbortsBatch(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	series := rampedSeries("good", current, 6)
	for i := 0; i < 6; i++ {
		series.Increment("bad", current.Add(-time.Duration(i)*time.Hour), i+1)
	}

	buckets := make([]time.Time, 6)
	values := make([]float64, 6)
	for i := range buckets {
		buckets[i] = current.Add(-time.Duration(5-i) * time.Hour)
		values[i] = float64(i + 1)
	}

	provider := &stubProvider{signals: map[string]*trend.MarketSignal{
		"good": signalFor("good", buckets, values),
	}}
	c := market.New(provider, testConfig(), nil)

	out := c.Correlate(context.Background(), series, []string{"good", "bad"}, current)

	require.Len(t, out.Results, 1)
	assert.Equal(t, "good", out.Results[0].Term)
	assert.Equal(t, []string{"bad"}, out.Missing)
}

func TestCorrelator_CorrelateEmptyCandidates(t *testing.T) {
	c := market.New(&stubProvider{}, testConfig(), nil)

	out := c.Correlate(context.Background(), trend.NewSeries(), nil, time.Now())

	assert.Empty(t, out.Results)
	assert.Empty(t, out.Missing)
}

func TestCorrelator_CandidatesRankSpikesFirst(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	series := trend.NewSeries()
	series.Increment("filler1", current, 50)
	series.Increment("filler2", current, 40)
	series.Increment("hot", current, 9)
	series.Increment("warm", current, 6)

	spikes := []trend.Spike{
		{Term: "warm", ZScore: 2.4, Severity: trend.SeverityHigh},
		{Term: "hot", ZScore: 8.3, Severity: trend.SeverityCritical},
	}

	cfg := testConfig()
	cfg.CandidateLimit = 3
	c := market.New(&stubProvider{}, cfg, nil)

	got := c.Candidates(series, spikes, current)

	// Spiking terms lead regardless of raw counts; the remainder fills by count.
	assert.Equal(t, []string{"hot", "warm", "filler1"}, got)
}

func TestCorrelator_CandidatesDeduplicates(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	series := trend.NewSeries()
	series.Increment("hot", current, 9)
	series.Increment("steady", current, 4)

	spikes := []trend.Spike{
		{Term: "hot", ZScore: 8.3, Severity: trend.SeverityCritical},
	}

	c := market.New(&stubProvider{}, testConfig(), nil)
	got := c.Candidates(series, spikes, current)

	assert.Equal(t, []string{"hot", "steady"}, got)
}
