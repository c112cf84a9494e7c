// internal/service/spike/detector_test.go

package spike_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendwire/internal/domain/trend"
	"trendwire/internal/service/spike"
)

func seedSeries(term string, current time.Time, prior []int, observed int) *trend.Series {
	s := trend.NewSeries()
	for i, c := range prior {
		bucket := current.Add(-time.Duration(len(prior)-i) * time.Hour)
		s.Increment(term, bucket, c)
	}
	s.Increment(term, current, observed)
	return s
}

func TestDetector_DetectCriticalSpike(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// Baseline [2,3,2,4,3]: mean 2.8, population stddev ~0.748.
	series := seedSeries("gpt5", current, []int{2, 3, 2, 4, 3}, 9)

	detector := spike.New(spike.DefaultConfig())
	spikes := detector.Detect(series, current, current)

	require.Len(t, spikes, 1)
	sp := spikes[0]
	assert.Equal(t, "gpt5", sp.Term)
	assert.Equal(t, 9, sp.ObservedCount)
	assert.InDelta(t, 2.8, sp.BaselineMean, 1e-9)
	assert.InDelta(t, 0.7483, sp.BaselineStddev, 1e-4)
	assert.InDelta(t, 8.285, sp.ZScore, 1e-2)
	assert.Equal(t, trend.SeverityCritical, sp.Severity)
	assert.NotEmpty(t, sp.ID)
	assert.True(t, sp.Bucket.Equal(current))
}

func TestDetector_DetectFlatSeriesNoSpike(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// A term holding perfectly steady must never spike.
	series := seedSeries("widgets", current, []int{1, 1, 1, 1, 1}, 1)

	detector := spike.New(spike.DefaultConfig())
	spikes := detector.Detect(series, current, current)

	assert.Empty(t, spikes)
}

func TestDetector_DetectZeroVarianceJump(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	series := seedSeries("stealth", current, []int{2, 2, 2, 2, 2}, 7)

	detector := spike.New(spike.DefaultConfig())
	spikes := detector.Detect(series, current, current)

	require.Len(t, spikes, 1)
	assert.Equal(t, trend.SeverityCritical, spikes[0].Severity)
	// The raw excess stands in for the z-score when variance is zero.
	assert.InDelta(t, 5.0, spikes[0].ZScore, 1e-9)
}

func TestDetector_DetectSkipsInsufficientHistory(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// Three prior buckets only, below the default history floor of five.
	series := seedSeries("newterm", current, []int{1, 1, 1}, 40)

	detector := spike.New(spike.DefaultConfig())
	spikes := detector.Detect(series, current, current)

	assert.Empty(t, spikes)
}

func TestDetector_DetectIsDeterministic(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	series := seedSeries("gpt5", current, []int{2, 3, 2, 4, 3}, 9)
	series.Increment("fusion", current.Add(-5*time.Hour), 2)
	series.Increment("fusion", current.Add(-4*time.Hour), 3)
	series.Increment("fusion", current.Add(-3*time.Hour), 2)
	series.Increment("fusion", current.Add(-2*time.Hour), 4)
	series.Increment("fusion", current.Add(-1*time.Hour), 3)
	series.Increment("fusion", current, 8)

	detector := spike.New(spike.DefaultConfig())

	first := detector.Detect(series, current, current)
	require.NotEmpty(t, first)

	for i := 0; i < 3; i++ {
		again := detector.Detect(series, current, current)
		require.Len(t, again, len(first))
		for j := range first {
			// IDs differ per run; the analytical fields must not.
			assert.Equal(t, first[j].Term, again[j].Term)
			assert.Equal(t, first[j].ZScore, again[j].ZScore)
			assert.Equal(t, first[j].Severity, again[j].Severity)
		}
	}
}

func TestDetector_DetectOrdersByZScoreThenTerm(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	series := trend.NewSeries()
	for _, term := range []string{"zeta", "alpha", "mid"} {
		for i := 1; i <= 5; i++ {
			series.Increment(term, current.Add(-time.Duration(i)*time.Hour), 2)
		}
	}
	// zeta and alpha jump identically; mid jumps less.
	series.Increment("zeta", current, 10)
	series.Increment("alpha", current, 10)
	series.Increment("mid", current, 6)

	detector := spike.New(spike.DefaultConfig())
	spikes := detector.Detect(series, current, current)

	require.Len(t, spikes, 3)
	assert.Equal(t, "alpha", spikes[0].Term)
	assert.Equal(t, "zeta", spikes[1].Term)
	assert.Equal(t, "mid", spikes[2].Term)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		observed int
		mean     float64
		stddev   float64
		wantZ    float64
		wantSev  trend.Severity
	}{
		{"critical at threshold", 8, 2, 2, 3, trend.SeverityCritical},
		{"high at threshold", 6, 2, 2, 2, trend.SeverityHigh},
		{"moderate at threshold", 4, 2, 2, 1, trend.SeverityModerate},
		{"below moderate", 3, 2, 2, 0.5, trend.SeverityNone},
		{"below mean", 1, 2, 2, -0.5, trend.SeverityNone},
		{"zero variance flat zero", 0, 0, 0, 0, trend.SeverityNone},
		{"zero variance jump", 5, 2, 0, 3, trend.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z, sev := spike.Classify(tt.observed, tt.mean, tt.stddev)
			assert.InDelta(t, tt.wantZ, z, 1e-9)
			assert.Equal(t, tt.wantSev, sev)
		})
	}
}
