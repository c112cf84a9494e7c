// internal/domain/trend/series_test.go

package trend_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendwire/internal/domain/trend"
)

func bucketAt(hour int) time.Time {
	return time.Date(2026, 8, 1, hour, 0, 0, 0, time.UTC)
}

func TestSeries_IncrementAccumulates(t *testing.T) {
	s := trend.NewSeries()
	b := bucketAt(10)

	s.Increment("gpt5", b, 1)
	s.Increment("gpt5", b, 1)
	s.Increment("gpt5", b, 3)

	assert.Equal(t, 5, s.CountAt("gpt5", b))
	assert.Equal(t, 0, s.CountAt("gpt5", bucketAt(11)))
	assert.Equal(t, 0, s.CountAt("unknown", b))
}

func TestSeries_IncrementKeepsBucketsOrdered(t *testing.T) {
	s := trend.NewSeries()

	// Out-of-order insertion.
	s.Increment("launch", bucketAt(12), 2)
	s.Increment("launch", bucketAt(9), 1)
	s.Increment("launch", bucketAt(10), 4)

	counts := s.Counts("launch")
	require.Len(t, counts, 3)
	assert.True(t, counts[0].Bucket.Equal(bucketAt(9)))
	assert.True(t, counts[1].Bucket.Equal(bucketAt(10)))
	assert.True(t, counts[2].Bucket.Equal(bucketAt(12)))
	assert.Equal(t, []int{1, 4, 2}, []int{counts[0].Count, counts[1].Count, counts[2].Count})
}

func TestSeries_IncrementIgnoresNonPositiveDelta(t *testing.T) {
	s := trend.NewSeries()

	s.Increment("noop", bucketAt(10), 0)
	s.Increment("noop", bucketAt(10), -3)

	assert.Equal(t, 0, s.Len())
}

func TestSeries_PruneDropsOldBuckets(t *testing.T) {
	s := trend.NewSeries()
	s.Increment("old", bucketAt(1), 5)
	s.Increment("mixed", bucketAt(1), 2)
	s.Increment("mixed", bucketAt(8), 3)
	s.Increment("fresh", bucketAt(9), 1)

	s.Prune(bucketAt(5))

	assert.Equal(t, 0, s.CountAt("old", bucketAt(1)))
	assert.NotContains(t, s.Terms(), "old")
	assert.Equal(t, 0, s.CountAt("mixed", bucketAt(1)))
	assert.Equal(t, 3, s.CountAt("mixed", bucketAt(8)))
	assert.Equal(t, 1, s.CountAt("fresh", bucketAt(9)))
}

func TestSeries_FirstBucket(t *testing.T) {
	s := trend.NewSeries()

	_, ok := s.FirstBucket()
	assert.False(t, ok)

	s.Increment("a", bucketAt(7), 1)
	s.Increment("b", bucketAt(4), 1)

	first, ok := s.FirstBucket()
	require.True(t, ok)
	assert.True(t, first.Equal(bucketAt(4)))
}

func TestSeries_TopTerms(t *testing.T) {
	s := trend.NewSeries()
	b := bucketAt(10)

	s.Increment("beta", b, 3)
	s.Increment("alpha", b, 3)
	s.Increment("gamma", b, 7)
	s.Increment("stale", bucketAt(9), 5) // not in the ranked bucket

	top := s.TopTerms(b, 2)
	require.Len(t, top, 2)
	assert.Equal(t, trend.TopTerm{Term: "gamma", Count: 7}, top[0])
	// Tie between alpha and beta resolves lexically.
	assert.Equal(t, trend.TopTerm{Term: "alpha", Count: 3}, top[1])

	all := s.TopTerms(b, 0)
	assert.Len(t, all, 3)
}

func TestTrendState_CloneIsDeep(t *testing.T) {
	state := &trend.TrendState{
		UserID:   "u1",
		TopTerms: []trend.TopTerm{{Term: "gpt5", Count: 9}},
		Spikes:   []trend.Spike{{Term: "gpt5", ZScore: 8.2}},
	}

	clone := state.Clone()
	clone.TopTerms[0].Count = 0
	clone.Spikes[0].ZScore = 0

	assert.Equal(t, 9, state.TopTerms[0].Count)
	assert.Equal(t, 8.2, state.Spikes[0].ZScore)

	var nilState *trend.TrendState
	assert.Nil(t, nilState.Clone())
}
