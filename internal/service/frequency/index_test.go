// internal/service/frequency/index_test.go

package frequency_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendwire/internal/domain/content"
	"trendwire/internal/domain/trend"
	"trendwire/internal/service/frequency"
)

func newIndex(t *testing.T, cfg frequency.Config) *frequency.Index {
	t.Helper()

	ix, err := frequency.New(frequency.DefaultPolicy(), cfg, nil)
	require.NoError(t, err)
	return ix
}

func item(text string, published time.Time) content.Item {
	return content.Item{
		SourceID:    "test",
		Text:        text,
		PublishedAt: published,
		FetchedAt:   published,
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		policy frequency.Policy
		cfg    frequency.Config
	}{
		{"zero bucket width", frequency.DefaultPolicy(), frequency.Config{BucketWidth: 0, Retention: 30}},
		{"zero retention", frequency.DefaultPolicy(), frequency.Config{BucketWidth: time.Hour, Retention: 0}},
		{"bad policy", frequency.Policy{MinLength: 0, NGram: 1}, frequency.DefaultConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := frequency.New(tt.policy, tt.cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestIndex_ApplyCountsExactOccurrences(t *testing.T) {
	ix := newIndex(t, frequency.DefaultConfig())
	series := trend.NewSeries()

	now := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	current := ix.Bucket(now)

	res := ix.Apply(series, []content.Item{
		item("quantum breakthrough in quantum computing", now),
		item("another quantum story", now),
	}, now)

	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 0, res.Rejected)
	// "quantum" appears twice in the first item and once in the second.
	assert.Equal(t, 3, series.CountAt("quantum", current))
	assert.Equal(t, 1, series.CountAt("breakthrough", current))
	assert.Equal(t, 1, series.CountAt("computing", current))
}

func TestIndex_ApplyIsMonotonicAcrossBatches(t *testing.T) {
	ix := newIndex(t, frequency.DefaultConfig())
	series := trend.NewSeries()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := ix.Bucket(now)

	ix.Apply(series, []content.Item{item("fusion reactor milestone", now)}, now)
	before := series.CountAt("fusion", current)

	ix.Apply(series, []content.Item{item("fusion funding announced", now)}, now)
	after := series.CountAt("fusion", current)

	assert.Equal(t, before+1, after)
}

func TestIndex_ApplyBucketsByPublishedAt(t *testing.T) {
	ix := newIndex(t, frequency.DefaultConfig())
	series := trend.NewSeries()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-3 * time.Hour)

	ix.Apply(series, []content.Item{
		item("rollout begins", now),
		item("rollout teased", earlier),
	}, now)

	assert.Equal(t, 1, series.CountAt("rollout", ix.Bucket(now)))
	assert.Equal(t, 1, series.CountAt("rollout", ix.Bucket(earlier)))
}

func TestIndex_ApplyRejectsInvalidTimestamps(t *testing.T) {
	ix := newIndex(t, frequency.DefaultConfig())
	series := trend.NewSeries()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	res := ix.Apply(series, []content.Item{
		item("valid item", now),
		item("no timestamp", time.Time{}),
		item("from the future", now.Add(48*time.Hour)),
	}, now)

	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, 0, series.CountAt("future", ix.Bucket(now.Add(48*time.Hour))))
}

func TestIndex_ApplyPrunesOutsideRetention(t *testing.T) {
	ix := newIndex(t, frequency.Config{BucketWidth: time.Hour, Retention: 3})
	series := trend.NewSeries()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ix.Apply(series, []content.Item{item("ancient news", start)}, start)
	require.Equal(t, 1, series.CountAt("ancient", ix.Bucket(start)))

	// Advance past the retention window; the old bucket ages out.
	later := start.Add(5 * time.Hour)
	ix.Apply(series, []content.Item{item("current news", later)}, later)

	assert.Equal(t, 0, series.CountAt("ancient", ix.Bucket(start)))
	assert.Equal(t, 1, series.CountAt("current", ix.Bucket(later)))
	assert.NotContains(t, series.Terms(), "ancient")
}

func TestIndex_ApplyCountsStaleItemWithoutIndexingTerms(t *testing.T) {
	ix := newIndex(t, frequency.Config{BucketWidth: time.Hour, Retention: 3})
	series := trend.NewSeries()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	stale := now.Add(-24 * time.Hour)

	res := ix.Apply(series, []content.Item{item("ages old headline", stale)}, now)

	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 0, res.Rejected)
	assert.Equal(t, 0, series.Len())
}

func TestIndex_ApplyEmptyBatchIsNoOp(t *testing.T) {
	ix := newIndex(t, frequency.DefaultConfig())
	series := trend.NewSeries()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ix.Apply(series, []content.Item{item("standing count", now)}, now)
	before := series.Counts("standing")

	res := ix.Apply(series, nil, now)

	assert.Equal(t, 0, res.Indexed)
	assert.Equal(t, 0, res.Rejected)
	assert.Equal(t, before, series.Counts("standing"))
}

func TestIndex_BucketTruncatesToUTC(t *testing.T) {
	ix := newIndex(t, frequency.DefaultConfig())

	loc := time.FixedZone("UTC+2", 2*3600)
	local := time.Date(2026, 8, 1, 14, 45, 0, 0, loc)

	got := ix.Bucket(local)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}
