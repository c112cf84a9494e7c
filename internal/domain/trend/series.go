// internal/domain/trend/series.go

package trend

import (
	"sort"
	"time"
)

// BucketCount is one fixed-width time bucket's count for a term.
type BucketCount struct {
	Bucket time.Time `json:"bucket"`
	Count  int       `json:"count"`
}

// Series holds the term frequency series for one user. Buckets are kept in
// ascending order per term; a bucket's count is only ever incremented until
// the bucket ages out of the retention window.
//
// A Series is exclusively owned by the monitor's active refresh cycle for its
// user and is not safe for concurrent mutation.
type Series struct {
	terms map[string][]BucketCount
}

// NewSeries creates an empty frequency series.
func NewSeries() *Series {
	return &Series{terms: make(map[string][]BucketCount)}
}

// Increment adds delta occurrences of term to the given bucket, inserting the
// bucket in order if it does not exist yet.
func (s *Series) Increment(term string, bucket time.Time, delta int) {
	if delta <= 0 {
		return
	}

	buckets := s.terms[term]
	i := sort.Search(len(buckets), func(i int) bool {
		return !buckets[i].Bucket.Before(bucket)
	})

	if i < len(buckets) && buckets[i].Bucket.Equal(bucket) {
		buckets[i].Count += delta
		return
	}

	buckets = append(buckets, BucketCount{})
	copy(buckets[i+1:], buckets[i:])
	buckets[i] = BucketCount{Bucket: bucket, Count: delta}
	s.terms[term] = buckets
}

// Prune drops all buckets older than oldest, removing terms that end up with
// no buckets at all. Keeps memory bounded to the retention window.
func (s *Series) Prune(oldest time.Time) {
	for term, buckets := range s.terms {
		i := sort.Search(len(buckets), func(i int) bool {
			return !buckets[i].Bucket.Before(oldest)
		})
		if i == 0 {
			continue
		}
		if i == len(buckets) {
			delete(s.terms, term)
			continue
		}
		s.terms[term] = append([]BucketCount(nil), buckets[i:]...)
	}
}

// CountAt returns the count recorded for term in the given bucket, zero if
// the bucket has no entry.
func (s *Series) CountAt(term string, bucket time.Time) int {
	buckets := s.terms[term]
	i := sort.Search(len(buckets), func(i int) bool {
		return !buckets[i].Bucket.Before(bucket)
	})
	if i < len(buckets) && buckets[i].Bucket.Equal(bucket) {
		return buckets[i].Count
	}
	return 0
}

// Counts returns a copy of the ordered bucket counts for term.
func (s *Series) Counts(term string) []BucketCount {
	return append([]BucketCount(nil), s.terms[term]...)
}

// Terms returns all tracked terms in lexical order.
func (s *Series) Terms() []string {
	terms := make([]string, 0, len(s.terms))
	for term := range s.terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// FirstBucket returns the earliest bucket across all terms; ok is false for
// an empty series.
func (s *Series) FirstBucket() (time.Time, bool) {
	var first time.Time
	found := false
	for _, buckets := range s.terms {
		if len(buckets) == 0 {
			continue
		}
		if !found || buckets[0].Bucket.Before(first) {
			first = buckets[0].Bucket
			found = true
		}
	}
	return first, found
}

// TopTerms ranks terms by their count in the given bucket, descending, ties
// broken lexically, and returns at most k entries with nonzero counts.
func (s *Series) TopTerms(bucket time.Time, k int) []TopTerm {
	top := make([]TopTerm, 0, len(s.terms))
	for _, term := range s.Terms() {
		if c := s.CountAt(term, bucket); c > 0 {
			top = append(top, TopTerm{Term: term, Count: c})
		}
	}

	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Term < top[j].Term
	})

	if k > 0 && len(top) > k {
		top = top[:k]
	}
	return top
}

// Len returns the number of tracked terms.
func (s *Series) Len() int {
	return len(s.terms)
}
