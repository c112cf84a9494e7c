// internal/service/frequency/extractor.go

package frequency

import (
	"fmt"
	"strings"
)

// Policy is the user-scoped term extraction configuration.
type Policy struct {
	// MinLength is the minimum rune length for a single-word term.
	MinLength int

	// NGram selects unigram-only (1) or unigram+bigram (2) extraction.
	NGram int

	// Stopwords are excluded from terms; a bigram containing a stopword is
	// dropped entirely.
	Stopwords map[string]struct{}
}

// DefaultPolicy returns the stock extraction policy.
func DefaultPolicy() Policy {
	return Policy{
		MinLength: 3,
		NGram:     1,
		Stopwords: DefaultStopwords(),
	}
}

// Validate checks the policy's recognized options.
func (p Policy) Validate() error {
	if p.MinLength < 1 {
		return fmt.Errorf("min term length must be positive, got %d", p.MinLength)
	}
	if p.NGram != 1 && p.NGram != 2 {
		return fmt.Errorf("ngram size must be 1 or 2, got %d", p.NGram)
	}
	return nil
}

// Extract tokenizes text and returns qualifying terms: lowercased words of at
// least MinLength that are not stopwords, plus adjacent-word bigrams when
// NGram is 2.
func (p Policy) Extract(text string) []string {
	words := tokenize(text)
	terms := make([]string, 0, len(words))

	for _, w := range words {
		if p.isStopword(w) || len([]rune(w)) < p.MinLength {
			continue
		}
		terms = append(terms, w)
	}

	if p.NGram == 2 {
		for i := 0; i+1 < len(words); i++ {
			if p.isStopword(words[i]) || p.isStopword(words[i+1]) {
				continue
			}
			terms = append(terms, words[i]+" "+words[i+1])
		}
	}

	return terms
}

func (p Policy) isStopword(w string) bool {
	_, ok := p.Stopwords[w]
	return ok
}

// tokenize lowercases text and splits it on anything that is not a letter or
// digit.
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= 0x80: // keep non-ASCII letters as-is, lowered below
			return r
		default:
			return ' '
		}
	}, text)

	return strings.Fields(strings.ToLower(cleaned))
}

// DefaultStopwords returns the builtin English stopword set.
func DefaultStopwords() map[string]struct{} {
	words := []string{
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "is", "are", "was", "were", "be", "been", "have",
		"has", "had", "do", "does", "did", "will", "would", "could", "should",
		"this", "that", "these", "those", "i", "you", "he", "she", "it", "we",
		"they", "me", "him", "her", "us", "them", "my", "your", "his", "its",
		"our", "their",
	}

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
