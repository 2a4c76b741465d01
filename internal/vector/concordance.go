// Package vector implements the term-frequency vector space used for
// ranking: concordances (term counts), their Euclidean magnitude, and the
// cosine similarity between two concordances.
package vector

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/oscara1796/vecsearch/internal/indexer/tokenizer"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
)

// Concordance maps a case-folded term to its occurrence count. Counts are
// always >= 1; an absent term counts as 0.
type Concordance map[string]int

// BuildConcordance counts every whitespace-delimited, case-folded token of
// text once per occurrence.
func BuildConcordance(text string) Concordance {
	terms := tokenizer.Terms(text)
	c := make(Concordance, len(terms))
	for _, term := range terms {
		c[term]++
	}
	return c
}

// Magnitude returns the Euclidean norm of c. An empty concordance has
// magnitude 0.
func Magnitude(c Concordance) float64 {
	return math.Sqrt(float64(sumSquares(c)))
}

// CosineSimilarity returns the cosine of the angle between a and b. The dot
// product is driven by the terms of a. When either vector has magnitude 0 the
// similarity is 0. The result is clamped to [0, 1].
func CosineSimilarity(a, b Concordance) float64 {
	sa, sb := sumSquares(a), sumSquares(b)
	if sa == 0 || sb == 0 {
		return 0
	}
	var dot int64
	for term, count := range a {
		dot += int64(count) * int64(b[term])
	}
	// sqrt(sa*sb) equals Magnitude(a)*Magnitude(b) and is exact for a == b.
	sim := float64(dot) / math.Sqrt(float64(sa)*float64(sb))
	return clamp(sim)
}

// Len returns the number of distinct terms.
func (c Concordance) Len() int {
	return len(c)
}

// Terms returns the distinct terms in sorted order.
func (c Concordance) Terms() []string {
	terms := make([]string, 0, len(c))
	for term := range c {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Validate reports an ErrInvalidInput error when c holds an empty term or a
// count below 1. Concordances built by BuildConcordance are always valid.
func Validate(c Concordance) error {
	if c == nil {
		return apperrors.InvalidInputf("concordance is nil")
	}
	for term, count := range c {
		if term == "" {
			return apperrors.InvalidInputf("concordance contains an empty term")
		}
		if count < 1 {
			return apperrors.InvalidInputf("term %q has count %d, want >= 1", term, count)
		}
	}
	return nil
}

// DecodeConcordance parses a JSON object of term counts, for example
// {"mysql": 2, "backup": 1}, and validates the result.
func DecodeConcordance(data []byte) (Concordance, error) {
	var c Concordance
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding concordance: %w", apperrors.InvalidInputf("%v", err))
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

func sumSquares(c Concordance) int64 {
	var total int64
	for _, count := range c {
		total += int64(count) * int64(count)
	}
	return total
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
