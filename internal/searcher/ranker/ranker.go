// Package ranker scores every indexed document against a query by cosine
// similarity and returns the positive-scoring documents, best first.
package ranker

import (
	"sort"

	"github.com/oscara1796/vecsearch/internal/indexer/index"
	"github.com/oscara1796/vecsearch/internal/vector"
)

const DefaultExcerptLength = 100

type Match struct {
	DocID   string  `json:"doc_id"`
	Score   float64 `json:"score"`
	Excerpt string  `json:"excerpt"`
}

type Options struct {
	// ExcerptLength is the excerpt size in runes. Zero selects
	// DefaultExcerptLength.
	ExcerptLength int
	// Limit keeps only the best Limit matches. Zero keeps all of them.
	Limit int
}

type candidate struct {
	ordinal int
	doc     index.Document
	score   float64
}

// Rank builds the query concordance with the same case folding used for
// documents and ranks idx against it.
func Rank(query string, idx *index.Index, opts Options) []Match {
	return RankConcordance(vector.BuildConcordance(query), idx, opts)
}

// RankConcordance scores every document of idx in corpus order, drops
// scores that are not strictly positive and sorts by descending score.
// Equal scores keep corpus order.
func RankConcordance(query vector.Concordance, idx *index.Index, opts Options) []Match {
	matches, _ := rank(query, idx, opts)
	return matches
}

// RankConcordanceWithTotal is RankConcordance that also reports the number
// of positive-scoring documents before Options.Limit was applied.
func RankConcordanceWithTotal(query vector.Concordance, idx *index.Index, opts Options) ([]Match, int) {
	return rank(query, idx, opts)
}

func rank(query vector.Concordance, idx *index.Index, opts Options) ([]Match, int) {
	if idx == nil || len(query) == 0 {
		return []Match{}, 0
	}

	var candidates []candidate
	idx.Each(func(ordinal int, doc index.Document, c vector.Concordance) bool {
		if score := vector.CosineSimilarity(query, c); score > 0 {
			candidates = append(candidates, candidate{ordinal: ordinal, doc: doc, score: score})
		}
		return true
	})

	total := len(candidates)
	if opts.Limit > 0 && opts.Limit < total {
		candidates = topK(candidates, opts.Limit)
	} else {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})
	}

	length := opts.ExcerptLength
	if length <= 0 {
		length = DefaultExcerptLength
	}
	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{
			DocID:   c.doc.ID,
			Score:   c.score,
			Excerpt: Excerpt(c.doc.Text, length),
		}
	}
	return matches, total
}

// Excerpt returns the first n runes of text.
func Excerpt(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(text) <= n {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
