// Package index holds the immutable in-memory document index: every
// document of a corpus together with its precomputed concordance, kept in
// corpus order. An Index is built once and is safe for concurrent readers
// without locking.
package index

import (
	"fmt"

	"github.com/oscara1796/vecsearch/internal/vector"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
)

type Document struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

type entry struct {
	doc         Document
	concordance vector.Concordance
}

type Index struct {
	entries []entry
	byID    map[string]int
	terms   int
	tokens  int64
}

type Stats struct {
	Documents int   `json:"documents"`
	Terms     int   `json:"terms"`
	Tokens    int64 `json:"tokens"`
}

// Build tokenizes every document of corpus exactly once. Documents with an
// empty or repeated id are rejected with an ErrInvalidInput error.
func Build(corpus []Document) (*Index, error) {
	concordances := make([]vector.Concordance, len(corpus))
	for i, doc := range corpus {
		concordances[i] = vector.BuildConcordance(doc.Text)
	}
	return assemble(corpus, concordances)
}

func assemble(corpus []Document, concordances []vector.Concordance) (*Index, error) {
	idx := &Index{
		entries: make([]entry, 0, len(corpus)),
		byID:    make(map[string]int, len(corpus)),
	}
	distinct := make(map[string]struct{})
	for i, doc := range corpus {
		if doc.ID == "" {
			return nil, apperrors.InvalidInputf("document at position %d has an empty id", i)
		}
		if prev, exists := idx.byID[doc.ID]; exists {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrDuplicateDocument,
				apperrors.InvalidInputf("id %q at positions %d and %d", doc.ID, prev, i))
		}
		c := concordances[i]
		idx.byID[doc.ID] = len(idx.entries)
		idx.entries = append(idx.entries, entry{doc: doc, concordance: c})
		for term, count := range c {
			distinct[term] = struct{}{}
			idx.tokens += int64(count)
		}
	}
	idx.terms = len(distinct)
	return idx, nil
}

func (idx *Index) Len() int {
	return len(idx.entries)
}

// Documents returns a copy of the indexed documents in corpus order.
func (idx *Index) Documents() []Document {
	docs := make([]Document, len(idx.entries))
	for i, e := range idx.entries {
		docs[i] = e.doc
	}
	return docs
}

// Concordance returns the concordance of the document with the given id.
// The returned map is shared with the index and must not be modified.
func (idx *Index) Concordance(id string) (vector.Concordance, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return nil, false
	}
	return idx.entries[i].concordance, true
}

func (idx *Index) Document(id string) (Document, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return Document{}, false
	}
	return idx.entries[i].doc, true
}

// Each calls fn for every document in corpus order, stopping early when fn
// returns false.
func (idx *Index) Each(fn func(ordinal int, doc Document, c vector.Concordance) bool) {
	for i, e := range idx.entries {
		if !fn(i, e.doc, e.concordance) {
			return
		}
	}
}

func (idx *Index) Stats() Stats {
	return Stats{
		Documents: len(idx.entries),
		Terms:     idx.terms,
		Tokens:    idx.tokens,
	}
}
