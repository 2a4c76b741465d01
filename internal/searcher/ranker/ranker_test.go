package ranker

import (
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscara1796/vecsearch/internal/corpus"
	"github.com/oscara1796/vecsearch/internal/indexer/index"
	"github.com/oscara1796/vecsearch/internal/vector"
)

func sampleIndex(t testing.TB) *index.Index {
	t.Helper()
	idx, err := index.Build(corpus.Sample())
	require.NoError(t, err)
	return idx
}

func TestRankMySQLBackup(t *testing.T) {
	idx := sampleIndex(t)

	matches := Rank("mysql backup", idx, Options{})
	require.NotEmpty(t, matches)
	assert.Equal(t, "2", matches[0].DocID)
	assert.Greater(t, matches[0].Score, 0.0)
	assert.LessOrEqual(t, matches[0].Score, 1.0)
	assert.Equal(t, "MySQL Backups Done Easily One thing that comes up a lot on sites like Stackoverflow and the like is ",
		matches[0].Excerpt)
	assert.Equal(t, DefaultExcerptLength, utf8.RuneCountInString(matches[0].Excerpt))
}

func TestRankIsCaseInsensitive(t *testing.T) {
	idx := sampleIndex(t)
	assert.Equal(t, Rank("mysql backup", idx, Options{}), Rank("MySQL BACKUP", idx, Options{}))
}

func TestRankNoSharedVocabulary(t *testing.T) {
	idx := sampleIndex(t)
	assert.Empty(t, Rank("xylophone quasar", idx, Options{}))
	assert.Empty(t, Rank("", idx, Options{}))
	assert.Empty(t, Rank("   ", idx, Options{}))
}

func TestRankSortedAndPositive(t *testing.T) {
	idx := sampleIndex(t)

	for _, query := range []string{"the", "captcha numbers", "git subversion workflow", "i a to"} {
		matches := Rank(query, idx, Options{})
		require.NotEmpty(t, matches, query)
		for i, m := range matches {
			assert.Greater(t, m.Score, 0.0, query)
			assert.LessOrEqual(t, m.Score, 1.0, query)
			if i > 0 {
				assert.GreaterOrEqual(t, matches[i-1].Score, m.Score, query)
			}
		}
	}
}

func TestRankScoresMatchCosineSimilarity(t *testing.T) {
	idx := sampleIndex(t)
	query := "captcha numbers"
	q := vector.BuildConcordance(query)

	for _, m := range Rank(query, idx, Options{}) {
		c, ok := idx.Concordance(m.DocID)
		require.True(t, ok)
		assert.Equal(t, vector.CosineSimilarity(q, c), m.Score)
	}
}

func TestRankTiesKeepCorpusOrder(t *testing.T) {
	idx, err := index.Build([]index.Document{
		{ID: "b", Text: "zzz apple"},
		{ID: "a", Text: "aaa apple"},
		{ID: "c", Text: "apple"},
		{ID: "d", Text: "mmm apple"},
	})
	require.NoError(t, err)

	matches := Rank("apple", idx, Options{})
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.DocID
	}
	assert.Equal(t, []string{"c", "b", "a", "d"}, ids)

	limited := Rank("apple", idx, Options{Limit: 3})
	require.Len(t, limited, 3)
	assert.Equal(t, matches[:3], limited)
}

func TestRankLimit(t *testing.T) {
	idx := sampleIndex(t)
	all := Rank("the", idx, Options{})
	require.Greater(t, len(all), 2)

	for _, limit := range []int{1, 2, len(all), len(all) + 5} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			got := Rank("the", idx, Options{Limit: limit})
			want := all
			if limit < len(all) {
				want = all[:limit]
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestRankExcerptLength(t *testing.T) {
	idx, err := index.Build([]index.Document{
		{ID: "u", Text: "héllo wörld ünïcode text that keeps going"},
		{ID: "s", Text: "héllo"},
	})
	require.NoError(t, err)

	matches := Rank("héllo", idx, Options{ExcerptLength: 7})
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.LessOrEqual(t, utf8.RuneCountInString(m.Excerpt), 7)
		assert.True(t, utf8.ValidString(m.Excerpt))
	}
	byID := map[string]string{}
	for _, m := range matches {
		byID[m.DocID] = m.Excerpt
	}
	assert.Equal(t, "héllo w", byID["u"])
	assert.Equal(t, "héllo", byID["s"])
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "", Excerpt("abc", 0))
	assert.Equal(t, "abc", Excerpt("abc", 10))
	assert.Equal(t, "ab", Excerpt("abc", 2))
	assert.Equal(t, "日本", Excerpt("日本語", 2))
}

func TestRankNilIndex(t *testing.T) {
	assert.Empty(t, Rank("mysql", nil, Options{}))
}

func BenchmarkRank(b *testing.B) {
	idx := sampleIndex(b)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Rank("mysql backup databases", idx, Options{})
	}
}

func BenchmarkRankLimit(b *testing.B) {
	docs := make([]index.Document, 5000)
	for i := range docs {
		docs[i] = index.Document{
			ID:   fmt.Sprintf("%d", i),
			Text: fmt.Sprintf("search ranking document %d term%d cosine", i, i%50),
		}
	}
	idx, err := index.Build(docs)
	require.NoError(b, err)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Rank("cosine term7", idx, Options{Limit: 10})
	}
}

func TestRankConcordanceWithTotal(t *testing.T) {
	idx := sampleIndex(t)
	all := Rank("the", idx, Options{})

	limited, total := RankConcordanceWithTotal(vector.BuildConcordance("the"), idx, Options{Limit: 2})
	assert.Len(t, limited, 2)
	assert.Equal(t, len(all), total)

	none, total := RankConcordanceWithTotal(vector.BuildConcordance("xylophone"), idx, Options{Limit: 2})
	assert.Empty(t, none)
	assert.Zero(t, total)
}
