package vector

import (
	"math/rand"
	"testing"

	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConcordance(t *testing.T) {
	assert.Equal(t, Concordance{"the": 3}, BuildConcordance("the the THE"))
	assert.Equal(t, Concordance{"mysql": 1, "backup": 1}, BuildConcordance("MySQL backup"))
	assert.Empty(t, BuildConcordance(""))
	assert.Empty(t, BuildConcordance(" \t\n"))
}

func TestBuildConcordanceDeterministic(t *testing.T) {
	text := "One thing that comes up a lot on sites like Stackoverflow and the like"
	first := BuildConcordance(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, BuildConcordance(text))
	}
	assert.Equal(t, 2, first["like"])
	assert.Equal(t, 13, first.Len())
}

func TestConcordanceTermsSorted(t *testing.T) {
	c := BuildConcordance("mysql Backup the MySQL")
	assert.Equal(t, []string{"backup", "mysql", "the"}, c.Terms())
	assert.Empty(t, Concordance{}.Terms())
}

func TestMagnitude(t *testing.T) {
	assert.Equal(t, 0.0, Magnitude(Concordance{}))
	assert.Equal(t, 0.0, Magnitude(nil))
	assert.Equal(t, 5.0, Magnitude(Concordance{"a": 3, "b": 4}))
	assert.Equal(t, 1.0, Magnitude(Concordance{"x": 1}))
}

func TestMagnitudeMonotonic(t *testing.T) {
	c := Concordance{"a": 1, "b": 2, "c": 3}
	prev := Magnitude(c)
	for _, term := range []string{"a", "b", "c", "a"} {
		c[term]++
		next := Magnitude(c)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestCosineSimilaritySelf(t *testing.T) {
	for _, c := range []Concordance{
		{"a": 1},
		{"a": 2, "b": 1},
		BuildConcordance("mysql backups done easily one thing that comes up a lot"),
	} {
		assert.Equal(t, 1.0, CosineSimilarity(c, c))
	}
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	a := Concordance{"mysql": 1, "backup": 1}
	assert.Equal(t, 0.0, CosineSimilarity(a, Concordance{"git": 3}), "disjoint")
	assert.Equal(t, 0.0, CosineSimilarity(a, Concordance{}), "empty b")
	assert.Equal(t, 0.0, CosineSimilarity(Concordance{}, a), "empty a")
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil), "both nil")
}

func TestCosineSimilarityKnownValue(t *testing.T) {
	// dot = 1*1 = 1, |a| = sqrt(2), |b| = sqrt(1+4) => 1/sqrt(10)
	a := Concordance{"x": 1, "y": 1}
	b := Concordance{"x": 1, "z": 2}
	assert.InDelta(t, 0.31622776601683794, CosineSimilarity(a, b), 1e-12)
}

func TestCosineSimilarityProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vocab := []string{"a", "b", "c", "d", "e", "f", "g"}
	random := func() Concordance {
		c := Concordance{}
		for _, term := range vocab {
			if n := rng.Intn(4); n > 0 {
				c[term] = n
			}
		}
		return c
	}
	for i := 0; i < 500; i++ {
		a, b := random(), random()
		ab := CosineSimilarity(a, b)
		ba := CosineSimilarity(b, a)
		assert.Equal(t, ab, ba, "symmetry for %v %v", a, b)
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, 1.0)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Concordance{"a": 1}))
	assert.NoError(t, Validate(Concordance{}))
	assert.ErrorIs(t, Validate(nil), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, Validate(Concordance{"": 1}), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, Validate(Concordance{"a": 0}), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, Validate(Concordance{"a": -2}), apperrors.ErrInvalidInput)
}

func TestDecodeConcordance(t *testing.T) {
	c, err := DecodeConcordance([]byte(`{"mysql": 2, "backup": 1}`))
	require.NoError(t, err)
	assert.Equal(t, Concordance{"mysql": 2, "backup": 1}, c)

	for _, raw := range []string{
		`"mysql backup"`,
		`["mysql"]`,
		`{"mysql": "two"}`,
		`{"mysql": 1.5}`,
		`{"mysql": 0}`,
		`null`,
		`{`,
	} {
		_, err := DecodeConcordance([]byte(raw))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, raw)
	}
}

func BenchmarkCosineSimilarity(b *testing.B) {
	doc := BuildConcordance(`Setting up GIT to use a Subversion SVN style workflow Moving from
		Subversion SVN to GIT can be a little confusing at first I think the biggest thing I
		noticed was that GIT doesnt have a specific workflow you have to pick your own`)
	query := BuildConcordance("git subversion workflow")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = CosineSimilarity(query, doc)
	}
}
