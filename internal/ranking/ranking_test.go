package ranking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concept-map/backend/internal/models"
)

func stopThe(w string) bool { return w == "the" || w == "of" }

func TestClean(t *testing.T) {
	got := Clean([]string{"solar\nenergy", "3 cells!", "x", "42", "a-b"})
	assert.Equal(t, []string{"solarenergy", " cells", "ab"}, got)
}

func TestPreprocess(t *testing.T) {
	assert.Equal(t, "cell wall", Preprocess("The Cells of walls", stopThe))
	assert.Equal(t, "", Preprocess("the of", stopThe))
}

func TestLemmatize(t *testing.T) {
	tests := map[string]string{
		"cells":    "cell",
		"energies": "energy",
		"classes":  "class",
		"matches":  "match",
		"boxes":    "box",
		"analysis": "analysis",
		"virus":    "virus",
		"glass":    "glass",
		"gas":      "gas",
		"oxygen":   "oxygen",
	}
	for in, want := range tests {
		assert.Equal(t, want, Lemmatize(in), in)
	}
}

func TestTFIDF_MatchesReferenceWeights(t *testing.T) {
	// Two documents: "a b" and "a". n=2.
	// idf(a) = ln(3/3)+1 = 1, idf(b) = ln(3/2)+1.
	scores := TFIDF([]string{"aa bb", "aa"})

	idfB := math.Log(1.5) + 1
	norm := math.Sqrt(1 + idfB*idfB)
	assert.InDelta(t, 1/norm+1, scores["aa"], 1e-9)
	assert.InDelta(t, idfB/norm, scores["bb"], 1e-9)
}

func TestTFIDF_SingleCharTermsIgnored(t *testing.T) {
	scores := TFIDF([]string{"a bb", ""})
	_, ok := scores["a"]
	assert.False(t, ok)
	assert.Contains(t, scores, "bb")
}

func TestRankConcepts(t *testing.T) {
	tokens := map[string]float64{"photosynthesis": 2.0, "cell": 1.0, "energy": 0.5}

	ranked := RankConcepts([]string{"solar energy", "plant cells", "photosynthesis", "the weather", "plant cells"}, tokens, stopThe)
	require.Len(t, ranked, 4)
	assert.Equal(t, "photosynthesis", ranked[0].Phrase)
	assert.Equal(t, "plant cells", ranked[1].Phrase)
	assert.Equal(t, 1.0, ranked[1].Score)
	assert.Equal(t, "solar energy", ranked[2].Phrase)
	assert.Equal(t, "the weather", ranked[3].Phrase)
	assert.Zero(t, ranked[3].Score)
}

func TestRankTokens(t *testing.T) {
	scores := RankTokens([]string{"the cells", "cell walls", "7"}, stopThe)
	require.Contains(t, scores, "cell")
	require.Contains(t, scores, "wall")
	assert.Greater(t, scores["cell"], scores["wall"])
}

func TestFilterConceptMap(t *testing.T) {
	triples := []models.Triple{
		{Subject: "plants", Relation: "produce", Object: "oxygen"},
		{Subject: "plants", Relation: "need", Object: "water"},
		{Subject: "animals", Relation: "breathe", Object: "oxygen"},
	}
	ranked := []Concept{{"plants", 3}, {"oxygen", 2}, {"water", 1}, {"animals", 0.5}}

	tests := []struct {
		name string
		topN int
		want int
	}{
		{"top two", 2, 1},
		{"top three", 3, 2},
		{"all", 10, 3},
		{"none", 0, 0},
		{"negative", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, FilterConceptMap(triples, ranked, tt.topN), tt.want)
		})
	}
}
