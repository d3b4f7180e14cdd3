package ranking

import (
	"sort"
	"strings"

	"github.com/concept-map/backend/internal/models"
)

// Concept is a noun phrase with its relevance score.
type Concept struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
}

// RankTokens scores the words of reference noun phrases, typically taken
// from an uploaded document.
func RankTokens(phrases []string, stop Stopwords) map[string]float64 {
	cleaned := Clean(phrases)
	docs := make([]string, 0, len(cleaned))
	for _, p := range cleaned {
		if pp := Preprocess(p, stop); pp != "" {
			docs = append(docs, pp)
		}
	}
	return TFIDF(docs)
}

// RankConcepts scores each distinct phrase by the best score among its
// words and returns them best first. Ties keep first-seen order.
func RankConcepts(phrases []string, tokens map[string]float64, stop Stopwords) []Concept {
	seen := make(map[string]int, len(phrases))
	var ranked []Concept
	for _, p := range phrases {
		score := conceptScore(strings.Fields(Preprocess(p, stop)), tokens)
		if i, ok := seen[p]; ok {
			ranked[i].Score = score
			continue
		}
		seen[p] = len(ranked)
		ranked = append(ranked, Concept{Phrase: p, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func conceptScore(words []string, tokens map[string]float64) float64 {
	var best float64
	for _, w := range words {
		if s, ok := tokens[w]; ok && s > best {
			best = s
		}
	}
	return best
}

// FilterConceptMap keeps the triples whose subject and object are both among
// the topN ranked concepts.
func FilterConceptMap(triples []models.Triple, ranked []Concept, topN int) []models.Triple {
	if topN > len(ranked) {
		topN = len(ranked)
	}
	if topN < 0 {
		topN = 0
	}
	top := make(map[string]struct{}, topN)
	for _, c := range ranked[:topN] {
		top[c.Phrase] = struct{}{}
	}

	out := make([]models.Triple, 0, len(triples))
	for _, t := range triples {
		_, subj := top[t.Subject]
		_, obj := top[t.Object]
		if subj && obj {
			out = append(out, t)
		}
	}
	return out
}
