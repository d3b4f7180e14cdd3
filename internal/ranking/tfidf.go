// Package ranking scores concepts by how characteristic their words are of a
// reference document.
package ranking

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// DefaultTopN is the number of concepts kept by FilterConceptMap callers
// that do not configure their own limit.
const DefaultTopN = 15

var (
	termPattern  = regexp.MustCompile(`\b\w\w+\b`)
	digitPattern = regexp.MustCompile(`\d+`)
)

// Stopwords reports whether a word should be ignored.
type Stopwords func(word string) bool

// Clean strips newlines, digits and ASCII punctuation from each phrase and
// drops phrases left with one character or fewer.
func Clean(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ReplaceAll(p, "\n", "")
		p = digitPattern.ReplaceAllString(p, "")
		p = strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
				return -1
			}
			return r
		}, p)
		if len([]rune(p)) > 1 {
			out = append(out, p)
		}
	}
	return out
}

// Preprocess lower-cases a phrase, drops stopwords and reduces plural forms
// to their singular. An empty result means nothing of the phrase remains.
func Preprocess(phrase string, stop Stopwords) string {
	words := strings.Fields(strings.ToLower(phrase))
	kept := words[:0]
	for _, w := range words {
		if stop != nil && stop(w) {
			continue
		}
		kept = append(kept, Lemmatize(w))
	}
	return strings.Join(kept, " ")
}

// Lemmatize maps common English plural forms to the singular.
func Lemmatize(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case len(w) > 4 && (strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes") ||
		strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "zes")):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return w
	case len(w) > 3 && strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

// TFIDF scores every term across documents the way a default scikit-learn
// TfidfVectorizer does: raw counts, smoothed idf ln((1+n)/(1+df))+1,
// L2-normalised rows. The returned score of a term is the sum of its
// weights over all documents.
func TFIDF(docs []string) map[string]float64 {
	counts := make([]map[string]int, 0, len(docs))
	df := make(map[string]int)
	for _, d := range docs {
		tf := make(map[string]int)
		for _, term := range termPattern.FindAllString(strings.ToLower(d), -1) {
			tf[term]++
		}
		if len(tf) == 0 {
			counts = append(counts, nil)
			continue
		}
		for term := range tf {
			df[term]++
		}
		counts = append(counts, tf)
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, f := range df {
		idf[term] = math.Log((1+n)/(1+float64(f))) + 1
	}

	scores := make(map[string]float64, len(df))
	for _, tf := range counts {
		if tf == nil {
			continue
		}
		var norm float64
		weights := make(map[string]float64, len(tf))
		for term, c := range tf {
			w := float64(c) * idf[term]
			weights[term] = w
			norm += w * w
		}
		norm = math.Sqrt(norm)
		for term, w := range weights {
			scores[term] += w / norm
		}
	}
	return scores
}
