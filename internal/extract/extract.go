// Package extract turns free text into concept/relation triples using a
// lexicon-driven part-of-speech heuristic.
package extract

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/concept-map/backend/internal/models"
)

// Tags assigned to tokens. Verb phrases and noun phrases are matched over
// the resulting tag string.
const (
	tagPunct       = 'X'
	tagDeterminer  = 'D'
	tagPronoun     = 'O'
	tagConjunction = 'C'
	tagVerb        = 'V'
	tagParticle    = 'P'
	tagAdposition  = 'A'
	tagAdverb      = 'R'
	tagNoun        = 'N'
)

var (
	tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’\-][\p{L}\p{N}]+)*|[^\s\p{L}\p{N}]`)
	// VERB* ADV* PART* VERB+ PART* ADP*
	verbPhrasePattern = regexp.MustCompile(`V*R*P*V+P*A*`)
)

// ErrNoText is returned when there is nothing left to extract from after
// normalisation.
var ErrNoText = errors.New("no text to extract concepts from")

// Guard decides whether a text can be processed.
type Guard interface {
	Check(text string) error
}

// Extractor finds concept/relation triples in text.
type Extractor struct {
	lex   *Lexicon
	guard Guard
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithGuard rejects texts the guard does not accept before extraction.
func WithGuard(g Guard) Option {
	return func(e *Extractor) { e.guard = g }
}

// WithLexicon replaces the embedded lexicon.
func WithLexicon(lex *Lexicon) Option {
	return func(e *Extractor) { e.lex = lex }
}

// New creates an Extractor backed by the embedded lexicon unless another is
// supplied.
func New(opts ...Option) (*Extractor, error) {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.lex == nil {
		lex, err := DefaultLexicon()
		if err != nil {
			return nil, err
		}
		e.lex = lex
	}
	return e, nil
}

// Lexicon returns the lexicon used for tagging.
func (e *Extractor) Lexicon() *Lexicon {
	return e.lex
}

type token struct {
	text string
	tag  byte
}

type span struct {
	start, end int
}

// Extract returns every triple found in text, in sentence order.
func (e *Extractor) Extract(text string) ([]models.Triple, error) {
	text = Normalize(text)
	if text == "" {
		return nil, ErrNoText
	}
	if e.guard != nil {
		if err := e.guard.Check(text); err != nil {
			return nil, err
		}
	}

	var triples []models.Triple
	for _, sentence := range SplitSentences(text) {
		triples = append(triples, e.sentenceTriples(sentence)...)
	}
	return triples, nil
}

// NounPhrases returns the lower-cased noun phrases of text in order of
// appearance, duplicates included.
func (e *Extractor) NounPhrases(text string) []string {
	var out []string
	for _, sentence := range SplitSentences(Normalize(text)) {
		tokens := e.tag(tokenize(sentence))
		for _, np := range nounPhrases(tokens) {
			out = append(out, phraseText(tokens, np, true))
		}
	}
	return out
}

func (e *Extractor) sentenceTriples(sentence string) []models.Triple {
	tokens := e.tag(tokenize(sentence))
	if len(tokens) == 0 {
		return nil
	}

	vps := verbPhrases(tokens)
	nps := nounPhrases(tokens)

	var triples []models.Triple
	for i := 0; i < len(nps); i++ {
		for j := i + 1; j < len(nps); j++ {
			var links []int
			for k, vp := range vps {
				if vp.start >= nps[i].end && vp.end <= nps[j].start {
					links = append(links, k)
				}
			}
			if len(links) == 0 {
				continue
			}

			if len(links) == 1 {
				triples = append(triples, models.Triple{
					Subject:  phraseText(tokens, nps[i], true),
					Relation: phraseText(tokens, vps[links[0]], false),
					Object:   phraseText(tokens, nps[j], true),
				})
				continue
			}

			for _, k := range links {
				if lastBefore(nps, vps[k]) == i && firstAfter(nps, vps[k]) == j {
					triples = append(triples, models.Triple{
						Subject:  phraseText(tokens, nps[i], true),
						Relation: phraseText(tokens, vps[k], false),
						Object:   phraseText(tokens, nps[j], true),
					})
					break
				}
			}
		}
	}
	return triples
}

func lastBefore(nps []span, vp span) int {
	idx := -1
	for i, np := range nps {
		if np.end <= vp.start {
			idx = i
		}
	}
	return idx
}

func firstAfter(nps []span, vp span) int {
	for i, np := range nps {
		if np.start >= vp.end {
			return i
		}
	}
	return -1
}

func tokenize(sentence string) []string {
	return tokenPattern.FindAllString(sentence, -1)
}

func (e *Extractor) tag(words []string) []token {
	tokens := make([]token, len(words))
	for i, w := range words {
		tokens[i] = token{text: w}
	}
	for i := range tokens {
		var prev byte
		if i > 0 {
			prev = tokens[i-1].tag
		}
		var next string
		if i+1 < len(words) {
			next = words[i+1]
		}
		tokens[i].tag = e.classify(words[i], prev, next)
	}
	return tokens
}

func (e *Extractor) classify(word string, prev byte, next string) byte {
	r := []rune(word)
	if len(r) == 1 && !unicode.IsLetter(r[0]) && !unicode.IsDigit(r[0]) {
		return tagPunct
	}

	w := strings.ToLower(word)
	lex := e.lex
	if w == "to" {
		if _, ok := lex.verbs[strings.ToLower(next)]; ok {
			return tagParticle
		}
		return tagAdposition
	}
	if in(lex.determiners, w) {
		return tagDeterminer
	}
	if in(lex.pronouns, w) {
		return tagPronoun
	}
	if in(lex.conjunctions, w) {
		return tagConjunction
	}
	if in(lex.auxiliaries, w) {
		return tagVerb
	}
	if in(lex.particles, w) {
		return tagParticle
	}
	if in(lex.prepositions, w) {
		return tagAdposition
	}
	if in(lex.adverbs, w) {
		return tagAdverb
	}
	if form, ok := lex.verbs[w]; ok {
		if e.isVerbUse(form, prev, next) {
			return tagVerb
		}
		return tagNoun
	}
	if len(w) > 4 && strings.HasSuffix(w, "ly") && !in(lex.adverbExceptions, w) {
		return tagAdverb
	}
	if in(lex.stopwords, w) {
		return tagPunct
	}
	return tagNoun
}

// isVerbUse resolves words that are both verbs and nouns from their
// neighbours.
func (e *Extractor) isVerbUse(form verbForm, prev byte, next string) bool {
	switch form {
	case formGerund:
		return prev == tagVerb || prev == tagAdverb || prev == tagParticle
	case formPast:
		return prev != tagDeterminer
	default:
		if prev == tagDeterminer || prev == tagAdposition {
			return false
		}
		if in(e.lex.auxiliaries, strings.ToLower(next)) {
			return false
		}
		return true
	}
}

func verbPhrases(tokens []token) []span {
	tags := tagString(tokens)
	var out []span
	for _, loc := range verbPhrasePattern.FindAllStringIndex(tags, -1) {
		if loc[1] > loc[0] {
			out = append(out, span{start: loc[0], end: loc[1]})
		}
	}
	return out
}

func nounPhrases(tokens []token) []span {
	var out []span
	start := -1
	for i, t := range tokens {
		if t.tag == tagNoun {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, span{start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{start: start, end: len(tokens)})
	}
	return out
}

func tagString(tokens []token) string {
	b := make([]byte, len(tokens))
	for i, t := range tokens {
		b[i] = t.tag
	}
	return string(b)
}

func phraseText(tokens []token, s span, lower bool) string {
	words := make([]string, 0, s.end-s.start)
	for _, t := range tokens[s.start:s.end] {
		words = append(words, t.text)
	}
	out := strings.Join(words, " ")
	if lower {
		out = strings.ToLower(out)
	}
	return out
}

func in(set map[string]struct{}, w string) bool {
	_, ok := set[w]
	return ok
}
