package extract

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

type verbForm int

const (
	formBase verbForm = iota
	formThird
	formPast
	formGerund
)

// Lexicon is the word-class table used to tag tokens.
type Lexicon struct {
	determiners      map[string]struct{}
	pronouns         map[string]struct{}
	conjunctions     map[string]struct{}
	auxiliaries      map[string]struct{}
	particles        map[string]struct{}
	prepositions     map[string]struct{}
	adverbs          map[string]struct{}
	adverbExceptions map[string]struct{}
	stopwords        map[string]struct{}
	verbs            map[string]verbForm
}

type lexiconFile struct {
	Determiners      []string          `yaml:"determiners"`
	Pronouns         []string          `yaml:"pronouns"`
	Conjunctions     []string          `yaml:"conjunctions"`
	Auxiliaries      []string          `yaml:"auxiliaries"`
	Particles        []string          `yaml:"particles"`
	Prepositions     []string          `yaml:"prepositions"`
	Adverbs          []string          `yaml:"adverbs"`
	AdverbExceptions []string          `yaml:"adverb_exceptions"`
	Stopwords        []string          `yaml:"stopwords"`
	Verbs            []string          `yaml:"verbs"`
	Irregular        map[string]string `yaml:"irregular"`
}

var (
	defaultLexiconOnce sync.Once
	defaultLexiconVal  *Lexicon
	defaultLexiconErr  error
)

// DefaultLexicon returns the embedded English lexicon.
func DefaultLexicon() (*Lexicon, error) {
	defaultLexiconOnce.Do(func() {
		defaultLexiconVal, defaultLexiconErr = LoadLexicon(strings.NewReader(string(defaultLexicon)))
	})
	return defaultLexiconVal, defaultLexiconErr
}

// LoadLexicon reads a lexicon in the YAML layout of the embedded default.
func LoadLexicon(r io.Reader) (*Lexicon, error) {
	var f lexiconFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding lexicon: %w", err)
	}
	if len(f.Verbs) == 0 {
		return nil, fmt.Errorf("lexicon has no verbs")
	}

	lex := &Lexicon{
		determiners:      toSet(f.Determiners),
		pronouns:         toSet(f.Pronouns),
		conjunctions:     toSet(f.Conjunctions),
		auxiliaries:      toSet(f.Auxiliaries),
		particles:        toSet(f.Particles),
		prepositions:     toSet(f.Prepositions),
		adverbs:          toSet(f.Adverbs),
		adverbExceptions: toSet(f.AdverbExceptions),
		stopwords:        toSet(f.Stopwords),
		verbs:            make(map[string]verbForm),
	}
	for _, v := range f.Verbs {
		lex.addVerb(strings.ToLower(v))
	}
	for form := range f.Irregular {
		lex.verbs[strings.ToLower(form)] = formPast
	}
	return lex, nil
}

// IsStopword reports whether w carries no concept on its own.
func (l *Lexicon) IsStopword(w string) bool {
	w = strings.ToLower(w)
	for _, set := range []map[string]struct{}{
		l.stopwords, l.determiners, l.pronouns, l.conjunctions,
		l.auxiliaries, l.particles, l.prepositions, l.adverbs,
	} {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func (l *Lexicon) addVerb(v string) {
	if v == "" {
		return
	}
	set := func(w string, f verbForm) {
		if _, exists := l.verbs[w]; !exists || f == formBase {
			l.verbs[w] = f
		}
	}
	set(v, formBase)

	last := v[len(v)-1]
	switch {
	case last == 'y' && len(v) > 1 && !isVowel(v[len(v)-2]):
		stem := v[:len(v)-1]
		set(stem+"ies", formThird)
		set(stem+"ied", formPast)
		set(v+"ing", formGerund)
	case last == 'e':
		set(v+"s", formThird)
		set(v+"d", formPast)
		if strings.HasSuffix(v, "ie") {
			set(v[:len(v)-2]+"ying", formGerund)
		} else if strings.HasSuffix(v, "ee") {
			set(v+"ing", formGerund)
		} else {
			set(v[:len(v)-1]+"ing", formGerund)
		}
	default:
		if strings.HasSuffix(v, "s") || strings.HasSuffix(v, "x") || strings.HasSuffix(v, "z") ||
			strings.HasSuffix(v, "ch") || strings.HasSuffix(v, "sh") || strings.HasSuffix(v, "o") {
			set(v+"es", formThird)
		} else {
			set(v+"s", formThird)
		}
		set(v+"ed", formPast)
		set(v+"ing", formGerund)
		if endsCVC(v) {
			set(v+string(last)+"ed", formPast)
			set(v+string(last)+"ing", formGerund)
		}
	}
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

func isVowel(c byte) bool {
	return strings.IndexByte("aeiou", c) >= 0
}

// endsCVC reports a consonant-vowel-consonant ending whose final consonant
// doubles before a suffix (map -> mapped).
func endsCVC(w string) bool {
	if len(w) < 3 {
		return false
	}
	c1, v, c2 := w[len(w)-3], w[len(w)-2], w[len(w)-1]
	return !isVowel(c1) && isVowel(v) && !isVowel(c2) && strings.IndexByte("wxy", c2) < 0
}
