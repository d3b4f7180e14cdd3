package extract

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// ErrUnsupportedLanguage is returned for text that is not English.
var ErrUnsupportedLanguage = errors.New("only English text is supported")

// minGuardLength is the shortest text the detector is asked about; shorter
// inputs are accepted as-is.
const minGuardLength = 20

// LanguageGuard accepts text detected as English.
type LanguageGuard struct {
	detector lingua.LanguageDetector
}

// NewLanguageGuard builds a detector over a small set of European languages,
// enough to tell English apart from its most frequent neighbours.
func NewLanguageGuard() *LanguageGuard {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.French, lingua.German, lingua.Spanish,
			lingua.Italian, lingua.Portuguese, lingua.Dutch).
		Build()
	return &LanguageGuard{detector: detector}
}

// Check implements Guard.
func (g *LanguageGuard) Check(text string) error {
	if utf8.RuneCountInString(text) < minGuardLength {
		return nil
	}
	lang, ok := g.detector.DetectLanguageOf(text)
	if !ok || lang == lingua.English {
		return nil
	}
	return fmt.Errorf("%w: detected %s", ErrUnsupportedLanguage, lang)
}
