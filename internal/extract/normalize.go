package extract

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Normalize reduces markup to its visible text and collapses whitespace.
// Plain text passes through apart from whitespace handling.
func Normalize(text string) string {
	if looksLikeHTML(text) {
		if plain, ok := htmlText(text); ok {
			text = plain
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func looksLikeHTML(text string) bool {
	i := strings.IndexByte(text, '<')
	if i < 0 || i+1 >= len(text) {
		return false
	}
	c := text[i+1]
	return (c == '/' || c == '!' || unicode.IsLetter(rune(c))) && strings.IndexByte(text[i:], '>') > 0
}

func htmlText(markup string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", false
	}
	doc.Find("script, style, noscript, template").Remove()
	// Block elements end a line so sentences do not run together.
	doc.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(&html.Node{Type: html.TextNode, Data: " "})
	})
	return doc.Text(), true
}

// SplitSentences splits normalised text at terminal punctuation followed by
// the end of the text or by whitespace and a capital letter, digit or quote.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && isTerminal(runes[end]) {
			end++
		}
		if end == len(runes) || (runes[end] == ' ' && end+1 < len(runes) && startsSentence(runes[end+1])) {
			if s := strings.TrimSpace(string(runes[start:end])); s != "" {
				out = append(out, s)
			}
			start = end
		}
		i = end - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func startsSentence(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '"' || r == '\'' || r == '“'
}
