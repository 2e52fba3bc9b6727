package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// letterRunRegex matches maximal runs of letters, accented Spanish letters included
	letterRunRegex = regexp.MustCompile(`(?i)[a-záéíóúñü]+`)

	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// Normalize strips diacritics and lowercases text.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	// transform.Chain is stateful, build one per call so Normalize stays safe for concurrent use
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(stripAccents, strings.ToLower(text))
	if err != nil {
		return strings.ToLower(text)
	}
	return result
}

// Tokenize returns the lowercase, accent-stripped letter runs of text
func Tokenize(text string) []string {
	runs := letterRunRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(runs))
	for _, run := range runs {
		tokens = append(tokens, Normalize(run))
	}
	return tokens
}

// CleanProductName uppercases a name and collapses whitespace
func CleanProductName(name string) string {
	name = multipleSpacesRegex.ReplaceAllString(name, " ")
	return strings.ToUpper(strings.TrimSpace(name))
}
