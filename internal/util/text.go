package util

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// stopwords excluded from overlap comparison so function words do not inflate
// similarity between unrelated messages.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"i": true, "me": true, "my": true, "we": true, "you": true, "it": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"and": true, "or": true, "but": true, "with": true, "about": true,
	"what": true, "whats": true, "how": true, "do": true, "does": true,
	"can": true, "could": true, "would": true, "should": true, "please": true,
	"there": true, "be": true, "will": true, "this": true, "that": true,
}

// Tokenize lowercases the text and splits it into alphanumeric word tokens,
// dropping stopwords.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	return lo.Filter(fields, func(w string, _ int) bool {
		return !stopwords[w]
	})
}

// OverlapRatio returns |A∩B| / |A| where A is the token set of text a and B of
// text b. It measures how much of the new message is carried over from the
// prior one; 0 when a has no content tokens.
func OverlapRatio(a, b string) float64 {
	ta := lo.Uniq(Tokenize(a))
	if len(ta) == 0 {
		return 0
	}

	tb := map[string]bool{}
	for _, w := range Tokenize(b) {
		tb[w] = true
	}

	shared := lo.CountBy(ta, func(w string) bool { return tb[w] })

	return float64(shared) / float64(len(ta))
}

// NormalizeSpace collapses runs of whitespace to single spaces and trims.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
