package parse

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)

// Fold strips combining marks so accented source captions compare equal
// to their plain-ASCII spellings ("REGIÃO" → "REGIAO", "março" → "marco").
// Compatibility decomposition also flattens typographic digits, so the
// "m²" in CBIC value headers folds to "m2".
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}
