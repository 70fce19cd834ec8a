package normalizer

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks (é -> e, ô -> o) without touching
// base letters.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// FoldASCII strips diacritics, transliterates any remaining non-ASCII runes
// and lowercases the result. City names from both datasets are compared in
// this form.
func FoldASCII(s string) string {
	return strings.ToLower(unidecode.Unidecode(StripDiacritics(s)))
}
