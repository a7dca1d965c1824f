package reconcile

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeReference folds accents and case, and keeps only letters, digits and
// single spaces, so "Pagto. CRÉDITO nsu 00123" and "pagto credito NSU 00123" compare equal.
func NormalizeReference(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

// Similarity returns a score in [0, 1] from the Levenshtein distance between the
// normalized references. Two empty references score 0, never 1.
func Similarity(a, b string) float64 {
	na, nb := NormalizeReference(a), NormalizeReference(b)
	if na == "" || nb == "" {
		return 0
	}
	longest := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n > longest {
		longest = n
	}
	dist := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(dist)/float64(longest)
}
