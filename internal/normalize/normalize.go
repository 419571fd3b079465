// Package normalize canonicalizes title text before pattern matching.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// folder decomposes, strips combining marks, and recomposes. NFKC first so
// compatibility variants (fullwidth digits, ligatures) collapse before the
// marks are removed.
var folder = transform.Chain(
	norm.NFKC,
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// arabicIndicDigits maps Arabic-Indic and Eastern Arabic-Indic digits to
// ASCII so numeric grade patterns match regardless of source script.
var arabicIndicDigits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
)

// Normalize canonicalizes a title for matching: folds diacritic and
// letter-shape variants, maps digit variants to ASCII, lowercases, and
// squashes whitespace. Total and idempotent; never fails.
func Normalize(s string) string {
	out, _, err := transform.String(folder, s)
	if err != nil {
		// Fold failure leaves the input as-is; matching still works on
		// whatever the caller gave us.
		out = s
	}

	out = arabicIndicDigits.Replace(out)
	out = strings.ToLower(out)

	return strings.Join(strings.Fields(out), " ")
}
