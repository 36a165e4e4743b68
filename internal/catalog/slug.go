package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gofrs/uuid"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify lowercases s, folds accents ("Çay Bardağı" → "cay-bardagi") and
// joins the remaining letter/digit runs with single dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == 'ı':
			r = 'i'
		case r > unicode.MaxASCII:
			dash = b.Len() > 0
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash {
				b.WriteByte('-')
				dash = false
			}
			b.WriteRune(r)
			continue
		}
		dash = b.Len() > 0
	}
	return b.String()
}

// fallbackSlug names an entity whose name slugifies to nothing, such as a
// Cyrillic or CJK name. It is stable for a given id.
func fallbackSlug(kind string, id uuid.UUID) string {
	return fmt.Sprintf("%s-%x", kind, id.Bytes()[:6])
}
