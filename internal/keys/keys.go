// Package keys derives human-readable record keys.
package keys

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letters that do not decompose into a base letter plus combining marks
var ligatures = strings.NewReplacer(
	"ß", "ss", "ẞ", "ss",
	"æ", "ae", "Æ", "ae",
	"œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o",
	"đ", "d", "Đ", "d",
	"ł", "l", "Ł", "l",
	"þ", "th", "Þ", "th",
)

var separators = regexp.MustCompile(`[^a-z0-9]+`)

// Fold strips diacritics and maps ligatures to plain ASCII letters.
func Fold(s string) string {
	s = ligatures.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// Create joins the slugified parts with hyphens. Each part is lowercased
// and ASCII-folded; runs of anything but letters and digits collapse into
// one hyphen. Empty parts are skipped. Create is idempotent.
func Create(parts ...string) string {
	slugs := make([]string, 0, len(parts))
	for _, part := range parts {
		if slug := slugify(part); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	return strings.Join(slugs, "-")
}

func slugify(s string) string {
	s = strings.ToLower(Fold(s))
	s = separators.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
