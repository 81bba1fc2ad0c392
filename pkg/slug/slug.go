// Package slug turns display names into URL and id friendly strings.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that do not decompose into a base letter plus marks.
var fold = strings.NewReplacer(
	"ı", "i",
	"đ", "d", "Đ", "d",
	"ø", "o", "Ø", "o",
	"ł", "l", "Ł", "l",
	"ß", "ss",
	"æ", "ae", "Æ", "ae",
	"œ", "oe", "Œ", "oe",
)

// Generate creates a lowercase ASCII slug from name. Accents are stripped,
// so "Điện thoại" becomes "dien-thoai" and "Kadın Giyim" becomes
// "kadin-giyim"; every other run of non-alphanumerics becomes one hyphen.
func Generate(name string) string {
	s := fold.Replace(name)
	// A transformer holds state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// GenerateN is Generate cut to at most n bytes, at a hyphen when one is
// available so words are not split.
func GenerateN(name string, n int) string {
	s := Generate(name)
	if n <= 0 || len(s) <= n {
		return s
	}
	s = s[:n]
	if i := strings.LastIndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	return strings.Trim(s, "-")
}
