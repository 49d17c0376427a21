// Package slug derives and validates the URL identifiers used in post and page
// permalinks.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	validSlug      = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	nonAlphanumRun = regexp.MustCompile(`[^a-z0-9]+`)

	// Letters NFKD leaves intact but that have a customary ASCII spelling.
	ligatures = strings.NewReplacer(
		"ß", "ss",
		"æ", "ae",
		"œ", "oe",
		"ø", "o",
		"ł", "l",
		"đ", "d",
		"þ", "th",
	)
)

// Generate turns arbitrary text into a slug.
// "Hello, World!" -> "hello-world".
// "Café Crème" -> "cafe-creme".
// "  --Already-Slugged--  " -> "already-slugged".
func Generate(text string) string {
	s := strings.TrimSpace(strings.ToLower(text))
	s = ligatures.Replace(s)

	// Decompose accented characters and drop the combining marks.
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, s)

	s = nonAlphanumRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// IsValid reports whether s is a well-formed, non-empty slug.
func IsValid(s string) bool {
	return validSlug.MatchString(s)
}
