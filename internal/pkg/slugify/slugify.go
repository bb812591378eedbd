// Package slugify turns human titles into URL-safe base text.
//
// Make is pure: no I/O, no randomness. Uniqueness is the allocator's job.
package slugify

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxBaseLength bounds the base so suffixed slugs fit the slug column.
const MaxBaseLength = 200

// Letters that do not decompose into ASCII plus combining marks.
var specials = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "ae", "œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o", "đ", "d", "Đ", "d", "ł", "l", "Ł", "l",
	"þ", "th", "Þ", "th", "ð", "d", "Ð", "d", "ı", "i",
	"@", " at ", "&", " and ",
)

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Make returns the "-" separated base text of title.
func Make(title string) string {
	return MakeWithSeparator(title, "-")
}

// MakeWithSeparator lowercases and transliterates title, keeps [a-z0-9],
// turns whitespace, '-' and '_' runs into a single sep, and drops everything else.
func MakeWithSeparator(title, sep string) string {
	s := strings.ToLower(stripMarks(specials.Replace(title)))

	var b strings.Builder
	pending := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pending && b.Len() > 0 {
				b.WriteString(sep)
			}
			pending = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || strings.ContainsRune(sep, r):
			pending = true
		}
	}
	return truncate(b.String(), sep)
}

func truncate(s, sep string) string {
	if len(s) <= MaxBaseLength {
		return s
	}
	s = s[:MaxBaseLength]
	if i := strings.LastIndex(s, sep); i > 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, sep)
}

// WithSuffix returns base-n.
func WithSuffix(base string, n int) string {
	return base + "-" + strconv.Itoa(n)
}
