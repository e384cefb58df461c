package services

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
)

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugCollapse = regexp.MustCompile(`[\s-]+`)
)

// Slugify lowercases text, drops everything outside [a-z0-9], whitespace
// and hyphens, collapses whitespace/hyphen runs into one hyphen and trims
// hyphens from both ends. Unicode spaces count as whitespace.
func Slugify(text string) string {
	s := strings.Map(normalizeSpace, strings.ToLower(text))
	s = strings.TrimSpace(s)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// normalizeSpace folds every whitespace rune, including no-break and
// ideographic spaces and the byte order mark, into an ASCII space. NEL is
// not whitespace for slugs.
func normalizeSpace(r rune) rune {
	if r == '\uFEFF' || (unicode.IsSpace(r) && r != '\u0085') {
		return ' '
	}
	return r
}

// newPageSlug derives the slug for a new page: the slugified title plus a
// random 6-hex-digit suffix. An empty base is a validation error.
func newPageSlug(title string) (string, error) {
	base := Slugify(title)
	if base == "" {
		return "", invalid("title", "title must contain at least one letter or digit")
	}
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return base + "-" + hex.EncodeToString(suffix), nil
}
