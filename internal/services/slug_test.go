package services

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "Ancient Ruins", "ancient-ruins"},
		{"punctuation", "Ancient Ruins!!", "ancient-ruins"},
		{"mixed separators", "  The -- Lost   City  ", "the-lost-city"},
		{"tabs and newlines", "Sky\tTemple\nGate", "sky-temple-gate"},
		{"leading hyphens", "---Dragon Spire---", "dragon-spire"},
		{"digits kept", "Level 42 Boss", "level-42-boss"},
		{"unicode dropped", "Café Ünder", "caf-nder"},
		{"only punctuation", "!!!???", ""},
		{"emoji only", "🔥🔥", ""},
		{"no-break space", "Ancient\u00a0Ruins", "ancient-ruins"},
		{"ideographic space", "Ancient\u3000Ruins", "ancient-ruins"},
		{"vertical tab", "Ancient\vRuins", "ancient-ruins"},
		{"byte order mark", "\uFEFFAncient\uFEFFRuins", "ancient-ruins"},
		{"narrow no-break space", "Sky\u202fTemple", "sky-temple"},
		{"next line is not a space", "Sky\u0085Temple", "skytemple"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}

func TestSlugifyIsIdempotentAndURLSafe(t *testing.T) {
	safe := regexp.MustCompile(`^[a-z0-9-]*$`)
	titles := []string{
		"Ancient Ruins!!", "A  B", "-x-", "Hello, World", "über-cool_stuff", "  ", "a--b--c",
		"Über Café -- 2024 Edition", "snake_case_title", "MiXeD CaSe", "trailing - ",
	}
	for _, title := range titles {
		s := Slugify(title)
		assert.Equal(t, s, Slugify(s), "re-normalizing %q", title)
		assert.Regexp(t, safe, s)
		if s != "" {
			assert.NotEqual(t, '-', rune(s[0]))
			assert.NotEqual(t, '-', rune(s[len(s)-1]))
		}
	}
}

func TestNewPageSlug(t *testing.T) {
	slug, err := newPageSlug("Ancient Ruins!!")
	require.NoError(t, err)
	assert.Regexp(t, `^ancient-ruins-[0-9a-f]{6}$`, slug)

	other, err := newPageSlug("Ancient Ruins!!")
	require.NoError(t, err)
	assert.NotEqual(t, slug, other, "suffix is random")

	_, err = newPageSlug("?!?")
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "title", fe.Field)
	assert.ErrorIs(t, err, ErrValidation)
}
