package permalink

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Prologue", "prologue"},
		{"Chapter One: The Beginning!", "chapter-one-the-beginning"},
		{"Café Noël", "cafe-noel"},
		{"  spaced   out  ", "spaced-out"},
		{"Sci-Fi/Fantasy", "sci-fi-fantasy"},
		{"snake_case stays", "snake_case-stays"},
		{"--Dashes--", "dashes"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	inputs := []string{
		"Ember Tales",
		"A - B",
		"Ünïcödé Störy, Part II",
		"prologue-a1b2c3d4e5f6",
		"  trailing punctuation... ",
	}

	for _, in := range inputs {
		once := Slugify(in)
		assert.Equal(t, once, Slugify(once), "input %q", in)
	}
}

func TestGenerate_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^prologue-[a-z0-9]{12}$`)

	for i := 0; i < 50; i++ {
		p, err := Generate("Prologue")
		require.NoError(t, err)
		assert.Regexp(t, pattern, p)
	}
}

func TestGenerate_FreshSuffixEachCall(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		p, err := Generate("Chapter One")
		require.NoError(t, err)
		assert.False(t, seen[p], "duplicate permalink %s", p)
		seen[p] = true
	}
}

func TestGenerate_EmptySlug(t *testing.T) {
	p, err := Generate("???")
	require.NoError(t, err)
	assert.Regexp(t, `^[a-z0-9]{12}$`, p)
}
