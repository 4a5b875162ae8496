// Package naming turns captions into safe file names and decides which files
// are screenshots worth renaming.
package naming

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// MaxStemRunes is the longest stem Sanitize produces, counted in runes.
const MaxStemRunes = 20

// ErrEmptyStem is returned when no letter or digit survives sanitization.
var ErrEmptyStem = errors.New("caption has no usable characters")

var (
	// disallowedRegex matches anything that is not a word character, whitespace or hyphen.
	// Word characters are letters, marks, numbers and connector punctuation in any script.
	disallowedRegex = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{Pc}\p{Z}\s-]`)

	// spaceRunRegex matches runs of ASCII or Unicode whitespace.
	spaceRunRegex = regexp.MustCompile(`[\p{Z}\s]+`)
)

// Sanitize converts raw caption text into a filename stem.
// The result holds at most MaxStemRunes runes drawn from word characters,
// underscores and hyphens.
func Sanitize(raw string) (string, error) {
	stem := disallowedRegex.ReplaceAllString(raw, "")
	stem = strings.TrimFunc(stem, isSpace)
	stem = spaceRunRegex.ReplaceAllString(stem, "_")
	stem = truncateRunes(stem, MaxStemRunes)

	if !strings.ContainsFunc(stem, isAlnum) {
		return "", ErrEmptyStem
	}
	return stem, nil
}

// isAlnum reports whether r is a letter or a number in any script.
func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Z, r)
}

// truncateRunes cuts s to at most n runes without splitting a multi-byte rune.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
