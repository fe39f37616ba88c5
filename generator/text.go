package generator

import (
	"math/rand"
	"strings"
	"unicode"
)

const (
	consonants = "bcdfghjklmnprstvwz"
	vowels     = "aeiou"
)

// Word returns a pronounceable lowercase token of exactly length letters.
func Word(r *rand.Rand, length int) string {
	if length <= 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(length)

	vowel := r.Intn(2) == 0
	for i := 0; i < length; i++ {
		if vowel {
			sb.WriteByte(vowels[r.Intn(len(vowels))])
		} else {
			sb.WriteByte(consonants[r.Intn(len(consonants))])
		}
		vowel = !vowel
	}
	return sb.String()
}

// Sentence returns words space-separated words, capitalized and ending in a period.
func Sentence(r *rand.Rand, words int) string {
	if words <= 0 {
		return ""
	}
	parts := make([]string, words)
	for i := range parts {
		parts[i] = Word(r, 2+r.Intn(6))
	}

	s := []rune(strings.Join(parts, " "))
	s[0] = unicode.ToUpper(s[0])
	return string(s) + "."
}
