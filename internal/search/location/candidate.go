package location

import (
	"strings"
	"unicode"

	"github.com/yungbote/capacity-checker/internal/normalization"
)

const minPlaceRunes = 3

// denylist holds fragments that mark a location as a description rather than a place.
var denylist = []string{
	"component",
	"provided",
	"to be",
	"yet to",
	"after",
	"power station",
	"works",
	"confirmed",
	"tbc",
	"awaiting",
	"not known",
}

// Candidate extracts the place name a location string starts with: the text before the
// first comma or newline, lower-cased. It returns "" when the text is not a usable place.
func Candidate(location string) string {
	head := location
	if i := strings.IndexAny(head, ",\n"); i >= 0 {
		head = head[:i]
	}
	place := normalization.Place(head)
	if len([]rune(place)) < minPlaceRunes {
		return ""
	}
	if unicode.IsDigit([]rune(place)[0]) {
		return ""
	}
	for _, d := range denylist {
		if strings.Contains(place, d) {
			return ""
		}
	}
	return place
}

// containsWords reports whether the word sequence of needle occurs in haystack on word
// boundaries. Punctuation separates words.
func containsWords(haystack, needle string) bool {
	h, n := words(haystack), words(needle)
	if len(n) == 0 || len(n) > len(h) {
		return false
	}
	for i := 0; i+len(n) <= len(h); i++ {
		match := true
		for j := range n {
			if h[i+j] != n[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
}
