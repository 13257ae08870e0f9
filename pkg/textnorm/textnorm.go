// Package textnorm cleans generated commentary for posting: it strips
// citation markers, collapses whitespace, and truncates to the platform
// length budget on a sentence boundary where possible.
package textnorm

import (
	"regexp"
	"strings"
)

const (
	// maxRunes is the post length budget, counted in code points.
	maxRunes = 273
	// minStop is the earliest offset at which a sentence terminator is
	// preferred over a whitespace cut.
	minStop = 200
	// ellipsis is appended when a truncated text does not end a sentence.
	ellipsis = "…"
)

var (
	citationPattern   = regexp.MustCompile(`\[\d+\](?:\[\d+\])*`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// terminators end a sentence: Devanagari danda plus latin stops.
var terminators = map[rune]bool{'।': true, '.': true, '!': true, '?': true}

// Clean normalizes raw model output for posting. Empty input yields empty
// output.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = citationPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}

	trimmed := runes[:maxRunes]
	if stop := lastIndex(trimmed, func(r rune) bool { return terminators[r] }); stop > minStop {
		trimmed = trimmed[:stop+1]
	} else if space := lastIndex(trimmed, func(r rune) bool { return r == ' ' }); space >= 0 {
		trimmed = trimmed[:space]
	} else {
		trimmed = trimmed[:len(trimmed)-1]
	}

	text = string(trimmed)
	if len(trimmed) == 0 || !terminators[trimmed[len(trimmed)-1]] {
		text += ellipsis
	}
	return strings.TrimSpace(text)
}

func lastIndex(runes []rune, pred func(rune) bool) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if pred(runes[i]) {
			return i
		}
	}
	return -1
}
