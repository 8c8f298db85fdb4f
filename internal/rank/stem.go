package rank

import "strings"

// stemSuffixes in stripping order; longest first so "running" does not lose
// only a trailing "g".
var stemSuffixes = []string{"ing", "ies", "ed", "es", "ly", "s"}

// stem applies light suffix stripping, keeping at least three leading runes.
func stem(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	for _, suffix := range stemSuffixes {
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		trimmed := strings.TrimSuffix(word, suffix)
		if suffix == "ies" {
			trimmed += "y"
		}
		if len([]rune(trimmed)) >= 3 {
			return trimmed
		}
	}
	return word
}

// stemMatch reports whether a search term appears in the text under stem
// equality, so "election" matches "elections" and "elected" matches "elect".
func stemMatch(text, term string) bool {
	target := stem(term)
	if target == "" {
		return false
	}
	for _, word := range strings.Fields(normalizeTitle(text)) {
		if stem(word) == target {
			return true
		}
	}
	return false
}
