package relevance

import (
	"regexp"
	"strings"
	"sync"
)

var (
	boundaryMu    sync.Mutex
	boundaryCache = map[string]*regexp.Regexp{}
)

// containsKeyword matches one keyword against case-folded text. Phrases use
// substring match; short single tokens (<=3 runes) require word boundaries so
// "ai" does not match "said".
func containsKeyword(text, keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}

	if strings.Contains(keyword, " ") {
		return strings.Contains(text, keyword)
	}

	if len([]rune(keyword)) <= 3 {
		return boundaryPattern(keyword).MatchString(text)
	}

	return strings.Contains(text, keyword)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if containsKeyword(text, k) {
			return true
		}
	}
	return false
}

func countMatches(text string, keywords []string) (count int, matched []string) {
	for _, k := range keywords {
		if containsKeyword(text, k) {
			count++
			matched = append(matched, k)
		}
	}
	return count, matched
}

func boundaryPattern(keyword string) *regexp.Regexp {
	boundaryMu.Lock()
	defer boundaryMu.Unlock()
	if re, ok := boundaryCache[keyword]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	boundaryCache[keyword] = re
	return re
}

func foldText(parts ...string) string {
	return strings.ToLower(strings.Join(parts, " "))
}
