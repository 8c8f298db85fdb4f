package rank

import (
	"math"
	"strings"
	"unicode"
)

// titleStopwords are dropped before clustering: articles, prepositions,
// pronouns, auxiliaries, the reporting verbs that headline writers reuse
// constantly, and the generic legislative nouns that name a document type
// rather than a story. None of these carry story identity.
var titleStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {},
	"after": {}, "before": {}, "over": {}, "under": {}, "between": {},
	"through": {}, "during": {}, "about": {}, "against": {}, "amid": {},
	"despite": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"their": {}, "his": {}, "her": {}, "our": {}, "your": {}, "its": {},
	"are": {}, "was": {}, "were": {}, "been": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "may": {}, "might": {}, "can": {}, "has": {},
	"have": {}, "had": {}, "does": {}, "did": {}, "not": {}, "all": {},
	"but": {}, "out": {}, "off": {}, "more": {}, "most": {}, "other": {},
	"some": {}, "such": {}, "than": {}, "too": {}, "very": {}, "just": {},
	"how": {}, "what": {}, "why": {}, "when": {}, "where": {}, "who": {},
	"new": {}, "say": {}, "says": {}, "said": {}, "announce": {},
	"announces": {}, "announced": {}, "report": {}, "reports": {},
	"reported": {}, "pass": {}, "passes": {}, "passed": {}, "approve": {},
	"approves": {}, "approved": {}, "bill": {}, "bills": {},
	"legislation": {}, "measure": {}, "measures": {},
}

// titleKeywords lowercases, strips punctuation, collapses whitespace, and
// drops stop-words and tokens of length <= 2.
func titleKeywords(title string) []string {
	normalized := normalizeTitle(title)
	if normalized == "" {
		return nil
	}

	fields := strings.Fields(normalized)
	keywords := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, word := range fields {
		if len([]rune(word)) <= 2 {
			continue
		}
		if _, stop := titleStopwords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

func normalizeTitle(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	if lowered == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// idfWeights computes ln(N/docFrequency)+1 over the keyword sets of one
// ranking batch. Rare words, likely proper nouns, weigh more than common ones.
func idfWeights(keywordSets [][]string) map[string]float64 {
	n := len(keywordSets)
	if n == 0 {
		return nil
	}

	docFreq := make(map[string]int)
	for _, set := range keywordSets {
		for _, word := range set {
			docFreq[word]++
		}
	}

	weights := make(map[string]float64, len(docFreq))
	for word, df := range docFreq {
		weights[word] = math.Log(float64(n)/float64(df)) + 1
	}
	return weights
}

// titleSimilarity is the IDF-weighted Jaccard-style similarity of two keyword
// sets: shared weight over union weight, 0 when either side is empty.
func titleSimilarity(a, b []string, idf map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inA := make(map[string]struct{}, len(a))
	for _, word := range a {
		inA[word] = struct{}{}
	}

	var shared, union float64
	for _, word := range a {
		union += idf[word]
	}
	for _, word := range b {
		if _, ok := inA[word]; ok {
			shared += idf[word]
			continue
		}
		union += idf[word]
	}
	if union == 0 {
		return 0
	}
	return shared / union
}
