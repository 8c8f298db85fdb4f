package relevance

import (
	"strings"

	"horse.fit/newsdesk/internal/news"
)

// Inclusion thresholds used by the pair orchestrator: articles scoring below
// MarginalCountryScore are last-resort filler, those below MinCountryScore
// are padding only.
const (
	MinCountryScore      = 2
	MarginalCountryScore = 1
	maxCountryScore      = 10
)

// ccTLD aliases where the TLD does not equal the ISO country code.
var tldAliases = map[string]string{
	"uk": "gb",
}

// CountryScore rates an article's fit to a target country as an integer in
// [0, 10]:
//
//	+4 any country term in the title, else +2 in title+description
//	+2 three or more distinct terms across title+description+content, +1 for two
//	+2 source domain resolves to the target country, unless it is a wire service
//	+2 country in title together with a category keyword in title
func (t *Tables) CountryScore(a news.Article, country, category string) int {
	terms := t.countryTerms(country)
	if len(terms) == 0 {
		return 0
	}

	title := strings.ToLower(a.Title)
	inText := foldText(a.Title, a.Description)
	fullText := foldText(a.Title, a.Description, a.Content)

	score := 0
	titleHit := containsAny(title, terms)
	if titleHit {
		score += 4
	} else if containsAny(inText, terms) {
		score += 2
	}

	distinct, _ := countMatches(fullText, terms)
	switch {
	case distinct >= 3:
		score += 2
	case distinct == 2:
		score++
	}

	if inferSourceCountry(a.SourceDomain) == strings.ToLower(country) && !t.IsWireService(a.SourceDomain) {
		score += 2
	}

	if category != "" && titleHit && t.HasCategoryKeywordInTitle(category, a.Title) {
		score += 2
	}

	if score > maxCountryScore {
		return maxCountryScore
	}
	return score
}

// CountryInTitle reports whether any term for the country appears in the
// article title.
func (t *Tables) CountryInTitle(a news.Article, country string) bool {
	terms := t.countryTerms(country)
	if len(terms) == 0 {
		return false
	}
	return containsAny(strings.ToLower(a.Title), terms)
}

// inferSourceCountry maps a ccTLD suffix to a country code; generic TLDs
// yield empty.
func inferSourceCountry(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	idx := strings.LastIndex(domain, ".")
	if idx < 0 || idx == len(domain)-1 {
		return ""
	}
	tld := domain[idx+1:]
	if len(tld) != 2 {
		return ""
	}
	if alias, ok := tldAliases[tld]; ok {
		return alias
	}
	return tld
}
