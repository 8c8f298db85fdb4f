package relevance

import (
	"strings"

	"horse.fit/newsdesk/internal/news"
)

// categoryRelevanceDivisor normalizes raw keyword points into a 0-1 score.
const categoryRelevanceDivisor = 8.0

// MatchesCategory scores an article's fit to a requested category.
//
// Any strong keyword present in title+description is an immediate match.
// Otherwise two or more weak hits match; a single weak hit matches only when
// that keyword also appears in the title. "world" matches everything, and an
// unknown category fails open so an unrecognized label never empties a feed.
func (t *Tables) MatchesCategory(category string, a news.Article) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "world" {
		return true
	}
	keywords, known := t.Categories[category]
	if !known {
		return true
	}

	text := foldText(a.Title, a.Description)
	if containsAny(text, keywords.Strong) {
		return true
	}

	weakCount, matched := countMatches(text, keywords.Weak)
	if weakCount >= 2 {
		return true
	}
	if weakCount == 1 {
		title := strings.ToLower(a.Title)
		return containsKeyword(title, matched[0])
	}
	return false
}

// CategoryRelevance returns a 0-1 score from weighted strong/weak keyword
// hits: strong = 2 points plus 1 title bonus, weak = 1 point plus 0.5 title
// bonus, normalized by 8 and capped at 1. Unknown categories score a neutral
// 0.5 so ranking does not punish fail-open articles.
func (t *Tables) CategoryRelevance(category string, a news.Article) float64 {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "world" {
		return 0.5
	}
	keywords, known := t.Categories[category]
	if !known {
		return 0.5
	}

	text := foldText(a.Title, a.Description)
	title := strings.ToLower(a.Title)

	points := 0.0
	for _, k := range keywords.Strong {
		if containsKeyword(text, k) {
			points += 2
			if containsKeyword(title, k) {
				points++
			}
		}
	}
	for _, k := range keywords.Weak {
		if containsKeyword(text, k) {
			points++
			if containsKeyword(title, k) {
				points += 0.5
			}
		}
	}

	score := points / categoryRelevanceDivisor
	if score > 1 {
		return 1
	}
	return score
}

// HasCategoryKeywordInTitle reports whether any strong or weak keyword for
// the category appears in the title.
func (t *Tables) HasCategoryKeywordInTitle(category, title string) bool {
	keywords, known := t.Categories[strings.ToLower(strings.TrimSpace(category))]
	if !known {
		return false
	}
	title = strings.ToLower(title)
	return containsAny(title, keywords.Strong) || containsAny(title, keywords.Weak)
}

// HasWeakCategoryKeyword reports whether any weak keyword for the category
// appears anywhere in title+description. Used by the title-mention bypass.
func (t *Tables) HasWeakCategoryKeyword(category string, a news.Article) bool {
	keywords, known := t.Categories[strings.ToLower(strings.TrimSpace(category))]
	if !known {
		return false
	}
	return containsAny(foldText(a.Title, a.Description), keywords.Weak)
}
