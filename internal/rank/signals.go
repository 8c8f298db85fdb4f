package rank

import (
	"math"
	"strings"
	"time"

	"horse.fit/newsdesk/internal/news"
	"horse.fit/newsdesk/internal/relevance"
)

const (
	descSaturationChars    = 150
	contentSaturationChars = 500
	minSubstanceContent    = 50
	minSubstanceDesc       = 30

	neutralCountrySignal = 4
)

// authoritySignal maps the curated source tier to a 0-10 signal.
func authoritySignal(tier int) float64 {
	switch tier {
	case 3:
		return 10
	case 2:
		return 7
	default:
		return 4
	}
}

// coverageSignal rewards independent confirmation: each distinct source
// beyond the first is worth 3 points, capped at 10.
func coverageSignal(uniqueSources int) float64 {
	if uniqueSources < 1 {
		return 0
	}
	signal := float64(uniqueSources-1) * 3
	if signal > 10 {
		return 10
	}
	return signal
}

// freshnessHalfLife derives the decay half-life from the requested window:
// 20% of the window clamped to [3h, 120h]; 48h in popularity mode without a
// window; 6h otherwise.
func freshnessHalfLife(rangeHours int, usePopularity bool) time.Duration {
	if rangeHours > 0 {
		halfLife := time.Duration(float64(rangeHours) * 0.20 * float64(time.Hour))
		if halfLife < 3*time.Hour {
			return 3 * time.Hour
		}
		if halfLife > 120*time.Hour {
			return 120 * time.Hour
		}
		return halfLife
	}
	if usePopularity {
		return 48 * time.Hour
	}
	return 6 * time.Hour
}

// freshnessSignal decays from 10 by powers of two per half-life of age.
// An article without a publish timestamp cannot prove freshness and scores 0.
func freshnessSignal(publishedAt, now time.Time, halfLife time.Duration) float64 {
	if publishedAt.IsZero() {
		return 0
	}
	age := now.Sub(publishedAt)
	if age < 0 {
		age = 0
	}
	return 10 * math.Exp2(-float64(age)/float64(halfLife))
}

// contentDepthScore blends normalized description and content length into a
// 0-1 value, returning 0 outright below the minimum-substance floor.
func contentDepthScore(a news.Article) float64 {
	content := strings.TrimSpace(a.Content)
	desc := strings.TrimSpace(a.Description)
	if len(content) < minSubstanceContent && len(desc) < minSubstanceDesc {
		return 0
	}

	descPart := math.Min(float64(len(desc))/descSaturationChars, 1)
	contentPart := math.Min(float64(len(content))/contentSaturationChars, 1)
	return 0.3*descPart + 0.7*contentPart
}

func depthSignal(a news.Article) float64 {
	return contentDepthScore(a) * 5
}

// categorySignal blends the representative's relevance with the best member
// relevance, weighted 70/30, scaled to 0-8.
func categorySignal(repRelevance, maxMemberRelevance float64) float64 {
	return (repRelevance*0.7 + maxMemberRelevance*0.3) * 8
}

// countrySignal takes the best country score across the cluster, or a
// neutral 4 when no country filter was active.
func countrySignal(members []news.Article) float64 {
	best := -1
	for _, m := range members {
		if m.CountryScore != nil && *m.CountryScore > best {
			best = *m.CountryScore
		}
	}
	if best < 0 {
		return neutralCountrySignal
	}
	return float64(best)
}

// keywordRelevance scores one article against the search terms on a 0-1
// scale: +5 for an exact multi-word phrase in the title, +2.5 in the
// description, then per term +3 title / +1 description / +0.5 content under
// stem-aware matching, normalized by 8.
func keywordRelevance(a news.Article, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}

	title := strings.ToLower(a.Title)
	desc := strings.ToLower(a.Description)
	content := strings.ToLower(a.Content)

	points := 0.0
	if len(terms) > 1 {
		phrase := strings.ToLower(strings.Join(terms, " "))
		if strings.Contains(title, phrase) {
			points += 5
		} else if strings.Contains(desc, phrase) {
			points += 2.5
		}
	}

	for _, term := range terms {
		switch {
		case stemMatch(title, term):
			points += 3
		case stemMatch(desc, term):
			points++
		case stemMatch(content, term):
			points += 0.5
		}
	}

	score := points / 8
	if score > 1 {
		return 1
	}
	return score
}

// keywordSignal is the best member keyword relevance scaled to 0-10, only
// when search terms were supplied.
func keywordSignal(members []news.Article, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	best := 0.0
	for _, m := range members {
		if rel := keywordRelevance(m, terms); rel > best {
			best = rel
		}
	}
	return best * 10
}

// maxCategoryRelevance is the best member relevance for the cluster blend.
func maxCategoryRelevance(members []news.Article, tables *relevance.Tables, category string) float64 {
	best := 0.0
	for _, m := range members {
		if rel := tables.CategoryRelevance(categoryFor(m, category), m); rel > best {
			best = rel
		}
	}
	return best
}
