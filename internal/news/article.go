package news

import (
	"sort"
	"strings"
	"time"
)

// Article is the canonical shape every provider adapter maps into. The URL is
// the identity key: two articles with the same canonical URL are the same
// article and must be deduplicated before scoring.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content,omitempty"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at,omitempty"`

	SourceDomain string `json:"source_domain,omitempty"`
	Country      string `json:"country,omitempty"`
	Category     string `json:"category,omitempty"`

	// Set by the relevance filters while the article moves through the
	// pipeline. CountryScore is nil until a country filter has run.
	CountryScore    *int `json:"country_score,omitempty"`
	MatchesCategory bool `json:"matches_category,omitempty"`

	Summary []string `json:"summary,omitempty"`
}

// HasPublishedAt reports whether the upstream supplied a publish timestamp.
func (a Article) HasPublishedAt() bool {
	return !a.PublishedAt.IsZero()
}

// DedupByURL keeps the first article seen for each canonical URL, preserving
// input order.
func DedupByURL(articles []Article) []Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		key := strings.TrimSpace(a.URL)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// LowCoverage flags a (country, category) pair that returned suspiciously few
// articles after all escalation steps.
type LowCoverage struct {
	Country  string `json:"country"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Response is the merged, ranked answer for one client request.
type Response struct {
	Articles    []Article     `json:"articles"`
	Total       int           `json:"total"`
	CacheHit    bool          `json:"cache_hit"`
	LowCoverage []LowCoverage `json:"low_coverage,omitempty"`
}

// SortLowCoverage orders flags for stable output.
func SortLowCoverage(flags []LowCoverage) {
	sort.Slice(flags, func(i, j int) bool {
		if flags[i].Country != flags[j].Country {
			return flags[i].Country < flags[j].Country
		}
		return flags[i].Category < flags[j].Category
	})
}
