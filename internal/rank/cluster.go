package rank

import (
	"sort"
	"strings"

	"horse.fit/newsdesk/internal/news"
	"horse.fit/newsdesk/internal/relevance"
)

// clusterThreshold is the minimum IDF-weighted title similarity for two
// articles to be judged the same story.
const clusterThreshold = 0.65

// Cluster is a set of articles covering one story. Membership is computed
// once per ranking pass and never maintained incrementally.
type Cluster struct {
	Members        []news.Article
	Representative news.Article
	UniqueSources  int
}

// clusterArticles runs the greedy single pass: each unclustered article opens
// a new cluster and absorbs every later unclustered article above the
// similarity threshold. O(n²), membership fixed once formed.
func clusterArticles(articles []news.Article, keywordSets [][]string, idf map[string]float64) []Cluster {
	clusters := make([]Cluster, 0, len(articles))
	claimed := make([]bool, len(articles))

	for i := range articles {
		if claimed[i] {
			continue
		}
		claimed[i] = true
		members := []news.Article{articles[i]}

		for j := i + 1; j < len(articles); j++ {
			if claimed[j] {
				continue
			}
			if titleSimilarity(keywordSets[i], keywordSets[j], idf) > clusterThreshold {
				claimed[j] = true
				members = append(members, articles[j])
			}
		}

		clusters = append(clusters, Cluster{
			Members:       members,
			UniqueSources: countUniqueSources(members),
		})
	}
	return clusters
}

func countUniqueSources(members []news.Article) int {
	domains := make(map[string]struct{}, len(members))
	for _, m := range members {
		domain := strings.ToLower(strings.TrimSpace(m.SourceDomain))
		if domain != "" {
			domains[domain] = struct{}{}
		}
	}
	return len(domains)
}

// chooseRepresentative orders members descending by source tier, category
// relevance, content depth, then recency, and picks the first.
func chooseRepresentative(members []news.Article, tables *relevance.Tables, category string) news.Article {
	if len(members) == 1 {
		return members[0]
	}

	ordered := make([]news.Article, len(members))
	copy(ordered, members)

	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := tables.TierFor(ordered[i].SourceDomain), tables.TierFor(ordered[j].SourceDomain)
		if ti != tj {
			return ti > tj
		}
		ci := tables.CategoryRelevance(categoryFor(ordered[i], category), ordered[i])
		cj := tables.CategoryRelevance(categoryFor(ordered[j], category), ordered[j])
		if ci != cj {
			return ci > cj
		}
		di, dj := contentDepthScore(ordered[i]), contentDepthScore(ordered[j])
		if di != dj {
			return di > dj
		}
		return ordered[i].PublishedAt.After(ordered[j].PublishedAt)
	})
	return ordered[0]
}

// categoryFor resolves which category an article is scored against: the
// batch-wide category when one was requested, else the article's own request
// context.
func categoryFor(a news.Article, batchCategory string) string {
	if batchCategory != "" {
		return batchCategory
	}
	return a.Category
}
