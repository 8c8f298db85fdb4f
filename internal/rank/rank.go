// Package rank clusters near-duplicate stories and orders the survivors by a
// multi-signal relevance score.
package rank

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/news"
	"horse.fit/newsdesk/internal/relevance"
)

// maxRepresentativesPerDomain is the diversity cap: once a domain has
// produced this many representatives, further ones are demoted behind all
// non-demoted articles.
const maxRepresentativesPerDomain = 2

// Weights is the tunable signal weight vector. Exact values are tuning
// constants; the three mode constructors preserve the qualitative emphasis
// each mode needs.
type Weights struct {
	Authority float64
	Coverage  float64
	Freshness float64
	Depth     float64
	Category  float64
	Country   float64
	Keyword   float64
}

// DefaultWeights balances freshness against category and country relevance.
func DefaultWeights() Weights {
	return Weights{Authority: 1.0, Coverage: 0.8, Freshness: 1.6, Depth: 0.7, Category: 1.4, Country: 1.4, Keyword: 0.5}
}

// PopularityWeights emphasizes authority and cross-source coverage.
func PopularityWeights() Weights {
	return Weights{Authority: 1.8, Coverage: 1.8, Freshness: 0.8, Depth: 0.7, Category: 1.0, Country: 1.0, Keyword: 0.5}
}

// KeywordWeights lets keyword and country relevance dominate while freshness
// recedes, for monitoring-style searches.
func KeywordWeights() Weights {
	return Weights{Authority: 0.9, Coverage: 0.7, Freshness: 0.5, Depth: 0.6, Category: 0.8, Country: 1.6, Keyword: 2.5}
}

// Options select the ranking mode for one batch.
type Options struct {
	UsePopularity bool
	Category      string
	SearchTerms   []string
	KeywordMode   bool
	RangeHours    int
	Weights       *Weights
}

func (o Options) weights() Weights {
	if o.Weights != nil {
		return *o.Weights
	}
	if o.KeywordMode {
		return KeywordWeights()
	}
	if o.UsePopularity {
		return PopularityWeights()
	}
	return DefaultWeights()
}

type Engine struct {
	tables *relevance.Tables
	logger zerolog.Logger
}

func NewEngine(tables *relevance.Tables, logger zerolog.Logger) *Engine {
	return &Engine{tables: tables, logger: logger}
}

type scoredCluster struct {
	cluster Cluster
	total   float64
}

// Rank deduplicates the batch into story clusters and returns one scored,
// ordered representative per cluster. Input is expected to be URL-deduped
// already; empty input yields empty output.
func (e *Engine) Rank(articles []news.Article, opts Options) []news.Article {
	if len(articles) == 0 {
		return []news.Article{}
	}

	keywordSets := make([][]string, len(articles))
	for i, a := range articles {
		keywordSets[i] = titleKeywords(a.Title)
	}
	idf := idfWeights(keywordSets)

	clusters := clusterArticles(articles, keywordSets, idf)
	for i := range clusters {
		clusters[i].Representative = chooseRepresentative(clusters[i].Members, e.tables, opts.Category)
	}

	weights := opts.weights()
	halfLife := freshnessHalfLife(opts.RangeHours, opts.UsePopularity)
	now := globaltime.UTC()

	scored := make([]scoredCluster, 0, len(clusters))
	for _, c := range clusters {
		rep := c.Representative
		repRelevance := e.tables.CategoryRelevance(categoryFor(rep, opts.Category), rep)

		total := authoritySignal(e.tables.TierFor(rep.SourceDomain))*weights.Authority +
			coverageSignal(c.UniqueSources)*weights.Coverage +
			freshnessSignal(rep.PublishedAt, now, halfLife)*weights.Freshness +
			depthSignal(rep)*weights.Depth +
			categorySignal(repRelevance, maxCategoryRelevance(c.Members, e.tables, opts.Category))*weights.Category +
			countrySignal(c.Members)*weights.Country +
			keywordSignal(c.Members, opts.SearchTerms)*weights.Keyword

		scored = append(scored, scoredCluster{cluster: c, total: total})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].total > scored[j].total })

	e.logger.Debug().
		Int("articles", len(articles)).
		Int("clusters", len(clusters)).
		Msg("ranked article batch")

	return diversityPass(scored)
}

// diversityPass demotes representatives past the per-domain cap behind all
// non-demoted articles, preserving score order inside each group. Demoted
// articles are deprioritized, never dropped.
func diversityPass(scored []scoredCluster) []news.Article {
	domainCount := make(map[string]int)
	kept := make([]news.Article, 0, len(scored))
	demoted := make([]news.Article, 0)

	for _, sc := range scored {
		rep := sc.cluster.Representative
		domain := strings.ToLower(strings.TrimSpace(rep.SourceDomain))
		if domain != "" {
			domainCount[domain]++
			if domainCount[domain] > maxRepresentativesPerDomain {
				demoted = append(demoted, rep)
				continue
			}
		}
		kept = append(kept, rep)
	}

	return append(kept, demoted...)
}
