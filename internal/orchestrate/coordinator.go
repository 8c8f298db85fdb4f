package orchestrate

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/news"
	"horse.fit/newsdesk/internal/rank"
	"horse.fit/newsdesk/internal/summarize"
)

// ErrNoProviders means the deployment has zero adapters configured; the only
// orchestration failure surfaced as a hard error rather than an empty result.
var ErrNoProviders = errors.New("orchestrate: no provider adapters configured")

// lowCoverageThreshold flags pairs that settled with suspiciously few
// articles after all escalation steps.
const lowCoverageThreshold = 5

// Coordinator is the top-level entry point: it expands a request into
// (country, category) pairs, runs the pair orchestrators concurrently,
// merges, globally re-ranks, and enforces the originally requested window.
type Coordinator struct {
	pairs      *PairOrchestrator
	engine     *rank.Engine
	summarizer summarize.Summarizer
	summarized int
}

func NewCoordinator(pairs *PairOrchestrator, engine *rank.Engine) *Coordinator {
	return &Coordinator{pairs: pairs, engine: engine}
}

// WithSummarizer attaches a best-effort summary step for the top topN ranked
// articles. Summarization runs after ranking, never before, and a failed
// summary leaves the article without one.
func (c *Coordinator) WithSummarizer(s summarize.Summarizer, topN int) *Coordinator {
	c.summarizer = s
	c.summarized = topN
	return c
}

// Handle answers one normalized query. Individual pair failures degrade to
// empty contributions; only a configuration error aborts the request.
func (c *Coordinator) Handle(ctx context.Context, q news.Query) (news.Response, error) {
	if c.pairs.adapters.empty() {
		return news.Response{}, ErrNoProviders
	}
	if err := q.Normalize(); err != nil {
		return news.Response{}, err
	}

	type pairKey struct {
		country, category string
	}
	keys := make([]pairKey, 0, len(q.Countries)*len(q.Categories))
	for _, country := range q.Countries {
		for _, category := range q.Categories {
			keys = append(keys, pairKey{country, category})
		}
	}

	results := make([]PairResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			res, err := c.pairs.FetchPair(gctx, key.country, key.category, q)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return news.Response{}, err
	}

	merged := make([]news.Article, 0, 128)
	allHit := true
	var lowCoverage []news.LowCoverage
	for i, res := range results {
		merged = append(merged, res.Articles...)
		if !res.CacheHit {
			allHit = false
		}
		if len(res.Articles) < lowCoverageThreshold {
			lowCoverage = append(lowCoverage, news.LowCoverage{
				Country:  keys[i].country,
				Category: keys[i].category,
				Count:    len(res.Articles),
			})
		}
	}
	news.SortLowCoverage(lowCoverage)

	merged = news.DedupByURL(merged)
	ranked := c.engine.Rank(merged, c.rankOptions(q))
	ranked = enforceWindow(ranked, rangeHours(q))
	c.attachSummaries(ctx, ranked)

	return news.Response{
		Articles:    ranked,
		Total:       len(ranked),
		CacheHit:    allHit && len(keys) > 0,
		LowCoverage: lowCoverage,
	}, nil
}

func (c *Coordinator) rankOptions(q news.Query) rank.Options {
	opts := rank.Options{
		UsePopularity: q.Popularity,
		SearchTerms:   q.SearchTerms,
		KeywordMode:   q.IsKeywordSearch(),
		RangeHours:    rangeHours(q),
	}
	if len(q.Categories) == 1 {
		opts.Category = q.Categories[0]
	}
	return opts
}

// attachSummaries fills in summaries for the leading articles. Any failure,
// quota or otherwise, just leaves the article unsummarized.
func (c *Coordinator) attachSummaries(ctx context.Context, articles []news.Article) {
	if c.summarizer == nil {
		return
	}
	limit := c.summarized
	if limit <= 0 || limit > len(articles) {
		limit = len(articles)
	}
	for i := 0; i < limit; i++ {
		bullets, err := c.summarizer.Summarize(ctx, articles[i])
		if err != nil {
			continue
		}
		articles[i].Summary = bullets
	}
}

// enforceWindow re-applies the originally requested date window after
// merging, since escalation may have fetched with a widened one. Articles
// without a publish timestamp are kept.
func enforceWindow(articles []news.Article, hours int) []news.Article {
	if hours <= 0 {
		return articles
	}
	cutoff := globaltime.UTC().Add(-time.Duration(hours) * time.Hour)
	out := make([]news.Article, 0, len(articles))
	for _, a := range articles {
		if a.HasPublishedAt() && a.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, a)
	}
	return out
}
