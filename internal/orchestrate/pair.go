package orchestrate

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/news"
	"horse.fit/newsdesk/internal/provider"
	"horse.fit/newsdesk/internal/relevance"
)

// PairResult is the outcome for one (country, category) pair.
type PairResult struct {
	Articles []news.Article
	CacheHit bool
}

// PairOrchestrator runs the fetch state machine for one (country, category)
// pair: cache check, coalescing, policy-driven fan-out, filtering, bounded
// escalation, and write-back.
type PairOrchestrator struct {
	pc       *PipelineContext
	adapters AdapterSet
	cfg      PairConfig
}

func NewPairOrchestrator(pc *PipelineContext, adapters AdapterSet, cfg PairConfig) *PairOrchestrator {
	return &PairOrchestrator{pc: pc, adapters: adapters, cfg: cfg.withDefaults()}
}

// FetchPair resolves one pair. A pair that collects zero articles after all
// escalation steps is a valid outcome and is cached as such, so re-looking-up
// a dry pair within the TTL does not burn more upstream calls.
func (p *PairOrchestrator) FetchPair(ctx context.Context, country, category string, q news.Query) (PairResult, error) {
	key := cache.BuildKey(globaltime.UTC(), cache.KeyInput{
		Country:     country,
		Category:    category,
		RangeToken:  q.RangeToken,
		LangMode:    q.LangMode,
		Sources:     q.Sources,
		SearchTerms: q.SearchTerms,
	})
	logger := p.pc.Logger.With().Str("country", country).Str("category", category).Logger()

	if entry, ok := p.pc.Cache.Get(ctx, key); ok {
		logger.Debug().Str("key", key).Int("count", len(entry.Articles)).Msg("cache hit")
		return PairResult{Articles: entry.Articles, CacheHit: true}, nil
	}

	flight, leader := p.pc.InFlight.Join(key)
	if !leader {
		select {
		case <-flight.Done():
			articles, err := flight.Result()
			if err != nil {
				return PairResult{}, err
			}
			return PairResult{Articles: articles}, nil
		case <-ctx.Done():
			return PairResult{}, ctx.Err()
		}
	}

	// Release the key unconditionally, even if the fetch path blows up.
	var articles []news.Article
	defer func() {
		p.pc.InFlight.Settle(key, flight, articles, nil)
	}()

	articles = p.fetchFiltered(ctx, country, category, q, logger)
	p.pc.Cache.Set(ctx, key, cache.Entry{Timestamp: globaltime.UTC(), Articles: articles})

	return PairResult{Articles: articles}, nil
}

// fetchFiltered is steps 3-6 of the pair state machine: fan-out, URL dedup,
// relevance filtering, and bounded escalation (one secondary pass, one
// window-widening pass).
func (p *PairOrchestrator) fetchFiltered(ctx context.Context, country, category string, q news.Query, logger zerolog.Logger) []news.Article {
	opts := p.fetchOptions(country, q, 0)
	primary, skipped := p.splitByPolicy(country)

	seen := make(map[string]struct{})
	var kept buckets

	raw := p.fanOut(ctx, primary, country, category, opts, logger)
	kept.absorb(p.filterBatch(dedupNew(seen, raw), country, category))

	if len(kept.passing) >= p.cfg.MinArticles {
		return kept.assemble(p.cfg.MinArticles)
	}

	if len(skipped) > 0 {
		logger.Info().Int("passing", len(kept.passing)).Msg("undersupplied, calling secondary adapters")
		raw = p.fanOut(ctx, skipped, country, category, opts, logger)
		kept.absorb(p.filterBatch(dedupNew(seen, raw), country, category))
	}

	if hours := rangeHours(q); len(kept.passing) < p.cfg.MinArticles && hours > 0 {
		widened := widenWindow(hours, p.cfg.MaxWindowHours)
		if widened > hours {
			logger.Info().Int("passing", len(kept.passing)).
				Int("window_hours", widened).Msg("undersupplied, widening date window")
			raw = p.fanOut(ctx, primary, country, category, p.fetchOptions(country, q, widened), logger)
			kept.absorb(p.filterBatch(dedupNew(seen, raw), country, category))
		}
	}

	return kept.assemble(p.cfg.MinArticles)
}

// splitByPolicy applies the per-country fan-out policy: well-covered
// countries hold the secondary adapters back for escalation.
func (p *PairOrchestrator) splitByPolicy(country string) (primary, skipped []provider.Adapter) {
	primary = append(primary, p.adapters.Primary...)
	if p.pc.Tables.IsWellCovered(country) {
		return primary, p.adapters.Secondary
	}
	return append(primary, p.adapters.Secondary...), nil
}

func (p *PairOrchestrator) fetchOptions(country string, q news.Query, overrideHours int) provider.Options {
	opts := provider.Options{
		SortByPopularity: q.Popularity,
		TrustedOnly:      !p.pc.Tables.SkipTrustedRestriction(country),
	}
	if q.LangMode == news.LangEnglishOnly {
		opts.Language = "en"
	}
	hours := overrideHours
	if hours == 0 {
		hours = rangeHours(q)
	}
	if hours > 0 {
		from := globaltime.UTC().Add(-time.Duration(hours) * time.Hour)
		opts.FromDate = &from
	}
	return opts
}

// fanOut calls the adapters concurrently, each bounded by the adapter
// timeout. A failing adapter contributes an empty batch, never an error.
func (p *PairOrchestrator) fanOut(ctx context.Context, adapters []provider.Adapter, country, category string, opts provider.Options, logger zerolog.Logger) []news.Article {
	results := make([][]news.Article, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range adapters {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, p.cfg.AdapterTimeout)
			defer cancel()

			p.pc.Quota.Record(adapter.Name())
			articles, err := adapter.Fetch(callCtx, country, category, opts)
			if err != nil {
				logger.Warn().Err(err).Str("adapter", adapter.Name()).Msg("adapter failed, yielding empty")
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]news.Article, 0, 64)
	for _, batch := range results {
		merged = append(merged, batch...)
	}
	return merged
}

// dedupNew keeps only articles whose URL has not been seen in this pair
// invocation, updating seen in place.
func dedupNew(seen map[string]struct{}, articles []news.Article) []news.Article {
	out := make([]news.Article, 0, len(articles))
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

// buckets splits filtered articles by country-score strength. Marginal
// articles pad an undersupplied result and zero-score articles are last
// resort filler.
type buckets struct {
	passing  []news.Article
	marginal []news.Article
	filler   []news.Article
}

func (b *buckets) absorb(other buckets) {
	b.passing = append(b.passing, other.passing...)
	b.marginal = append(b.marginal, other.marginal...)
	b.filler = append(b.filler, other.filler...)
}

func (b *buckets) assemble(minArticles int) []news.Article {
	out := make([]news.Article, 0, len(b.passing))
	out = append(out, b.passing...)
	for _, a := range b.marginal {
		if len(out) >= minArticles {
			return out
		}
		out = append(out, a)
	}
	for _, a := range b.filler {
		if len(out) >= minArticles {
			return out
		}
		out = append(out, a)
	}
	return out
}

// filterBatch applies the category and country relevance filters. An article
// the category filter rejects is still retained when it names the country in
// its title and carries at least one weak category keyword.
func (p *PairOrchestrator) filterBatch(articles []news.Article, country, category string) buckets {
	var out buckets
	for _, a := range articles {
		a.MatchesCategory = p.pc.Tables.MatchesCategory(category, a)
		score := p.pc.Tables.CountryScore(a, country, category)
		a.CountryScore = &score

		if !a.MatchesCategory {
			bypass := p.pc.Tables.CountryInTitle(a, country) && p.pc.Tables.HasWeakCategoryKeyword(category, a)
			if !bypass {
				continue
			}
		}

		switch {
		case score >= relevance.MinCountryScore:
			out.passing = append(out.passing, a)
		case score == relevance.MarginalCountryScore:
			out.marginal = append(out.marginal, a)
		default:
			out.filler = append(out.filler, a)
		}
	}
	return out
}

func rangeHours(q news.Query) int {
	hours, err := news.RangeHours(q.RangeToken)
	if err != nil {
		return 0
	}
	return hours
}

// widenWindow doubles short windows and triples longer ones, capped.
func widenWindow(hours, maxHours int) int {
	widened := hours * 3
	if hours <= 72 {
		widened = hours * 2
	}
	if widened > maxHours {
		widened = maxHours
	}
	return widened
}
