package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/news"
	"horse.fit/newsdesk/internal/provider"
	"horse.fit/newsdesk/internal/quota"
	"horse.fit/newsdesk/internal/rank"
	"horse.fit/newsdesk/internal/relevance"
)

type fakeAdapter struct {
	name string
	// gate, when set, blocks Fetch until the channel is closed.
	gate  chan struct{}
	fetch func(opts provider.Options) ([]news.Article, error)

	mu    sync.Mutex
	calls []provider.Options
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(_ context.Context, _, _ string, opts provider.Options) ([]news.Article, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	return f.fetch(opts)
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAdapter) call(i int) provider.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func newTestPipeline(t *testing.T) *PipelineContext {
	t.Helper()
	tables, err := relevance.Default()
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	return &PipelineContext{
		Cache:    cache.NewStore(100, nil, func() bool { return false }, zerolog.Nop()),
		InFlight: NewInFlightRegistry(),
		Quota:    quota.NewTracker(nil),
		Tables:   tables,
		Logger:   zerolog.Nop(),
	}
}

// usSportsArticle passes both the sports category filter (strong keyword
// "championship") and the us country filter (two terms in the title).
func usSportsArticle(i int) news.Article {
	return news.Article{
		Title:       fmt.Sprintf("American team clinches championship victory %d in Washington", i),
		Description: "A decisive final in front of a home crowd.",
		URL:         fmt.Sprintf("https://example.com/us-sports-%d", i),
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	}
}

func frSportsArticle(i int) news.Article {
	return news.Article{
		Title:       fmt.Sprintf("French side wins championship match %d in Paris", i),
		Description: "League leaders extend their run.",
		URL:         fmt.Sprintf("https://example.com/fr-sports-%d", i),
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	}
}

func offTopicArticle(i int) news.Article {
	return news.Article{
		Title:       fmt.Sprintf("Local bakery reopens storefront %d after renovation", i),
		Description: "Neighborhood fixture returns.",
		URL:         fmt.Sprintf("https://example.com/bakery-%d", i),
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	}
}

func batch(build func(int) news.Article, n int) []news.Article {
	out := make([]news.Article, n)
	for i := 0; i < n; i++ {
		out[i] = build(i)
	}
	return out
}

func sportsQuery() news.Query {
	q := news.Query{RangeToken: news.RangeDay, Categories: []string{"sports"}}
	return q
}

func TestInFlightRegistry_LeaderAndRelease(t *testing.T) {
	t.Parallel()

	reg := NewInFlightRegistry()
	flight, leader := reg.Join("k")
	if !leader {
		t.Fatal("first joiner must lead")
	}
	if _, follower := reg.Join("k"); follower {
		t.Fatal("second joiner must follow")
	}

	reg.Settle("k", flight, []news.Article{{URL: "u"}}, nil)
	if reg.Pending("k") {
		t.Fatal("key must be released after settle")
	}
	select {
	case <-flight.Done():
	default:
		t.Fatal("followers must be woken on settle")
	}
	articles, err := flight.Result()
	if err != nil || len(articles) != 1 {
		t.Fatalf("result = %v, %v", articles, err)
	}

	if _, leader := reg.Join("k"); !leader {
		t.Fatal("released key must be fetchable again")
	}
}

func TestFetchPair_SecondLookupIsCacheHit(t *testing.T) {
	t.Parallel()

	pc := newTestPipeline(t)
	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		return batch(usSportsArticle, 20), nil
	}}
	p := NewPairOrchestrator(pc, AdapterSet{Primary: []provider.Adapter{primary}}, PairConfig{})

	first, err := p.FetchPair(context.Background(), "us", "sports", sportsQuery())
	if err != nil {
		t.Fatalf("FetchPair: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first lookup must miss")
	}

	second, err := p.FetchPair(context.Background(), "us", "sports", sportsQuery())
	if err != nil {
		t.Fatalf("FetchPair: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second lookup must hit the cache")
	}
	if primary.callCount() != 1 {
		t.Fatalf("adapter calls = %d, want 1", primary.callCount())
	}
	if len(second.Articles) != len(first.Articles) {
		t.Fatalf("cached result differs: %d vs %d", len(second.Articles), len(first.Articles))
	}
}

func TestFetchPair_CoalescesConcurrentFetches(t *testing.T) {
	t.Parallel()

	pc := newTestPipeline(t)
	gate := make(chan struct{})
	primary := &fakeAdapter{name: "primary", gate: gate, fetch: func(provider.Options) ([]news.Article, error) {
		return batch(usSportsArticle, 20), nil
	}}
	p := NewPairOrchestrator(pc, AdapterSet{Primary: []provider.Adapter{primary}}, PairConfig{})

	var wg sync.WaitGroup
	results := make([]PairResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.FetchPair(context.Background(), "us", "sports", sportsQuery())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
	}
	if primary.callCount() != 1 {
		t.Fatalf("adapter calls = %d, want 1 (coalesced)", primary.callCount())
	}
	if len(results[0].Articles) != len(results[1].Articles) {
		t.Fatalf("coalesced callers observed different results: %d vs %d",
			len(results[0].Articles), len(results[1].Articles))
	}
}

func TestFetchPair_AdapterFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	pc := newTestPipeline(t)
	broken := &fakeAdapter{name: "broken", fetch: func(provider.Options) ([]news.Article, error) {
		return nil, errors.New("upstream down")
	}}
	healthy := &fakeAdapter{name: "healthy", fetch: func(provider.Options) ([]news.Article, error) {
		return batch(usSportsArticle, 20), nil
	}}
	p := NewPairOrchestrator(pc, AdapterSet{Primary: []provider.Adapter{broken, healthy}}, PairConfig{})

	res, err := p.FetchPair(context.Background(), "us", "sports", sportsQuery())
	if err != nil {
		t.Fatalf("FetchPair: %v", err)
	}
	if len(res.Articles) == 0 {
		t.Fatal("healthy adapter's articles must survive a broken sibling")
	}
}

func TestFetchPair_UndersupplyCallsSecondary(t *testing.T) {
	t.Parallel()

	pc := newTestPipeline(t)
	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		// 20 raw, only 3 pass the filters
		out := batch(offTopicArticle, 17)
		return append(out, batch(usSportsArticle, 3)...), nil
	}}
	secondary := &fakeAdapter{name: "secondary", fetch: func(provider.Options) ([]news.Article, error) {
		out := make([]news.Article, 0, 13)
		for i := 100; i < 113; i++ {
			out = append(out, usSportsArticle(i))
		}
		return out, nil
	}}
	p := NewPairOrchestrator(pc, AdapterSet{
		Primary:   []provider.Adapter{primary},
		Secondary: []provider.Adapter{secondary},
	}, PairConfig{})

	res, err := p.FetchPair(context.Background(), "us", "sports", sportsQuery())
	if err != nil {
		t.Fatalf("FetchPair: %v", err)
	}
	if secondary.callCount() != 1 {
		t.Fatalf("secondary calls = %d, want 1 (escalation)", secondary.callCount())
	}
	if len(res.Articles) != 16 {
		t.Fatalf("articles = %d, want 16 (3 primary + 13 secondary)", len(res.Articles))
	}
}

func TestFetchPair_SecondaryHeldBackWhenSupplied(t *testing.T) {
	t.Parallel()

	pc := newTestPipeline(t)
	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		return batch(usSportsArticle, 20), nil
	}}
	secondary := &fakeAdapter{name: "secondary", fetch: func(provider.Options) ([]news.Article, error) {
		return []news.Article{}, nil
	}}
	p := NewPairOrchestrator(pc, AdapterSet{
		Primary:   []provider.Adapter{primary},
		Secondary: []provider.Adapter{secondary},
	}, PairConfig{})

	if _, err := p.FetchPair(context.Background(), "us", "sports", sportsQuery()); err != nil {
		t.Fatalf("FetchPair: %v", err)
	}
	if secondary.callCount() != 0 {
		t.Fatalf("secondary calls = %d, want 0 for a well-supplied well-covered country", secondary.callCount())
	}
}

func TestFetchPair_WidensWindowWhenStillUndersupplied(t *testing.T) {
	t.Parallel()

	pc := newTestPipeline(t)
	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		return batch(frSportsArticle, 3), nil
	}}
	p := NewPairOrchestrator(pc, AdapterSet{Primary: []provider.Adapter{primary}}, PairConfig{})

	res, err := p.FetchPair(context.Background(), "fr", "sports", sportsQuery())
	if err != nil {
		t.Fatalf("FetchPair: %v", err)
	}
	if primary.callCount() != 2 {
		t.Fatalf("primary calls = %d, want 2 (initial + widened window)", primary.callCount())
	}

	first, second := primary.call(0), primary.call(1)
	if first.FromDate == nil || second.FromDate == nil {
		t.Fatal("both passes must carry a window for a 24h range")
	}
	if !second.FromDate.Before(*first.FromDate) {
		t.Fatalf("widened window must reach further back: first=%v second=%v", first.FromDate, second.FromDate)
	}
	// identical URLs from the retry are deduped, not doubled
	if len(res.Articles) != 3 {
		t.Fatalf("articles = %d, want 3", len(res.Articles))
	}
}

func TestFetchPair_EmptyResultIsCached(t *testing.T) {
	t.Parallel()

	pc := newTestPipeline(t)
	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		return []news.Article{}, nil
	}}
	p := NewPairOrchestrator(pc, AdapterSet{Primary: []provider.Adapter{primary}}, PairConfig{})

	q := news.Query{RangeToken: news.RangeAll, Categories: []string{"sports"}}
	if _, err := p.FetchPair(context.Background(), "jp", "sports", q); err != nil {
		t.Fatalf("FetchPair: %v", err)
	}
	callsAfterFirst := primary.callCount()

	res, err := p.FetchPair(context.Background(), "jp", "sports", q)
	if err != nil {
		t.Fatalf("FetchPair: %v", err)
	}
	if !res.CacheHit {
		t.Fatal("empty results must be cached")
	}
	if primary.callCount() != callsAfterFirst {
		t.Fatalf("adapter re-called for a cached empty result: %d -> %d", callsAfterFirst, primary.callCount())
	}
}

func TestFilterBatch_TitleMentionBypass(t *testing.T) {
	t.Parallel()

	pc := newTestPipeline(t)
	p := NewPairOrchestrator(pc, AdapterSet{}, PairConfig{})

	// Rejected by the sports category filter (a single weak keyword, and
	// not in the title) but retained because the title names the country.
	bypassed := news.Article{
		Title:       "Washington crowds line the parade route",
		Description: "Fans of the local team fill the streets.",
		URL:         "https://example.com/parade-1",
	}
	// Same shape without any category keyword: no bypass, dropped.
	dropped := news.Article{
		Title:       "Washington crowds line the parade route downtown",
		Description: "Streets fill for the afternoon procession.",
		URL:         "https://example.com/parade-2",
	}

	got := p.filterBatch([]news.Article{bypassed, dropped}, "us", "sports")

	if len(got.passing) != 1 || got.passing[0].URL != bypassed.URL {
		t.Fatalf("country-titled article with a weak keyword must survive filtering, got %+v", got)
	}
	if got.passing[0].MatchesCategory {
		t.Fatal("bypassed article must keep its failed category verdict")
	}
	if len(got.marginal)+len(got.filler) != 0 {
		t.Fatalf("article without a category keyword must be dropped, got %+v", got)
	}
}

func TestBuckets_AssemblePadsOnlyWhenShort(t *testing.T) {
	t.Parallel()

	supplied := buckets{
		passing:  batch(usSportsArticle, 3),
		marginal: batch(offTopicArticle, 2),
	}
	if got := supplied.assemble(3); len(got) != 3 {
		t.Fatalf("a supplied result must not take marginal padding, got %d articles", len(got))
	}

	short := buckets{
		passing:  batch(usSportsArticle, 2),
		marginal: batch(offTopicArticle, 2),
	}
	got := short.assemble(3)
	if len(got) != 3 {
		t.Fatalf("an undersupplied result must pad from marginal, got %d articles", len(got))
	}
	if got[2].URL != short.marginal[0].URL {
		t.Fatal("padding must come from the marginal bucket in order")
	}

	backfilled := buckets{
		passing:  batch(usSportsArticle, 1),
		marginal: batch(frSportsArticle, 1),
		filler:   batch(offTopicArticle, 2),
	}
	if got := backfilled.assemble(4); len(got) != 4 {
		t.Fatalf("filler must back-fill once marginal is exhausted, got %d articles", len(got))
	}
}

func TestWidenWindow(t *testing.T) {
	t.Parallel()

	cases := []struct {
		hours, max, want int
	}{
		{24, 720, 48},
		{72, 720, 144},
		{168, 720, 504},
		{720, 720, 720},
		{300, 720, 720},
	}
	for _, tc := range cases {
		if got := widenWindow(tc.hours, tc.max); got != tc.want {
			t.Errorf("widenWindow(%d, %d) = %d, want %d", tc.hours, tc.max, got, tc.want)
		}
	}
}

func newTestCoordinator(t *testing.T, adapters AdapterSet, cfg PairConfig) (*Coordinator, *PipelineContext) {
	t.Helper()
	pc := newTestPipeline(t)
	pairs := NewPairOrchestrator(pc, adapters, cfg)
	engine := rank.NewEngine(pc.Tables, zerolog.Nop())
	return NewCoordinator(pairs, engine), pc
}

func TestCoordinator_NoProvidersIsConfigError(t *testing.T) {
	t.Parallel()

	coord, _ := newTestCoordinator(t, AdapterSet{}, PairConfig{})
	_, err := coord.Handle(context.Background(), news.Query{})
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestCoordinator_FlagsLowCoveragePairs(t *testing.T) {
	t.Parallel()

	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		return batch(usSportsArticle, 3), nil
	}}
	coord, _ := newTestCoordinator(t, AdapterSet{Primary: []provider.Adapter{primary}}, PairConfig{})

	resp, err := coord.Handle(context.Background(), news.Query{
		Countries:  []string{"us"},
		Categories: []string{"sports"},
		RangeToken: news.RangeAll,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(resp.LowCoverage) != 1 {
		t.Fatalf("low coverage flags = %v, want one", resp.LowCoverage)
	}
	flag := resp.LowCoverage[0]
	if flag.Country != "us" || flag.Category != "sports" || flag.Count != 3 {
		t.Fatalf("flag = %+v", flag)
	}
}

func TestCoordinator_NoURLDuplicatesAcrossPairs(t *testing.T) {
	t.Parallel()

	shared := news.Article{
		Title:       "Washington and London agree championship rematch of American and British teams",
		Description: "A transatlantic final is set.",
		URL:         "https://example.com/shared",
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	}
	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		return []news.Article{shared}, nil
	}}
	coord, _ := newTestCoordinator(t, AdapterSet{Primary: []provider.Adapter{primary}}, PairConfig{MinArticles: 1})

	resp, err := coord.Handle(context.Background(), news.Query{
		Countries:  []string{"us", "gb"},
		Categories: []string{"sports"},
		RangeToken: news.RangeAll,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	seen := make(map[string]int)
	for _, a := range resp.Articles {
		seen[a.URL]++
	}
	if seen[shared.URL] != 1 {
		t.Fatalf("shared URL appeared %d times, want 1", seen[shared.URL])
	}
}

func TestCoordinator_EnforcesOriginalWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(now)
	defer globaltime.ResetTime()

	fresh := news.Article{
		Title:       "French president outlines election reform in Paris parliament session",
		Description: "A packed agenda for lawmakers.",
		URL:         "https://example.com/fresh",
		PublishedAt: now.Add(-2 * time.Hour),
	}
	stale := news.Article{
		Title:       "Macron ally resigns from coalition government in France",
		Description: "Fallout continues.",
		URL:         "https://example.com/stale",
		PublishedAt: now.Add(-80 * time.Hour),
	}
	undated := news.Article{
		Title:       "Paris referendum campaign gathers pace across France",
		Description: "Organizers claim momentum.",
		URL:         "https://example.com/undated",
	}
	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		return []news.Article{fresh, stale, undated}, nil
	}}
	coord, _ := newTestCoordinator(t, AdapterSet{Primary: []provider.Adapter{primary}}, PairConfig{MinArticles: 1})

	resp, err := coord.Handle(context.Background(), news.Query{
		Countries:  []string{"fr"},
		Categories: []string{"politics"},
		RangeToken: news.RangeDay,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	urls := make(map[string]bool)
	for _, a := range resp.Articles {
		urls[a.URL] = true
	}
	if urls[stale.URL] {
		t.Error("article outside the original 24h window must be dropped")
	}
	if !urls[fresh.URL] {
		t.Error("fresh article must survive")
	}
	if !urls[undated.URL] {
		t.Error("undated article must be kept")
	}
	if resp.Total != len(resp.Articles) {
		t.Errorf("total = %d, articles = %d", resp.Total, len(resp.Articles))
	}
}

type stubSummarizer struct {
	mu    sync.Mutex
	calls int
}

func (s *stubSummarizer) Name() string { return "stub" }

func (s *stubSummarizer) Summarize(context.Context, news.Article) ([]string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return []string{"the gist"}, nil
}

func TestCoordinator_SummarizesOnlyTopRanked(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		{
			Title:       "French president outlines election reform in Paris parliament session",
			Description: "A packed agenda for lawmakers.",
			URL:         "https://example.com/a",
			PublishedAt: time.Now().UTC().Add(-time.Hour),
		},
		{
			Title:       "Macron ally resigns from coalition government in France",
			Description: "Fallout continues.",
			URL:         "https://example.com/b",
			PublishedAt: time.Now().UTC().Add(-2 * time.Hour),
		},
		{
			Title:       "Paris referendum campaign gathers pace across France",
			Description: "Organizers claim momentum.",
			URL:         "https://example.com/c",
			PublishedAt: time.Now().UTC().Add(-3 * time.Hour),
		},
	}
	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		return articles, nil
	}}
	coord, _ := newTestCoordinator(t, AdapterSet{Primary: []provider.Adapter{primary}}, PairConfig{MinArticles: 1})
	summarizer := &stubSummarizer{}
	coord.WithSummarizer(summarizer, 1)

	resp, err := coord.Handle(context.Background(), news.Query{
		Countries:  []string{"fr"},
		Categories: []string{"politics"},
		RangeToken: news.RangeAll,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(resp.Articles) < 2 {
		t.Fatalf("expected multiple ranked articles, got %d", len(resp.Articles))
	}
	if summarizer.calls != 1 {
		t.Fatalf("summarizer calls = %d, want 1", summarizer.calls)
	}
	if len(resp.Articles[0].Summary) == 0 {
		t.Error("top article must carry a summary")
	}
	for _, a := range resp.Articles[1:] {
		if len(a.Summary) != 0 {
			t.Errorf("article %s beyond topN must not be summarized", a.URL)
		}
	}
}

func TestCoordinator_CacheHitFlag(t *testing.T) {
	t.Parallel()

	primary := &fakeAdapter{name: "primary", fetch: func(provider.Options) ([]news.Article, error) {
		return batch(usSportsArticle, 20), nil
	}}
	coord, _ := newTestCoordinator(t, AdapterSet{Primary: []provider.Adapter{primary}}, PairConfig{})

	q := news.Query{Countries: []string{"us"}, Categories: []string{"sports"}, RangeToken: news.RangeAll}
	first, err := coord.Handle(context.Background(), q)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first request must not be a cache hit")
	}
	second, err := coord.Handle(context.Background(), q)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second request must be served from cache")
	}
}
