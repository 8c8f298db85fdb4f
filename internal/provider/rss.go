package provider

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"horse.fit/newsdesk/internal/langdetect"
	"horse.fit/newsdesk/internal/news"
	"horse.fit/newsdesk/internal/reader"
)

const (
	// rssEnrichLimit caps readability fetches per feed pass so a slow origin
	// cannot stall the whole pipeline.
	rssEnrichLimit = 5
	// rssEnrichMinContent is the body length below which an item is worth a
	// full-page extraction.
	rssEnrichMinContent = 200
)

// FeedSet maps a country code to its curated feed URLs.
type FeedSet map[string][]string

// LoadFeedSet reads a YAML document of the form `country: [url, ...]`.
func LoadFeedSet(path string) (FeedSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var feeds FeedSet
	if err := yaml.Unmarshal(raw, &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// RSS pulls curated per-country feeds. Thin feed items are enriched with
// extracted page text; enrichment failures leave the item thin rather than
// dropping it.
type RSS struct {
	feeds      FeedSet
	parser     *gofeed.Parser
	httpClient *http.Client
	enrich     bool
	logger     zerolog.Logger
}

func NewRSS(feeds FeedSet, timeout time.Duration, enrich bool, logger zerolog.Logger) *RSS {
	parser := gofeed.NewParser()
	parser.UserAgent = "newsdesk-reader/1.0"
	return &RSS{
		feeds:      feeds,
		parser:     parser,
		httpClient: &http.Client{Timeout: timeout},
		enrich:     enrich,
		logger:     logger.With().Str("adapter", "rss").Logger(),
	}
}

func (r *RSS) Name() string { return "rss" }

// Countries lists the countries this adapter has feeds for, sorted.
func (r *RSS) Countries() []string {
	out := make([]string, 0, len(r.feeds))
	for c := range r.feeds {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (r *RSS) Fetch(ctx context.Context, country, category string, opts Options) ([]news.Article, error) {
	articles := make([]news.Article, 0, 32)
	urls := r.feeds[country]
	for _, feedURL := range urls {
		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			// one dead feed must not sink the rest
			r.logger.Warn().Err(err).Str("feed", feedURL).Msg("feed parse failed")
			continue
		}
		for _, item := range feed.Items {
			a, ok := r.itemToArticle(item, country, category, opts)
			if !ok {
				continue
			}
			articles = append(articles, a)
		}
	}
	if r.enrich {
		r.enrichThin(ctx, articles)
	}
	r.logger.Debug().Str("country", country).Str("category", category).
		Int("feeds", len(urls)).Int("mapped", len(articles)).Msg("fetch complete")
	return articles, nil
}

func (r *RSS) itemToArticle(item *gofeed.Item, country, category string, opts Options) (news.Article, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" || strings.TrimSpace(item.Link) == "" {
		return news.Article{}, false
	}
	canonical, host := news.CanonicalURL(item.Link)
	if canonical == "" {
		return news.Article{}, false
	}

	desc := reader.CleanText(item.Description)
	content := reader.CleanText(item.Content)
	if opts.Language == "en" && !langdetect.IsEnglish(title+" "+desc) {
		return news.Article{}, false
	}

	a := news.Article{
		Title:        title,
		Description:  desc,
		Content:      content,
		URL:          canonical,
		SourceDomain: strings.TrimPrefix(host, "www."),
		Country:      country,
		Category:     category,
	}
	if item.PublishedParsed != nil {
		a.PublishedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		a.PublishedAt = item.UpdatedParsed.UTC()
	}
	if opts.FromDate != nil && a.HasPublishedAt() && a.PublishedAt.Before(*opts.FromDate) {
		return news.Article{}, false
	}
	return a, true
}

func (r *RSS) enrichThin(ctx context.Context, articles []news.Article) {
	enriched := 0
	for i := range articles {
		if enriched >= rssEnrichLimit {
			return
		}
		if len(articles[i].Content) >= rssEnrichMinContent {
			continue
		}
		text, err := reader.FetchText(ctx, articles[i].URL, reader.FetchOptions{HTTPClient: r.httpClient})
		if err != nil {
			r.logger.Debug().Err(err).Str("url", articles[i].URL).Msg("enrichment skipped")
			continue
		}
		articles[i].Content = text
		enriched++
	}
}
