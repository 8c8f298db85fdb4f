package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/news"
)

// gnewsTopicByCategory maps canonical categories onto the secondary
// provider's topic vocabulary. Unmapped categories fall back to a search on
// the category name.
var gnewsTopicByCategory = map[string]string{
	"general":       "breaking-news",
	"business":      "business",
	"technology":    "technology",
	"sports":        "sports",
	"science":       "science",
	"health":        "health",
	"entertainment": "entertainment",
	"politics":      "nation",
}

// GNews is the secondary headline adapter, used for backfill on
// under-covered countries and during escalation.
type GNews struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewGNews(apiKey, baseURL string, timeout time.Duration, logger zerolog.Logger) *GNews {
	return &GNews{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("adapter", "gnews").Logger(),
	}
}

func (g *GNews) Name() string { return "gnews" }

func (g *GNews) Fetch(ctx context.Context, country, category string, opts Options) ([]news.Article, error) {
	q := url.Values{}
	q.Set("country", country)
	if topic, ok := gnewsTopicByCategory[category]; ok {
		q.Set("topic", topic)
	} else if category != "" {
		q.Set("q", category)
	}
	if opts.Language != "" {
		q.Set("lang", opts.Language)
	}
	if opts.FromDate != nil {
		q.Set("from", opts.FromDate.UTC().Format(time.RFC3339))
	}
	q.Set("max", "100")
	q.Set("token", g.apiKey)

	reqURL := g.baseURL + "/top-headlines?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gnews: build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gnews: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, newsAPIMaxBody))
	if err != nil {
		return nil, fmt.Errorf("gnews: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gnews: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var payload gnewsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("gnews: decode: %w", err)
	}

	articles := make([]news.Article, 0, len(payload.Articles))
	for _, raw := range payload.Articles {
		a, ok := raw.toArticle(country, category)
		if !ok {
			continue
		}
		articles = append(articles, a)
	}
	g.logger.Debug().Str("country", country).Str("category", category).
		Int("mapped", len(articles)).Int("raw", len(payload.Articles)).Msg("fetch complete")
	return articles, nil
}

type gnewsResponse struct {
	TotalArticles int           `json:"totalArticles"`
	Articles      []gnewsRecord `json:"articles"`
}

type gnewsRecord struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

func (r gnewsRecord) toArticle(country, category string) (news.Article, bool) {
	if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.URL) == "" {
		return news.Article{}, false
	}
	canonical, host := news.CanonicalURL(r.URL)
	if canonical == "" {
		return news.Article{}, false
	}
	a := news.Article{
		Title:        strings.TrimSpace(r.Title),
		Description:  strings.TrimSpace(r.Description),
		Content:      strings.TrimSpace(r.Content),
		URL:          canonical,
		SourceDomain: strings.TrimPrefix(host, "www."),
		Country:      country,
		Category:     category,
	}
	if r.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, r.PublishedAt); err == nil {
			a.PublishedAt = ts.UTC()
		}
	}
	return a, true
}
