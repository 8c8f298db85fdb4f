package provider

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/newsdesk/internal/news"
)

//go:embed newsapi_response.schema.json
var newsAPISchemaRaw string

var newsAPISchema = jsonschema.MustCompileString("newsapi_response.schema.json", newsAPISchemaRaw)

const newsAPIMaxBody = 4 << 20

// NewsAPI is the primary headline adapter. Responses are validated against an
// embedded schema before mapping so malformed upstream payloads surface as
// errors instead of silently empty batches.
type NewsAPI struct {
	apiKey         string
	baseURL        string
	client         *http.Client
	trustedDomains []string
	logger         zerolog.Logger
}

func NewNewsAPI(apiKey, baseURL string, timeout time.Duration, trustedDomains []string, logger zerolog.Logger) *NewsAPI {
	return &NewsAPI{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         &http.Client{Timeout: timeout},
		trustedDomains: trustedDomains,
		logger:         logger.With().Str("adapter", "newsapi").Logger(),
	}
}

func (n *NewsAPI) Name() string { return "newsapi" }

func (n *NewsAPI) Fetch(ctx context.Context, country, category string, opts Options) ([]news.Article, error) {
	q := url.Values{}
	q.Set("country", country)
	if category != "" && category != "general" {
		q.Set("category", category)
	}
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if opts.SortByPopularity {
		q.Set("sortBy", "popularity")
	}
	if opts.FromDate != nil {
		q.Set("from", opts.FromDate.UTC().Format(time.RFC3339))
	}
	if opts.TrustedOnly && len(n.trustedDomains) > 0 {
		q.Set("domains", strings.Join(n.trustedDomains, ","))
	}
	q.Set("pageSize", "100")
	q.Set("apiKey", n.apiKey)

	reqURL := n.baseURL + "/top-headlines?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: build request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, newsAPIMaxBody))
	if err != nil {
		return nil, fmt.Errorf("newsapi: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("newsapi: decode: %w", err)
	}
	if err := newsAPISchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("newsapi: payload validation: %w", err)
	}

	var payload newsAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("newsapi: decode: %w", err)
	}
	if payload.Status != "ok" {
		return nil, fmt.Errorf("newsapi: upstream status %q", payload.Status)
	}

	articles := make([]news.Article, 0, len(payload.Articles))
	for _, raw := range payload.Articles {
		a, ok := raw.toArticle(country, category)
		if !ok {
			continue
		}
		articles = append(articles, a)
	}
	n.logger.Debug().Str("country", country).Str("category", category).
		Int("mapped", len(articles)).Int("raw", len(payload.Articles)).Msg("fetch complete")
	return articles, nil
}

type newsAPIResponse struct {
	Status       string          `json:"status"`
	TotalResults int             `json:"totalResults"`
	Articles     []newsAPIRecord `json:"articles"`
}

type newsAPIRecord struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func (r newsAPIRecord) toArticle(country, category string) (news.Article, bool) {
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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
