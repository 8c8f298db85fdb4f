package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/config"
	"horse.fit/newsdesk/internal/httpapi"
	"horse.fit/newsdesk/internal/orchestrate"
	"horse.fit/newsdesk/internal/provider"
	"horse.fit/newsdesk/internal/quota"
	"horse.fit/newsdesk/internal/rank"
	"horse.fit/newsdesk/internal/relevance"
	"horse.fit/newsdesk/internal/summarize"
)

// pipeline bundles everything a command needs to answer queries.
type pipeline struct {
	coordinator *orchestrate.Coordinator
	checks      map[string]httpapi.HealthChecker
	logger      zerolog.Logger
}

func buildPipeline(cfg *config.Config, logger zerolog.Logger) (*pipeline, error) {
	tables, err := loadTables(cfg)
	if err != nil {
		return nil, fmt.Errorf("load keyword tables: %w", err)
	}

	tracker := quota.NewTracker(map[string]int{
		"newsapi": cfg.NewsAPIDailyLimit,
		"gnews":   cfg.GNewsDailyLimit,
	})

	checks := map[string]httpapi.HealthChecker{}
	var remote cache.Remote
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisRemote, err := cache.NewRedisRemote(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("configure redis cache: %w", err)
		}
		remote = redisRemote
		checks["redis"] = redisRemote.Ping
	}
	store := cache.NewStore(cfg.CacheMaxEntries, remote, tracker.Pressured, logger)

	adapters, err := buildAdapters(cfg, logger)
	if err != nil {
		return nil, err
	}
	if adapters.Primary == nil && adapters.Secondary == nil {
		return nil, orchestrate.ErrNoProviders
	}

	pc := &orchestrate.PipelineContext{
		Cache:    store,
		InFlight: orchestrate.NewInFlightRegistry(),
		Quota:    tracker,
		Tables:   tables,
		Logger:   logger,
	}
	pairs := orchestrate.NewPairOrchestrator(pc, adapters, orchestrate.PairConfig{
		MinArticles:    cfg.MinArticlesPerPair,
		MaxWindowHours: cfg.MaxWindowHours,
		AdapterTimeout: time.Duration(cfg.AdapterTimeoutSec) * time.Second,
	})
	engine := rank.NewEngine(tables, logger)
	coordinator := orchestrate.NewCoordinator(pairs, engine).
		WithSummarizer(summarize.NewChain(summarize.Extractive{}), 10)

	return &pipeline{
		coordinator: coordinator,
		checks:      checks,
		logger:      logger,
	}, nil
}

func loadTables(cfg *config.Config) (*relevance.Tables, error) {
	if path := strings.TrimSpace(cfg.KeywordTablesPath); path != "" {
		return relevance.Load(path)
	}
	return relevance.Default()
}

func buildAdapters(cfg *config.Config, logger zerolog.Logger) (orchestrate.AdapterSet, error) {
	timeout := time.Duration(cfg.AdapterTimeoutSec) * time.Second
	var set orchestrate.AdapterSet

	if strings.TrimSpace(cfg.NewsAPIKey) != "" {
		set.Primary = append(set.Primary,
			provider.NewNewsAPI(cfg.NewsAPIKey, cfg.NewsAPIBaseURL, timeout, trustedDomains(), logger))
	}
	if path := strings.TrimSpace(cfg.RSSFeedsPath); path != "" {
		feeds, err := provider.LoadFeedSet(path)
		if err != nil {
			return orchestrate.AdapterSet{}, fmt.Errorf("load rss feeds: %w", err)
		}
		set.Primary = append(set.Primary, provider.NewRSS(feeds, timeout, true, logger))
	}
	if strings.TrimSpace(cfg.GNewsAPIKey) != "" {
		set.Secondary = append(set.Secondary,
			provider.NewGNews(cfg.GNewsAPIKey, cfg.GNewsBaseURL, timeout, logger))
	}
	return set, nil
}

// trustedDomains is the restriction applied for countries where domestic
// coverage is plentiful enough to prefer established outlets.
func trustedDomains() []string {
	return []string{
		"reuters.com",
		"apnews.com",
		"bbc.co.uk",
		"bbc.com",
		"theguardian.com",
		"nytimes.com",
		"washingtonpost.com",
		"cnn.com",
		"npr.org",
		"aljazeera.com",
	}
}

// probeProviders builds health checks that issue a minimal upstream call per
// configured adapter.
func probeProviders(cfg *config.Config, logger zerolog.Logger) (map[string]httpapi.HealthChecker, error) {
	adapters, err := buildAdapters(cfg, logger)
	if err != nil {
		return nil, err
	}
	checks := map[string]httpapi.HealthChecker{}
	for _, adapter := range append(adapters.Primary, adapters.Secondary...) {
		checks[adapter.Name()] = func(ctx context.Context) error {
			_, err := adapter.Fetch(ctx, "us", "general", provider.Options{})
			return err
		}
	}
	return checks, nil
}
