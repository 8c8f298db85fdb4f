package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/newsdesk/internal/cli"
	"horse.fit/newsdesk/internal/config"
	"horse.fit/newsdesk/internal/logging"
	"horse.fit/newsdesk/internal/news"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	countries := fs.String("countries", "us", "Comma-separated country codes")
	categories := fs.String("categories", "general", "Comma-separated category codes")
	search := fs.String("q", "", "Free-text search terms")
	rangeToken := fs.String("range", "24h", "Date range: 24h|3d|week|month|all")
	sources := fs.String("sources", "", "Comma-separated source domain restriction")
	lang := fs.String("lang", "all", "Language mode: en-only|all")
	popular := fs.Bool("popular", false, "Rank by popularity")
	timeout := fs.Duration("timeout", 60*time.Second, "Overall request timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	q := news.Query{
		Countries:   splitList(*countries),
		Categories:  splitList(*categories),
		SearchTerms: strings.Fields(*search),
		RangeToken:  *rangeToken,
		Sources:     splitList(*sources),
		LangMode:    *lang,
		Popularity:  *popular,
	}

	resp, err := p.coordinator.Handle(ctx, q)
	if err != nil {
		logger.Error().Err(err).Msg("fetch failed")
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		return 1
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode response: %v\n", err)
		return 1
	}
	return 0
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
