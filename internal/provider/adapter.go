// Package provider holds the upstream adapters. Each adapter maps its native
// response into the canonical Article shape at the boundary and reports
// transport or API-level trouble as an error; the orchestrator treats any
// adapter error as "unavailable, yield empty".
package provider

import (
	"context"
	"time"

	"horse.fit/newsdesk/internal/news"
)

// Options are the per-fetch knobs every adapter understands. Adapters ignore
// options their upstream cannot express.
type Options struct {
	// FromDate bounds the window; nil means provider default.
	FromDate *time.Time
	// SortByPopularity asks the upstream for popularity ordering.
	SortByPopularity bool
	// Language restricts results to a two-letter code; empty means all.
	Language string
	// TrustedOnly restricts to the adapter's curated trusted domains when it
	// supports a domain restriction.
	TrustedOnly bool
}

// Adapter is one upstream news source. Fetch must return a non-nil slice on
// success, never nil in place of an empty result.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, country, category string, opts Options) ([]news.Article, error)
}
