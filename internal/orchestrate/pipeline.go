// Package orchestrate drives the fetch pipeline: per-pair cache lookups and
// coalescing, provider fan-out under the country policy, relevance filtering
// with escalation, and the top-level coordinator that merges and re-ranks
// across pairs.
package orchestrate

import (
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/provider"
	"horse.fit/newsdesk/internal/quota"
	"horse.fit/newsdesk/internal/relevance"
)

// PipelineContext owns the process-wide mutable pipeline state. It is built
// once at startup and passed by reference; there are no package-level
// singletons behind it.
type PipelineContext struct {
	Cache    *cache.Store
	InFlight *InFlightRegistry
	Quota    *quota.Tracker
	Tables   *relevance.Tables
	Logger   zerolog.Logger
}

// PairConfig tunes the per-pair fetch policy.
type PairConfig struct {
	// MinArticles is the undersupply threshold that triggers escalation.
	MinArticles int
	// MaxWindowHours caps date-window widening during backfill.
	MaxWindowHours int
	// AdapterTimeout bounds each upstream call.
	AdapterTimeout time.Duration
}

func (c PairConfig) withDefaults() PairConfig {
	if c.MinArticles <= 0 {
		c.MinArticles = 15
	}
	if c.MaxWindowHours <= 0 {
		c.MaxWindowHours = 720
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 8 * time.Second
	}
	return c
}

// AdapterSet splits the configured adapters by role: primaries run on every
// cache miss, secondaries are held back for under-covered countries and
// escalation to conserve their quota.
type AdapterSet struct {
	Primary   []provider.Adapter
	Secondary []provider.Adapter
}

func (s AdapterSet) empty() bool {
	return len(s.Primary) == 0 && len(s.Secondary) == 0
}
