package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/news"
)

// Entry is one cached result set. No schema versioning is carried in the
// record itself; shape changes are paired with a key-prefix bump instead.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Articles  []news.Article `json:"articles"`
}

// Remote is an optional shared store behind the local tier. Implementations
// may fail at any time; the Store treats every remote error as a miss.
type Remote interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

// Store is a two-tier result-set cache: an always-available in-process map
// plus an optional remote tier. Reads apply a key-dependent TTL, doubled
// under quota pressure; writes beyond MaxEntries evict oldest-first.
type Store struct {
	mu         sync.Mutex
	entries    map[string]Entry
	maxEntries int
	remote     Remote
	pressured  func() bool
	logger     zerolog.Logger
}

func NewStore(maxEntries int, remote Remote, pressured func() bool, logger zerolog.Logger) *Store {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if pressured == nil {
		pressured = func() bool { return false }
	}
	return &Store{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
		remote:     remote,
		pressured:  pressured,
		logger:     logger,
	}
}

// Get returns a still-valid entry for the key. A remote hit repopulates the
// local tier; remote failures degrade silently to a miss.
func (s *Store) Get(ctx context.Context, key string) (Entry, bool) {
	now := globaltime.UTC()

	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && s.isValid(key, entry, now) {
		s.mu.Unlock()
		return entry, true
	}
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if s.remote == nil {
		return Entry{}, false
	}

	remoteEntry, found, err := s.remote.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("remote cache read failed, treating as miss")
		return Entry{}, false
	}
	if !found || !s.isValid(key, remoteEntry, now) {
		return Entry{}, false
	}

	s.mu.Lock()
	s.entries[key] = remoteEntry
	s.evictLocked()
	s.mu.Unlock()
	return remoteEntry, true
}

// Set writes the entry with the TTL implied by the key shape.
func (s *Store) Set(ctx context.Context, key string, entry Entry) {
	s.SetWithTTL(ctx, key, entry, s.effectiveTTL(key))
}

// SetWithTTL writes the entry with an explicit lifetime. The local write
// always succeeds; a remote write failure is logged and swallowed.
func (s *Store) SetWithTTL(ctx context.Context, key string, entry Entry, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = entry
	s.evictLocked()
	s.mu.Unlock()

	if s.remote == nil {
		return
	}
	if err := s.remote.Set(ctx, key, entry, ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("remote cache write failed")
	}
}

// Len reports the current local entry count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) effectiveTTL(key string) time.Duration {
	ttl := TTLFor(key)
	if s.pressured() {
		ttl *= 2
	}
	return ttl
}

// isValid applies the TTL boundary rule: an entry whose age equals or exceeds
// the applicable TTL is expired.
func (s *Store) isValid(key string, entry Entry, now time.Time) bool {
	return now.Sub(entry.Timestamp) < s.effectiveTTL(key)
}

// evictLocked removes oldest-timestamp entries until the store is back under
// its cap. O(n log n), acceptable since eviction is rare relative to reads.
func (s *Store) evictLocked() {
	if len(s.entries) <= s.maxEntries {
		return
	}

	type aged struct {
		key string
		ts  time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for key, entry := range s.entries {
		all = append(all, aged{key: key, ts: entry.Timestamp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })

	for _, candidate := range all {
		if len(s.entries) <= s.maxEntries {
			break
		}
		delete(s.entries, candidate.key)
	}
}
