package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/news"
)

func testStore(remote Remote, pressured func() bool) *Store {
	return NewStore(100, remote, pressured, zerolog.Nop())
}

func TestBuildKey_DeterministicWithinSlot(t *testing.T) {
	t.Parallel()

	in := KeyInput{
		Country:    "fr",
		Category:   "sports",
		RangeToken: news.RangeDay,
		LangMode:   news.LangAll,
		Sources:    []string{"lemonde.fr", "lequipe.fr"},
	}

	// 24h range has a 2h TTL, so 10:05 and 11:55 share the 10:00-12:00 slot.
	first := BuildKey(time.Date(2026, 9, 1, 10, 5, 0, 0, time.UTC), in)
	second := BuildKey(time.Date(2026, 9, 1, 11, 55, 0, 0, time.UTC), in)
	if first != second {
		t.Fatalf("keys in the same TTL slot must be byte-identical: %q vs %q", first, second)
	}

	next := BuildKey(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC), in)
	if next == first {
		t.Fatalf("key must roll over at the TTL boundary")
	}
}

func TestBuildKey_SourceOrderInsensitive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	a := BuildKey(now, KeyInput{Country: "us", Category: "tech", RangeToken: "24h", Sources: []string{"b.com", "a.com"}})
	b := BuildKey(now, KeyInput{Country: "us", Category: "tech", RangeToken: "24h", Sources: []string{"a.com", "b.com"}})
	if a != b {
		t.Fatalf("source fingerprint must not depend on order: %q vs %q", a, b)
	}
}

func TestBuildKey_KeywordSearchGetsShortTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	key := BuildKey(now, KeyInput{Country: "us", Category: "tech", RangeToken: "24h", SearchTerms: []string{"fusion", "energy"}})
	if got := TTLFor(key); got != 30*time.Minute {
		t.Fatalf("keyword key TTL = %v, want 30m", got)
	}
}

func TestTTLFor_RangeTable(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]time.Duration{
		"24h":   2 * time.Hour,
		"3d":    4 * time.Hour,
		"week":  8 * time.Hour,
		"month": 12 * time.Hour,
		"all":   12 * time.Hour,
	}
	for token, want := range cases {
		key := BuildKey(now, KeyInput{Country: "us", Category: "general", RangeToken: token})
		if got := TTLFor(key); got != want {
			t.Fatalf("TTLFor(range=%s) = %v, want %v", token, got, want)
		}
	}
}

func TestStore_TTLBoundary(t *testing.T) {
	defer globaltime.ResetTime()

	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(base)

	store := testStore(nil, nil)
	key := BuildKey(base, KeyInput{Country: "us", Category: "tech", RangeToken: "24h"})
	store.Set(context.Background(), key, Entry{Timestamp: base})

	// 24h range entries live for 2 hours. Just under: valid.
	globaltime.SetMockTime(base.Add(2*time.Hour - time.Second))
	if _, ok := store.Get(context.Background(), key); !ok {
		t.Fatalf("entry aged just under the TTL must be valid")
	}

	// Exactly at the TTL: expired.
	globaltime.SetMockTime(base.Add(2 * time.Hour))
	if _, ok := store.Get(context.Background(), key); ok {
		t.Fatalf("entry aged exactly the TTL must be expired")
	}
}

func TestStore_QuotaPressureDoublesTTL(t *testing.T) {
	defer globaltime.ResetTime()

	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(base)

	pressured := false
	store := testStore(nil, func() bool { return pressured })
	key := BuildKey(base, KeyInput{Country: "us", Category: "tech", RangeToken: "24h"})
	store.Set(context.Background(), key, Entry{Timestamp: base})

	globaltime.SetMockTime(base.Add(3 * time.Hour))
	if _, ok := store.Get(context.Background(), key); ok {
		t.Fatalf("entry should be expired without quota pressure")
	}

	store.Set(context.Background(), key, Entry{Timestamp: base})
	pressured = true
	if _, ok := store.Get(context.Background(), key); !ok {
		t.Fatalf("quota pressure must double the TTL and keep the entry valid")
	}
}

func TestStore_EvictsOldestFirst(t *testing.T) {
	defer globaltime.ResetTime()

	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(base)

	store := NewStore(2, nil, nil, zerolog.Nop())
	store.Set(context.Background(), "v2-old", Entry{Timestamp: base.Add(-3 * time.Minute)})
	store.Set(context.Background(), "v2-mid", Entry{Timestamp: base.Add(-2 * time.Minute)})
	store.Set(context.Background(), "v2-new", Entry{Timestamp: base.Add(-1 * time.Minute)})

	if got := store.Len(); got != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", got)
	}
	if _, ok := store.Get(context.Background(), "v2-old"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	if _, ok := store.Get(context.Background(), "v2-new"); !ok {
		t.Fatalf("newest entry should have survived eviction")
	}
}

type failingRemote struct{}

func (failingRemote) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errors.New("remote unreachable")
}

func (failingRemote) Set(context.Context, string, Entry, time.Duration) error {
	return errors.New("remote unreachable")
}

func TestStore_RemoteFailureIsSwallowed(t *testing.T) {
	defer globaltime.ResetTime()

	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(base)

	store := testStore(failingRemote{}, nil)
	key := BuildKey(base, KeyInput{Country: "us", Category: "tech", RangeToken: "24h"})

	// Set must not panic or fail; Get must fall back to the local tier.
	store.Set(context.Background(), key, Entry{Timestamp: base})
	if _, ok := store.Get(context.Background(), key); !ok {
		t.Fatalf("local tier must keep serving when the remote store is down")
	}
}

type memoryRemote struct {
	entries map[string]Entry
}

func (m *memoryRemote) Get(_ context.Context, key string) (Entry, bool, error) {
	entry, ok := m.entries[key]
	return entry, ok, nil
}

func (m *memoryRemote) Set(_ context.Context, key string, entry Entry, _ time.Duration) error {
	m.entries[key] = entry
	return nil
}

func TestStore_RemoteHitRepopulatesLocal(t *testing.T) {
	defer globaltime.ResetTime()

	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(base)

	key := BuildKey(base, KeyInput{Country: "de", Category: "business", RangeToken: "week"})
	remote := &memoryRemote{entries: map[string]Entry{
		key: {Timestamp: base, Articles: []news.Article{{URL: "https://example.de/1", Title: "hit"}}},
	}}

	store := testStore(remote, nil)
	entry, ok := store.Get(context.Background(), key)
	if !ok {
		t.Fatalf("expected remote hit")
	}
	if len(entry.Articles) != 1 || entry.Articles[0].Title != "hit" {
		t.Fatalf("unexpected remote entry: %+v", entry)
	}

	// Second read must be served locally even if the remote vanishes.
	remote.entries = map[string]Entry{}
	if _, ok := store.Get(context.Background(), key); !ok {
		t.Fatalf("expected local tier to have been repopulated")
	}
}
