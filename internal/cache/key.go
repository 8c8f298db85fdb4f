package cache

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"horse.fit/newsdesk/internal/news"
)

// keyPrefix doubles as the cache schema version. Bump it whenever the cached
// entry shape changes so stale records are never deserialized.
const keyPrefix = "v2"

const (
	keywordTTLHours = 0.5
	defaultTTLHours = 6.0
)

// ttlHoursByRange maps a request date-range token to the lifetime of its
// cached result set. Narrower windows expire sooner.
var ttlHoursByRange = map[string]float64{
	news.RangeDay:   2,
	news.Range3Days: 4,
	news.RangeWeek:  8,
	news.RangeMonth: 12,
	news.RangeAll:   12,
}

// KeyInput is everything that distinguishes one cacheable result set.
type KeyInput struct {
	Country     string
	Category    string
	RangeToken  string
	LangMode    string
	Sources     []string
	SearchTerms []string
}

// BuildKey composes the cache key:
//
//	{prefix}-{date}-{slot}-{country}-{category}-{range}-{srcFP}-{lang}[-kw{hash}]
//
// The time slot is floor(minuteOfDay / ttlMinutes) for this key's TTL, so slot
// boundaries align with TTL boundaries and a key naturally expires exactly at
// a TTL boundary instead of drifting.
func BuildKey(now time.Time, in KeyInput) string {
	ttlHours := ttlHoursForRange(in.RangeToken)
	if len(in.SearchTerms) > 0 {
		ttlHours = keywordTTLHours
	}

	utc := now.UTC()
	slotMinutes := int(ttlHours * 60)
	if slotMinutes < 1 {
		slotMinutes = 1
	}
	slot := (utc.Hour()*60 + utc.Minute()) / slotMinutes

	lang := "all"
	if in.LangMode == news.LangEnglishOnly {
		lang = "en"
	}

	key := fmt.Sprintf("%s-%s-%d-%s-%s-%s-%s-%s",
		keyPrefix,
		utc.Format("20060102"),
		slot,
		in.Country,
		in.Category,
		in.RangeToken,
		sourceFingerprint(in.Sources),
		lang,
	)
	if len(in.SearchTerms) > 0 {
		key += "-kw" + termFingerprint(in.SearchTerms)
	}
	return key
}

// TTLFor returns the effective lifetime for a key, before quota inflation.
func TTLFor(key string) time.Duration {
	return time.Duration(ttlHoursForKey(key) * float64(time.Hour))
}

func ttlHoursForKey(key string) float64 {
	parts := strings.Split(key, "-")
	if len(parts) < 8 {
		return defaultTTLHours
	}
	if strings.HasPrefix(parts[len(parts)-1], "kw") {
		return keywordTTLHours
	}
	return ttlHoursForRange(parts[5])
}

func ttlHoursForRange(token string) float64 {
	if hours, ok := ttlHoursByRange[token]; ok {
		return hours
	}
	return defaultTTLHours
}

// sourceFingerprint hashes a user-selected source restriction into a short
// stable token, or "all" when unrestricted.
func sourceFingerprint(sources []string) string {
	if len(sources) == 0 {
		return "all"
	}
	sorted := make([]string, 0, len(sources))
	for _, s := range sources {
		s = strings.TrimSpace(strings.ToLower(s))
		if s != "" {
			sorted = append(sorted, s)
		}
	}
	if len(sorted) == 0 {
		return "all"
	}
	sort.Strings(sorted)
	return fnvHex(strings.Join(sorted, ","))
}

func termFingerprint(terms []string) string {
	joined := strings.Join(terms, " ")
	return fnvHex(strings.TrimSpace(strings.ToLower(joined)))
}

func fnvHex(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
