package quota

import (
	"sync"

	"horse.fit/newsdesk/internal/globaltime"
)

// pressureRatio is the fraction of a provider's daily limit beyond which the
// cache starts widening TTLs to conserve the remaining calls.
const pressureRatio = 0.8

// Tracker counts upstream calls per provider per UTC day. It is process-local
// and best-effort: counts are lost on restart and never shared across
// instances, which is acceptable for at-most-once quota accounting.
type Tracker struct {
	mu     sync.Mutex
	limits map[string]int
	day    string
	counts map[string]int
}

func NewTracker(limits map[string]int) *Tracker {
	cloned := make(map[string]int, len(limits))
	for provider, limit := range limits {
		cloned[provider] = limit
	}
	return &Tracker{
		limits: cloned,
		counts: make(map[string]int),
	}
}

// Record counts one upstream call for the provider.
func (t *Tracker) Record(provider string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDayLocked()
	t.counts[provider]++
}

// Count returns today's call count for the provider.
func (t *Tracker) Count(provider string) int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDayLocked()
	return t.counts[provider]
}

// Pressured reports whether any provider with a configured limit has used 80%
// or more of today's budget.
func (t *Tracker) Pressured() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDayLocked()
	for provider, limit := range t.limits {
		if limit <= 0 {
			continue
		}
		if float64(t.counts[provider]) >= pressureRatio*float64(limit) {
			return true
		}
	}
	return false
}

func (t *Tracker) rollDayLocked() {
	today := globaltime.UTC().Format("2006-01-02")
	if t.day != today {
		t.day = today
		t.counts = make(map[string]int)
	}
}
