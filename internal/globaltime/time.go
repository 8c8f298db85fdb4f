// Package globaltime is the single clock for everything time-derived in the
// pipeline: cache key slots, quota day rollover, fetch window cutoffs and
// freshness scoring. Routing every read through here lets tests pin the
// clock so slot and window boundaries land where a test expects them.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

// UTC is the reading cache keys and quota windows are derived from, so
// rollovers do not depend on the host timezone.
func UTC() time.Time {
	return Now().UTC()
}

// SetMockTime pins the clock. Tests using it must not run in parallel and
// must restore with ResetTime.
func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
