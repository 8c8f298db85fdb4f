package orchestrate

import (
	"sync"

	"horse.fit/newsdesk/internal/news"
)

// Flight is one pending fetch shared by every concurrent caller of the same
// cache key. Followers block on Done and then read the settled result.
type Flight struct {
	done     chan struct{}
	articles []news.Article
	err      error
}

// Done is closed when the leader settles the flight.
func (f *Flight) Done() <-chan struct{} { return f.done }

// Result must only be called after Done is closed.
func (f *Flight) Result() ([]news.Article, error) { return f.articles, f.err }

// InFlightRegistry guarantees that only one fetch runs per cache key at a
// time. Entries are removed unconditionally when the fetch settles, success
// or failure, so the key becomes fetchable again.
type InFlightRegistry struct {
	mu      sync.Mutex
	flights map[string]*Flight
}

func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{flights: make(map[string]*Flight)}
}

// Join returns the flight for the key and whether the caller is the leader.
// The leader is the first caller for a key; it must settle the flight via
// Settle exactly once. Everyone else awaits the leader's result.
func (r *InFlightRegistry) Join(key string) (*Flight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.flights[key]; ok {
		return f, false
	}
	f := &Flight{done: make(chan struct{})}
	r.flights[key] = f
	return f, true
}

// Settle publishes the result, releases the key and wakes all followers.
func (r *InFlightRegistry) Settle(key string, f *Flight, articles []news.Article, err error) {
	r.mu.Lock()
	delete(r.flights, key)
	r.mu.Unlock()

	f.articles = articles
	f.err = err
	close(f.done)
}

// Pending reports whether a fetch is currently running for the key.
func (r *InFlightRegistry) Pending(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.flights[key]
	return ok
}
