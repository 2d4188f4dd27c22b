package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterStore hands out one token bucket per key and forgets keys idle for longer than ttl.
// It is concurrency-safe.
type limiterStore struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	entries  map[string]*limiterEntry
	lastScan time.Time
	clock    func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(limit rate.Limit, burst int, ttl time.Duration) *limiterStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &limiterStore{
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
		entries: make(map[string]*limiterEntry),
		clock:   time.Now,
	}
}

// reserve consumes one token for key and reports whether it was available, together with
// the wait until the next token when it was not.
func (s *limiterStore) reserve(key string) (bool, time.Duration) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIdle(now)

	entry, ok := s.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = entry
	}
	entry.lastSeen = now

	if entry.limiter.AllowN(now, 1) {
		return true, 0
	}

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, s.ttl
	}
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

func (s *limiterStore) evictIdle(now time.Time) {
	if now.Sub(s.lastScan) < s.ttl {
		return
	}
	s.lastScan = now
	for key, entry := range s.entries {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.entries, key)
		}
	}
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
