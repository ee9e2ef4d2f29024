// Package ratelimit implements fixed-window request limiting keyed by
// (client identifier, route). Windows do not overlap: the first request at
// or past the window boundary starts a fresh window with count 1.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Limit is one route's budget: at most MaxRequests per Window.
type Limit struct {
	Window      time.Duration
	MaxRequests int
}

// Result describes the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns whole seconds until the window resets, rounded up.
// Meaningful only on a rejected result.
func (r Result) RetryAfter(now time.Time) int {
	secs := math.Ceil(r.ResetAt.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}

// Store tracks request counts per (identifier, route) window. Implementations
// must count the request they are asked about, i.e. Take both checks and
// consumes.
type Store interface {
	Take(ctx context.Context, identifier, route string, lim Limit) (Result, error)
}

type window struct {
	start time.Time
	count int
}

// MemoryStore is the in-process Store. State does not survive restarts,
// which is acceptable for a fairness-only limiter.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	done    chan struct{}
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		windows: make(map[string]*window),
		done:    make(chan struct{}),
	}
	go s.cleanup()
	return s
}

func (s *MemoryStore) Take(_ context.Context, identifier, route string, lim Limit) (Result, error) {
	key := identifier + "|" + route
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= lim.Window {
		// Boundary is inclusive of reset: an arrival exactly at
		// start+window begins a new window.
		w = &window{start: now, count: 1}
		s.windows[key] = w
		return Result{
			Allowed:   true,
			Limit:     lim.MaxRequests,
			Remaining: lim.MaxRequests - 1,
			ResetAt:   now.Add(lim.Window),
		}, nil
	}

	w.count++
	remaining := lim.MaxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   w.count <= lim.MaxRequests,
		Limit:     lim.MaxRequests,
		Remaining: remaining,
		ResetAt:   w.start.Add(lim.Window),
	}, nil
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, w := range s.windows {
				if now.Sub(w.start) > 30*time.Minute {
					delete(s.windows, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) Stop() {
	close(s.done)
}
