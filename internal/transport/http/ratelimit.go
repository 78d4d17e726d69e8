package http

import (
	"sync"
	"time"
)

// rateLimiter caps the number of inbound messages per connection per minute.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	counter int
	reset   *time.Ticker
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return &rateLimiter{limit: 0}
	}
	return &rateLimiter{
		limit: limit,
		reset: time.NewTicker(time.Minute),
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	return r.counter <= r.limit
}

func (r *rateLimiter) startReset(stop <-chan struct{}) {
	if r == nil || r.reset == nil {
		return
	}
	go func() {
		for {
			select {
			case <-r.reset.C:
				r.mu.Lock()
				r.counter = 0
				r.mu.Unlock()
			case <-stop:
				r.reset.Stop()
				return
			}
		}
	}()
}
