package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// acquirePollInterval is how often wait rechecks the bucket while blocked.
const acquirePollInterval = 100 * time.Millisecond

// rateLimiter paces provider requests with a token bucket sized from
// Config.RateLimit. Every classification and extraction call burns one
// token, so a large statement upload drains the initial burst and then
// proceeds at the refill rate.
type rateLimiter struct {
	stopCh   chan struct{}
	tokens   int
	capacity int
	mu       sync.Mutex
}

// newRateLimiter sizes the bucket to the given requests per minute; zero or
// negative falls back to 60, a floor every supported provider tier allows.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	rl := &rateLimiter{
		tokens:   requestsPerMinute,
		capacity: requestsPerMinute,
		stopCh:   make(chan struct{}),
	}

	go rl.refill(time.Minute / time.Duration(requestsPerMinute))

	return rl
}

// wait blocks until a token is available or the context is done. An upload
// in progress surfaces a context failure here as a safe-default
// classification, never as a dropped unit.
func (rl *rateLimiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(acquirePollInterval)
	defer ticker.Stop()

	for {
		if rl.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limit wait interrupted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// tryAcquire takes a token if one is available, without blocking.
func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *rateLimiter) refill(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			if rl.tokens < rl.capacity {
				rl.tokens++
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the refill goroutine.
func (rl *rateLimiter) Close() {
	close(rl.stopCh)
}
