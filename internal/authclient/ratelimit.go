package authclient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter is a token bucket that paces outbound login requests. It only
// delays requests; it never rejects them.
type RateLimiter struct {
	requestsPerWindow int
	windowDuration    time.Duration
	burst             int

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	now        func() time.Time
}

// LimiterStats is a point-in-time view of the limiter
type LimiterStats struct {
	Tokens            int
	Burst             int
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// NewRateLimiter creates a limiter allowing requestsPerWindow requests per
// windowDuration with bursts of up to burst requests. It returns nil when
// requestsPerWindow is not positive, which disables limiting.
func NewRateLimiter(requestsPerWindow int, windowDuration time.Duration, burst int) *RateLimiter {
	if requestsPerWindow <= 0 || windowDuration <= 0 {
		return nil
	}

	if burst <= 0 {
		burst = requestsPerWindow / 10
		if burst < 1 {
			burst = 1
		}
	}

	return &RateLimiter{
		requestsPerWindow: requestsPerWindow,
		windowDuration:    windowDuration,
		burst:             burst,
		tokens:            burst,
		lastRefill:        time.Now(),
		now:               time.Now,
	}
}

// Wait blocks until a token is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := rl.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow takes a token if one is available without blocking
func (rl *RateLimiter) Allow() bool {
	_, ok := rl.reserve()
	return ok
}

// reserve takes a token, or reports how long until the next one
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens > 0 {
		rl.tokens--
		return 0, true
	}

	perToken := rl.windowDuration / time.Duration(rl.requestsPerWindow)
	wait := perToken - rl.now().Sub(rl.lastRefill)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait, false
}

func (rl *RateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill)

	add := int(elapsed.Seconds() / rl.windowDuration.Seconds() * float64(rl.requestsPerWindow))
	if add <= 0 {
		return
	}

	rl.tokens += add
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

// Stats returns the current limiter state
func (rl *RateLimiter) Stats() LimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	return LimiterStats{
		Tokens:            rl.tokens,
		Burst:             rl.burst,
		RequestsPerWindow: rl.requestsPerWindow,
		WindowDuration:    rl.windowDuration,
	}
}

func (rl *RateLimiter) String() string {
	s := rl.Stats()
	return fmt.Sprintf("RateLimiter(%d/%d tokens, %d req/%s)",
		s.Tokens, s.Burst, s.RequestsPerWindow, s.WindowDuration)
}
