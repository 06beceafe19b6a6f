package mt5

import (
	"context"
	"sync"
	"time"
)

// rateLimiter enforces a client-side requests-per-second ceiling with a
// sliding one-second window. Wait blocks until a slot opens or ctx is done.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	sent   []time.Time
}

func newRateLimiter(perSecond int) *rateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &rateLimiter{limit: perSecond, window: time.Second}
}

func (r *rateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-r.window)
		kept := r.sent[:0]
		for _, t := range r.sent {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		r.sent = kept

		if len(r.sent) < r.limit {
			r.sent = append(r.sent, now)
			r.mu.Unlock()
			return nil
		}
		wait := r.sent[0].Add(r.window).Sub(now)
		r.mu.Unlock()

		if wait <= 0 {
			continue
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
