package extract

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate throttles model calls across all workers: a token bucket spaces the
// requests and a semaphore keeps at most one in flight.
type Gate struct {
	limiter *rate.Limiter
	slot    chan struct{}
}

// NewGate allows requestsPerMinute calls per minute. Zero or less disables
// the rate limit but keeps the single in-flight slot.
func NewGate(requestsPerMinute int) *Gate {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &Gate{
		limiter: rate.NewLimiter(limit, 1),
		slot:    make(chan struct{}, 1),
	}
}

// Acquire blocks until a call may start. The returned func releases the slot.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := g.limiter.Wait(ctx); err != nil {
		<-g.slot
		return nil, err
	}
	return func() { <-g.slot }, nil
}
