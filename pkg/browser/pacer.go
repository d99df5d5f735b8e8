package browser

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out UI actions and waits for pages to settle. A nil Pacer or
// one built with zero delays never waits.
type Pacer struct {
	limiter *rate.Limiter
	settle  time.Duration
}

// NewPacer allows one action per actionDelay and sleeps settle after each
// Settle call.
func NewPacer(actionDelay, settle time.Duration) *Pacer {
	limit := rate.Inf
	if actionDelay > 0 {
		limit = rate.Every(actionDelay)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1), settle: settle}
}

// Act blocks until the next action may run.
func (p *Pacer) Act(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// Settle pauses for the settle delay so asynchronous page updates complete.
func (p *Pacer) Settle(ctx context.Context) error {
	if p == nil || p.settle <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
