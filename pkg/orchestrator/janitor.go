package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nstogner/butler/pkg/browser"
)

// Sweep closes the tabs of expired pending workflows and purges expired
// cache entries.
func (o *Orchestrator) Sweep(ctx context.Context) {
	for _, rec := range o.pending.sweep() {
		slog.Info("Pending order expired", "platform", rec.Platform, "handle", rec.TabHandle)
		o.closeTab(browser.Handle(rec.TabHandle))
	}
	if o.cache == nil {
		return
	}
	n, err := o.cache.PurgeExpired(ctx)
	if err != nil {
		slog.Warn("Failed to purge listing cache", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("Purged listing cache", "rows", n)
	}
}

// StartJanitor runs Sweep on schedule (standard cron syntax or a descriptor
// such as "@every 1m"). The returned function stops it and waits for a
// running sweep to finish.
func (o *Orchestrator) StartJanitor(schedule string) (stop func(), err error) {
	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		o.Sweep(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	c.Start()
	slog.Info("Janitor started", "schedule", schedule)
	return func() { <-c.Stop().Done() }, nil
}
