// Package orchestrator exposes the high-level shopping intents (search,
// compare, order, reviews, menu) on top of the platform adapters.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/metrics"
	"github.com/nstogner/butler/pkg/platform"
	"github.com/nstogner/butler/pkg/settings"
	"github.com/nstogner/butler/pkg/store"
)

// Options configure an Orchestrator. Cache and Orders are optional.
type Options struct {
	Cache      store.ListingCache
	Orders     store.OrderLog
	CacheTTL   time.Duration
	PendingTTL time.Duration
	Now        func() time.Time
}

// Orchestrator owns one adapter per platform and sequences them into
// workflows.
type Orchestrator struct {
	registry *platform.Registry
	host     browser.Host
	settings settings.Source

	cache    store.ListingCache
	orders   store.OrderLog
	cacheTTL time.Duration
	now      func() time.Time

	pending *pendingRegistry
}

// New creates an Orchestrator.
func New(registry *platform.Registry, host browser.Host, src settings.Source, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 15 * time.Minute
	}
	return &Orchestrator{
		registry: registry,
		host:     host,
		settings: src,
		cache:    opts.Cache,
		orders:   opts.Orders,
		cacheTTL: opts.CacheTTL,
		now:      opts.Now,
		pending:  newPendingRegistry(opts.PendingTTL, opts.Now),
	}
}

// Settings returns the current settings snapshot.
func (o *Orchestrator) Settings(ctx context.Context) (domain.Settings, error) {
	snap, err := o.settings.Snapshot(ctx)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	return snap, nil
}

// DetectPlatform maps a page URL to a registered platform.
func (o *Orchestrator) DetectPlatform(rawURL string) (domain.PlatformID, bool) {
	return o.registry.Detect(rawURL)
}

// targets returns the platforms an operation fans out to: the requested ones
// in request order, else the enabled ones, else everything registered.
func (o *Orchestrator) targets(snap domain.Settings, requested []domain.PlatformID) []domain.PlatformID {
	var ids []domain.PlatformID
	switch {
	case len(requested) > 0:
		ids = requested
	case len(snap.EnabledPlatforms) > 0:
		ids = snap.EnabledPlatforms
	default:
		ids = o.registry.IDs()
	}
	var out []domain.PlatformID
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// PlaceOrder runs the order workflow on req.Platform. Workflow failures are
// reported in the outcome; the error is only set when no adapter serves the
// platform.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderOutcome, error) {
	a, err := o.registry.Get(req.Platform)
	if err != nil {
		return domain.OrderOutcome{}, err
	}

	slog.Info("Placing order", "platform", req.Platform, "restaurant", req.Restaurant, "items", len(req.Items))
	out := a.PlaceOrder(ctx, req)
	metrics.RecordOrderOutcome(string(req.Platform), string(out.Status))

	if out.Status == domain.StatusManualRequired && out.TabHandle != "" {
		rec := o.pending.add(browser.Handle(out.TabHandle), req)
		slog.Info("Order parked for manual selection", "handle", out.TabHandle, "expires", rec.ExpiresAt)
	}
	o.recordOrder(ctx, req, out, false)
	return out, nil
}

// Resume continues the parked workflow on tab h at the checkout step.
func (o *Orchestrator) Resume(ctx context.Context, h browser.Handle) (domain.OrderOutcome, error) {
	rec, err := o.pending.take(h)
	if err != nil {
		if errors.Is(err, domain.ErrResumeExpired) {
			o.closeTab(h)
		}
		return domain.OrderOutcome{}, err
	}
	return o.resume(ctx, rec)
}

// ResumeLatest resumes the most recently parked workflow.
func (o *Orchestrator) ResumeLatest(ctx context.Context) (domain.OrderOutcome, error) {
	rec, err := o.pending.takeLatest()
	if err != nil {
		if errors.Is(err, domain.ErrResumeExpired) {
			o.closeTab(browser.Handle(rec.TabHandle))
		}
		return domain.OrderOutcome{}, err
	}
	return o.resume(ctx, rec)
}

func (o *Orchestrator) resume(ctx context.Context, rec domain.PendingOrder) (domain.OrderOutcome, error) {
	a, err := o.registry.Get(rec.Platform)
	if err != nil {
		return domain.OrderOutcome{}, err
	}
	slog.Info("Resuming order", "platform", rec.Platform, "handle", rec.TabHandle)
	out := a.ResumeCheckout(ctx, browser.Handle(rec.TabHandle), rec.Request)
	metrics.RecordOrderOutcome(string(rec.Platform), string(out.Status))
	o.recordOrder(ctx, rec.Request, out, true)
	return out, nil
}

// Pending lists parked workflows, newest first.
func (o *Orchestrator) Pending() []domain.PendingOrder {
	return o.pending.list()
}

// RecentOrders returns the order log, newest first. It is empty when no log
// is configured.
func (o *Orchestrator) RecentOrders(ctx context.Context, limit int) ([]store.OrderRecord, error) {
	if o.orders == nil {
		return []store.OrderRecord{}, nil
	}
	return o.orders.RecentOrders(ctx, limit)
}

// Screenshot captures the visible part of tab h.
func (o *Orchestrator) Screenshot(ctx context.Context, h browser.Handle) ([]byte, error) {
	img, err := o.host.CaptureVisible(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("capturing %s: %w", h, err)
	}
	return img, nil
}

func (o *Orchestrator) recordOrder(ctx context.Context, req domain.OrderRequest, out domain.OrderOutcome, resumed bool) {
	if o.orders == nil {
		return
	}
	rec := &store.OrderRecord{Request: req, Outcome: out, Resumed: resumed}
	if err := o.orders.RecordOrder(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("Failed to record order", "platform", req.Platform, "error", err)
	}
}

func (o *Orchestrator) closeTab(h browser.Handle) {
	if h == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.host.Close(ctx, h); err != nil {
		slog.Debug("Failed to close tab", "handle", h, "error", err)
	}
}
