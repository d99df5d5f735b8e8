// Package app wires the butler components from a Config. It is shared by the
// HTTP server and the terminal chat.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/browser/chromedp"
	"github.com/nstogner/butler/pkg/browser/docker"
	"github.com/nstogner/butler/pkg/config"
	"github.com/nstogner/butler/pkg/controller"
	"github.com/nstogner/butler/pkg/model/gemini"
	"github.com/nstogner/butler/pkg/orchestrator"
	"github.com/nstogner/butler/pkg/platform"
	"github.com/nstogner/butler/pkg/platform/blinkit"
	"github.com/nstogner/butler/pkg/platform/swiggy"
	"github.com/nstogner/butler/pkg/platform/zomato"
	"github.com/nstogner/butler/pkg/session"
	"github.com/nstogner/butler/pkg/store"
	"github.com/nstogner/butler/pkg/store/sqlite"
)

// App holds the running components.
type App struct {
	Store        *sqlite.Store
	Orchestrator *orchestrator.Orchestrator
	Controller   *controller.Controller

	closers []func()
}

// New builds every component. Background loops (janitor, browser container
// reconciliation) run until ctx is cancelled or Close is called.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// Initialize store.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	a.Store = db
	a.onClose(func() { db.Close() })

	// Initialize browser.
	host, err := a.browser(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Initialize adapters.
	opts := platform.Options{
		LoadTimeout: cfg.BrowserLoadTimeout,
		ActionDelay: cfg.BrowserActionDelay,
		SettleDelay: cfg.BrowserSettleDelay,
	}
	registry := platform.NewRegistry(
		swiggy.New(host, opts),
		zomato.New(host, opts),
		blinkit.New(host, opts),
	)

	var cache store.ListingCache
	if cfg.CacheEnabled {
		cache = db
	}
	a.Orchestrator = orchestrator.New(registry, host, cfg.Settings(), orchestrator.Options{
		Cache:      cache,
		Orders:     db,
		CacheTTL:   cfg.CacheTTL,
		PendingTTL: cfg.PendingTTL,
	})
	stop, err := a.Orchestrator.StartJanitor(cfg.JanitorSchedule)
	if err != nil {
		return nil, err
	}
	a.onClose(stop)

	// Initialize model provider.
	provider, err := gemini.New(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("initializing Gemini provider: %w", err)
	}

	maxTurns := cfg.SessionMaxTurns
	if maxTurns == 0 {
		maxTurns = -1
	}
	a.Controller = controller.New(a.Orchestrator, provider, session.Options{
		Model:    cfg.GeminiModel,
		MaxTurns: maxTurns,
	})

	ok = true
	return a, nil
}

// browser connects to the page host selected by BROWSER_MODE.
func (a *App) browser(ctx context.Context, cfg *config.Config) (browser.Host, error) {
	opts := chromedp.Options{Headless: cfg.BrowserHeadless}

	switch cfg.BrowserMode {
	case config.BrowserRemote:
		opts.RemoteURL = cfg.BrowserRemoteURL
	case config.BrowserDocker:
		mgr, err := docker.New("default", cfg.BrowserDockerPort)
		if err != nil {
			return nil, fmt.Errorf("initializing browser container manager: %w", err)
		}
		a.onClose(func() { mgr.Close() })

		endpoint, err := mgr.Ensure(ctx)
		if err != nil {
			return nil, fmt.Errorf("starting browser container: %w", err)
		}
		opts.RemoteURL = endpoint

		runCtx, cancel := context.WithCancel(ctx)
		a.onClose(cancel)
		go func() {
			if err := mgr.Run(runCtx); err != nil && runCtx.Err() == nil {
				slog.Error("Browser container manager stopped", "error", err)
			}
		}()
	}

	host, err := chromedp.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.onClose(host.Shutdown)
	return host, nil
}

func (a *App) onClose(f func()) {
	a.closers = append(a.closers, f)
}

// Close releases everything New acquired, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
