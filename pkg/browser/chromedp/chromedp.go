// Package chromedp implements browser.Host over the Chrome DevTools Protocol.
package chromedp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/domain"
)

// Options selects how the browser is reached.
type Options struct {
	// RemoteURL attaches to an already running browser's DevTools endpoint
	// (ws:// or http://host:9222). When empty a local Chrome is launched.
	RemoteURL string
	Headless  bool
	ExecPath  string
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Host drives tabs of a single Chrome instance. A remote browser that goes
// away is reconnected on the next Open; tabs of the old browser are dropped.
type Host struct {
	parent context.Context
	opts   Options

	mu         sync.Mutex
	browserCtx context.Context
	cancel     context.CancelFunc
	tabs       map[browser.Handle]*tab
}

var _ browser.Host = (*Host)(nil)

// New connects to or launches a browser. The browser lives until Shutdown.
func New(ctx context.Context, opts Options) (*Host, error) {
	h := &Host{parent: ctx, opts: opts, tabs: map[browser.Handle]*tab{}}
	if err := h.connect(); err != nil {
		return nil, err
	}
	slog.Info("Browser connected", "remote", opts.RemoteURL != "", "headless", opts.Headless)
	return h, nil
}

// connect replaces the browser connection. Callers hold h.mu or own h
// exclusively.
func (h *Host) connect() error {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if h.opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(h.parent, h.opts.RemoteURL)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", h.opts.Headless),
			chromedp.WindowSize(1366, 900),
		)
		if h.opts.ExecPath != "" {
			execOpts = append(execOpts, chromedp.ExecPath(h.opts.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(h.parent, execOpts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// Start the browser now so configuration errors surface at startup.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("starting browser: %w", err)
	}

	if h.cancel != nil {
		h.cancel()
	}
	h.browserCtx = browserCtx
	h.cancel = func() {
		browserCancel()
		allocCancel()
	}
	return nil
}

// Shutdown closes every tab and the browser connection.
func (h *Host) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, t := range h.tabs {
		t.cancel()
		delete(h.tabs, id)
	}
	h.cancel()
}

func (h *Host) Open(ctx context.Context, url string) (browser.Handle, error) {
	t, conn, err := h.newTab()
	if err != nil && h.opts.RemoteURL != "" && h.parent.Err() == nil {
		slog.Warn("Browser connection lost, reconnecting", "remote", h.opts.RemoteURL, "error", err)
		if rerr := h.reconnect(conn); rerr != nil {
			return "", fmt.Errorf("creating tab: %w", errors.Join(err, rerr))
		}
		t, _, err = h.newTab()
	}
	if err != nil {
		return "", fmt.Errorf("creating tab: %w", err)
	}
	if err := h.run(ctx, t, chromedp.Navigate(url)); err != nil {
		t.cancel()
		return "", fmt.Errorf("opening %s: %w", url, err)
	}

	id := browser.Handle(uuid.New().String())
	h.mu.Lock()
	h.tabs[id] = t
	h.mu.Unlock()
	slog.Debug("Opened tab", "handle", id, "url", url)
	return id, nil
}

// newTab creates a target on the current browser, also returning the browser
// connection it used.
func (h *Host) newTab() (*tab, context.Context, error) {
	h.mu.Lock()
	browserCtx := h.browserCtx
	h.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	// The first Run creates the target and binds its lifetime to the context
	// it receives, so it must be the tab context itself.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, browserCtx, err
	}
	return &tab{ctx: tabCtx, cancel: cancel}, browserCtx, nil
}

// reconnect replaces the connection stale unless a concurrent Open already
// did.
func (h *Host) reconnect(stale context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browserCtx != stale {
		return nil
	}
	for id, t := range h.tabs {
		t.cancel()
		delete(h.tabs, id)
	}
	return h.connect()
}

func (h *Host) Navigate(ctx context.Context, id browser.Handle, url string) error {
	t, err := h.tab(id)
	if err != nil {
		return err
	}
	if err := h.run(ctx, t, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (h *Host) RunScript(ctx context.Context, id browser.Handle, s browser.Script, out any) error {
	t, err := h.tab(id)
	if err != nil {
		return err
	}
	args := s.Args
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding %s args: %w", s.Name, err)
	}
	expr := fmt.Sprintf("(%s).apply(null, %s)", s.Source, encoded)

	var raw []byte
	if err := h.run(ctx, t, chromedp.Evaluate(expr, &raw)); err != nil {
		return fmt.Errorf("script %s: %w", s.Name, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", s.Name, err)
	}
	return nil
}

func (h *Host) WaitForLoad(ctx context.Context, id browser.Handle, timeout time.Duration) error {
	return browser.PollUntil(ctx, timeout, 250*time.Millisecond, func(ctx context.Context) (bool, error) {
		var state string
		if err := h.RunScript(ctx, id, browser.ReadyStateScript(), &state); err != nil {
			return false, err
		}
		return state == "complete", nil
	})
}

func (h *Host) CaptureVisible(ctx context.Context, id browser.Handle) ([]byte, error) {
	t, err := h.tab(id)
	if err != nil {
		return nil, err
	}
	var buf []byte
	if err := h.run(ctx, t, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (h *Host) Close(ctx context.Context, id browser.Handle) error {
	h.mu.Lock()
	t, ok := h.tabs[id]
	delete(h.tabs, id)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("tab %s: %w", id, domain.ErrNotFound)
	}
	t.cancel()
	return nil
}

func (h *Host) tab(id browser.Handle) (*tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tabs[id]
	if !ok {
		return nil, fmt.Errorf("tab %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// run executes actions on the tab, aborting when the caller's ctx ends
// without closing the tab itself.
func (h *Host) run(ctx context.Context, t *tab, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
