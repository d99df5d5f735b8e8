// Package browsertest provides an in-memory browser.Host for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/domain"
)

// PNG is the payload returned by CaptureVisible.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Page is the scripted state of one fake document.
type Page struct {
	// Loading keeps document.readyState at "loading" forever.
	Loading bool
	// Selectors maps a CSS selector to the number of elements it matches.
	Selectors map[string]int
	// Buttons holds the labels of every element in the button scope.
	Buttons []string
	// Extracts maps an extraction card selector to its result.
	Extracts map[string]browser.ExtractResult
	// Fail makes the named script return an error.
	Fail map[string]error
}

func (p *Page) clone() *Page {
	if p == nil {
		return &Page{}
	}
	c := *p
	c.Buttons = append([]string(nil), p.Buttons...)
	return &c
}

// Tab is an open fake tab.
type Tab struct {
	URL    string
	Page   *Page
	Clicks []string
	Typed  []string
	Closed bool
}

// Host implements browser.Host over scripted pages keyed by URL prefix.
type Host struct {
	mu     sync.Mutex
	pages  map[string]*Page
	tabs   map[browser.Handle]*Tab
	order  []browser.Handle
	nextID int
}

var _ browser.Host = (*Host)(nil)

// New returns a host that serves pages by longest matching URL prefix.
func New(pages map[string]*Page) *Host {
	if pages == nil {
		pages = map[string]*Page{}
	}
	return &Host{pages: pages, tabs: map[browser.Handle]*Tab{}}
}

// Route registers page for URLs beginning with prefix.
func (f *Host) Route(prefix string, page *Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[prefix] = page
}

// SetPage replaces the document of an open tab.
func (f *Host) SetPage(h browser.Handle, page *Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tabs[h]; ok {
		t.Page = page.clone()
	}
}

// Tab returns a snapshot of an open or closed tab.
func (f *Host) Tab(h browser.Handle) (Tab, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tabs[h]
	if !ok {
		return Tab{}, false
	}
	cp := *t
	cp.Clicks = append([]string(nil), t.Clicks...)
	cp.Typed = append([]string(nil), t.Typed...)
	return cp, true
}

// Handles lists every tab ever opened, in order.
func (f *Host) Handles() []browser.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.Handle(nil), f.order...)
}

func (f *Host) lookup(url string) *Page {
	var best string
	var page *Page
	for prefix, p := range f.pages {
		if strings.HasPrefix(url, prefix) && len(prefix) >= len(best) {
			best, page = prefix, p
		}
	}
	return page.clone()
}

func (f *Host) tab(h browser.Handle) (*Tab, error) {
	t, ok := f.tabs[h]
	if !ok || t.Closed {
		return nil, fmt.Errorf("tab %s: %w", h, domain.ErrNotFound)
	}
	return t, nil
}

func (f *Host) Open(ctx context.Context, url string) (browser.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	h := browser.Handle(fmt.Sprintf("tab-%d", f.nextID))
	f.tabs[h] = &Tab{URL: url, Page: f.lookup(url)}
	f.order = append(f.order, h)
	return h, nil
}

func (f *Host) Navigate(ctx context.Context, h browser.Handle, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.tab(h)
	if err != nil {
		return err
	}
	t.URL = url
	t.Page = f.lookup(url)
	return nil
}

func (f *Host) WaitForLoad(ctx context.Context, h browser.Handle, timeout time.Duration) error {
	return browser.PollUntil(ctx, timeout, time.Millisecond, func(ctx context.Context) (bool, error) {
		var state string
		if err := f.RunScript(ctx, h, browser.ReadyStateScript(), &state); err != nil {
			return false, err
		}
		return state == "complete", nil
	})
}

func (f *Host) RunScript(ctx context.Context, h browser.Handle, s browser.Script, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.tab(h)
	if err != nil {
		return err
	}
	if err := t.Page.Fail[s.Name]; err != nil {
		return err
	}

	var result any
	switch s.Name {
	case browser.ScriptReadyState:
		result = "complete"
		if t.Page.Loading {
			result = "loading"
		}
	case browser.ScriptCount:
		result = t.Page.Selectors[s.Args[0].(string)]
	case browser.ScriptClick:
		sel := s.Args[0].(string)
		ok := t.Page.Selectors[sel] > 0
		if ok {
			t.Clicks = append(t.Clicks, sel)
		}
		result = ok
	case browser.ScriptClickText:
		labels := s.Args[1].([]string)
		exact := s.Args[2].(bool)
		clicked := matchLabel(t.Page.Buttons, labels, exact)
		if clicked != "" {
			t.Clicks = append(t.Clicks, clicked)
		}
		result = clicked
	case browser.ScriptType:
		sel := s.Args[0].(string)
		ok := t.Page.Selectors[sel] > 0
		if ok {
			t.Typed = append(t.Typed, s.Args[1].(string))
		}
		result = ok
	case browser.ScriptExtractListings, browser.ScriptExtractReviews, browser.ScriptExtractMenu:
		spec := s.Args[0].(browser.Extraction)
		result = t.Page.Extracts[spec.Card]
	default:
		return fmt.Errorf("unknown script %q", s.Name)
	}

	if out == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func matchLabel(buttons, labels []string, exact bool) string {
	for _, label := range labels {
		want := strings.ToUpper(strings.TrimSpace(label))
		for _, b := range buttons {
			text := strings.ToUpper(strings.TrimSpace(b))
			if text == "" {
				continue
			}
			if (exact && text == want) || (!exact && strings.Contains(text, want)) {
				return b
			}
		}
	}
	return ""
}

func (f *Host) CaptureVisible(ctx context.Context, h browser.Handle) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.tab(h); err != nil {
		return nil, err
	}
	return PNG, nil
}

func (f *Host) Close(ctx context.Context, h browser.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.tab(h)
	if err != nil {
		return err
	}
	t.Closed = true
	return nil
}
