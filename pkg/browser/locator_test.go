package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/browser/browsertest"
	"github.com/nstogner/butler/pkg/domain"
)

func openTab(t *testing.T, page *browsertest.Page) (*browsertest.Host, browser.Handle) {
	t.Helper()
	host := browsertest.New(map[string]*browsertest.Page{"https://example.test": page})
	h, err := host.Open(context.Background(), "https://example.test/search")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return host, h
}

func TestLocatorFirstMatchWins(t *testing.T) {
	host, h := openTab(t, &browsertest.Page{
		Selectors: map[string]int{"#b": 1, "#c": 1},
	})
	loc := browser.Selectors("restaurant card", "#a", "#b", "#c")

	if err := loc.Click(context.Background(), host, h); err != nil {
		t.Fatalf("Click: %v", err)
	}
	tab, _ := host.Tab(h)
	if len(tab.Clicks) != 1 || tab.Clicks[0] != "#b" {
		t.Errorf("clicks = %v, want [#b]", tab.Clicks)
	}
}

func TestLocatorExhausted(t *testing.T) {
	host, h := openTab(t, &browsertest.Page{})
	loc := browser.Selectors("search box", "#q", "input[type=text]")

	err := loc.Type(context.Background(), host, h, "pizza", true)
	if !errors.Is(err, domain.ErrElementNotFound) {
		t.Fatalf("err = %v, want ErrElementNotFound", err)
	}
	var enf *domain.ElementNotFoundError
	if !errors.As(err, &enf) {
		t.Fatalf("err is not *ElementNotFoundError: %T", err)
	}
	if enf.Role != "search box" || len(enf.Candidates) != 2 {
		t.Errorf("got %+v", enf)
	}
}

func TestTextMatcherPrefersExactThenLabelOrder(t *testing.T) {
	host, h := openTab(t, &browsertest.Page{
		Buttons: []string{"Address", "Add", "View Cart", "Checkout"},
	})
	add := browser.Locator{Role: "add button", Matchers: []browser.Matcher{
		browser.Text{Labels: []string{"ADD"}, Exact: true},
		browser.Text{Labels: []string{"ADD"}},
	}}
	if err := add.Click(context.Background(), host, h); err != nil {
		t.Fatalf("add: %v", err)
	}
	checkout := browser.Labels("checkout", "checkout", "view cart", "proceed", "cart")
	if err := checkout.Click(context.Background(), host, h); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	tab, _ := host.Tab(h)
	want := []string{"Add", "Checkout"}
	if len(tab.Clicks) != len(want) {
		t.Fatalf("clicks = %v, want %v", tab.Clicks, want)
	}
	for i := range want {
		if tab.Clicks[i] != want[i] {
			t.Errorf("click %d = %q, want %q", i, tab.Clicks[i], want[i])
		}
	}
}

func TestLocatorScriptErrorIsNotNotFound(t *testing.T) {
	boom := errors.New("target crashed")
	host, h := openTab(t, &browsertest.Page{Fail: map[string]error{browser.ScriptClick: boom}})

	err := browser.Selectors("card", "#a").Click(context.Background(), host, h)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if errors.Is(err, domain.ErrElementNotFound) {
		t.Errorf("script failure reported as not found")
	}
}

func TestWaitForLoadTimeout(t *testing.T) {
	host, h := openTab(t, &browsertest.Page{Loading: true})

	err := host.WaitForLoad(context.Background(), h, 20*time.Millisecond)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestPacerZeroDelaysDoNotBlock(t *testing.T) {
	ctx := context.Background()
	for _, p := range []*browser.Pacer{nil, browser.NewPacer(0, 0)} {
		start := time.Now()
		for i := 0; i < 100; i++ {
			if err := p.Act(ctx); err != nil {
				t.Fatalf("Act: %v", err)
			}
			if err := p.Settle(ctx); err != nil {
				t.Fatalf("Settle: %v", err)
			}
		}
		if d := time.Since(start); d > time.Second {
			t.Errorf("zero pacer took %s", d)
		}
	}
}

func TestPacerSettleHonoursCancel(t *testing.T) {
	p := browser.NewPacer(0, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Settle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
