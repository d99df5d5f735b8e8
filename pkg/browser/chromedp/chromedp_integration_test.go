package chromedp_test

import (
	"context"
	"encoding/base64"
	"os"
	"testing"
	"time"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/browser/chromedp"
)

func setupHost(t *testing.T) (*chromedp.Host, context.Context) {
	t.Helper()
	if os.Getenv("BUTLER_BROWSER_TESTS") == "" {
		t.Skip("set BUTLER_BROWSER_TESTS=1 to run against a local Chrome")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	host, err := chromedp.New(ctx, chromedp.Options{Headless: true})
	if err != nil {
		t.Fatalf("chromedp.New: %v", err)
	}
	t.Cleanup(host.Shutdown)
	return host, ctx
}

func page(html string) string {
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))
}

func TestClickTextMatchedByTextContent(t *testing.T) {
	host, ctx := setupHost(t)

	// The label is hidden from innerText but present in textContent.
	h, err := host.Open(ctx, page(`<button onclick="document.title='added'"><span style="visibility:hidden">ADD</span></button>`))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := host.WaitForLoad(ctx, h, 10*time.Second); err != nil {
		t.Fatalf("WaitForLoad: %v", err)
	}

	var clicked string
	if err := host.RunScript(ctx, h, browser.ClickTextScript(browser.ButtonScope, []string{"ADD"}, true), &clicked); err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if clicked != "ADD" {
		t.Errorf("clicked = %q, want ADD", clicked)
	}
	if err := browser.Labels("add button", "ADD").Click(ctx, host, h); err != nil {
		t.Errorf("Click: %v", err)
	}
}
