package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/nstogner/butler/pkg/domain"
)

// Handle identifies an open tab. It is opaque to callers.
type Handle string

// Script is a named page function with its arguments. Hosts that execute real
// JavaScript evaluate Source applied to Args; fake hosts dispatch on Name.
type Script struct {
	Name   string
	Source string
	Args   []any
}

// Host is the page automation runtime. The core only consumes it.
type Host interface {
	// Open opens a new tab at url and returns its handle.
	Open(ctx context.Context, url string) (Handle, error)
	// Navigate points an existing tab at url.
	Navigate(ctx context.Context, h Handle, url string) error
	// RunScript evaluates s in the tab and decodes its JSON result into out.
	RunScript(ctx context.Context, h Handle, s Script, out any) error
	// WaitForLoad blocks until the document is complete or timeout elapses,
	// in which case the error wraps domain.ErrTimeout.
	WaitForLoad(ctx context.Context, h Handle, timeout time.Duration) error
	// CaptureVisible returns a PNG of the visible viewport.
	CaptureVisible(ctx context.Context, h Handle) ([]byte, error)
	// Close closes the tab.
	Close(ctx context.Context, h Handle) error
}

// PollUntil calls check every interval until it reports true, ctx ends, or
// timeout elapses.
func PollUntil(ctx context.Context, timeout, interval time.Duration, check func(ctx context.Context) (bool, error)) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := check(timeoutCtx)
		if err == nil && ok {
			return nil
		}
		select {
		case <-timeoutCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				return fmt.Errorf("%w after %s: %v", domain.ErrTimeout, timeout, err)
			}
			return fmt.Errorf("%w after %s", domain.ErrTimeout, timeout)
		case <-ticker.C:
		}
	}
}
