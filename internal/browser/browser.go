// Package browser provides the browser primitives the maneuvers are built
// on: navigation, clicks, typing and element lookups with bounded waits.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrElementNotFound is wrapped by every lookup that timed out.
var ErrElementNotFound = errors.New("element not found")

// NotFoundError reports a selector that did not match within its timeout.
type NotFoundError struct {
	Selector string
	Timeout  time.Duration
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element %s not found within %v", e.Selector, e.Timeout)
}

func (e *NotFoundError) Unwrap() error { return ErrElementNotFound }

// Browser is a single stateful browser session. Selectors are XPath
// expressions. Implementations are not safe for concurrent use; one pilot
// owns one session.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// Click waits for the element to be visible and clicks it.
	Click(ctx context.Context, selector string) error
	// SendKeys waits for the element to be visible and types text into it.
	SendKeys(ctx context.Context, selector string, text string) error
	// Source returns the outer html of the element, waiting for it to be visible.
	Source(ctx context.Context, selector string) (string, error)
	// Visible reports whether the element becomes visible within timeout.
	Visible(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// AdoptNewestTab closes the current tab and continues in the most
	// recently opened one.
	AdoptNewestTab(ctx context.Context) error
	Close() error
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
