// Package primitive contains the atomic maneuvers every flow is built from.
// They are generic over any pilot that exposes a browser session and a way
// to reach the user.
package primitive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xyla-io/bot-google-play/internal/browser"
	"github.com/xyla-io/bot-google-play/internal/interact"
	"github.com/xyla-io/bot-google-play/internal/log"
	"github.com/xyla-io/bot-google-play/internal/maneuver"
	"github.com/xyla-io/bot-google-play/internal/utils"
)

// Cockpit is what a pilot has to provide for the primitives to fly.
type Cockpit interface {
	Browser() browser.Browser
	Interactor() interact.Interactor
}

type Navigate[P Cockpit] struct {
	maneuver.Base
	URL string
}

func NewNavigate[P Cockpit](url string) *Navigate[P] {
	return &Navigate[P]{URL: url}
}

func (m *Navigate[P]) Name() string {
	return fmt.Sprintf("Navigate(%s)", utils.ShortenString(m.URL, 60))
}

func (m *Navigate[P]) Attempt(ctx context.Context, pilot P, f *maneuver.Flight[P]) error {
	return pilot.Browser().Navigate(ctx, m.URL)
}

// Click clicks the element matching Selector once it is visible.
type Click[P Cockpit] struct {
	maneuver.Base
	Selector string
}

func NewClick[P Cockpit](selector string) *Click[P] {
	return &Click[P]{Selector: selector}
}

func (m *Click[P]) Name() string {
	return fmt.Sprintf("Click(%s)", utils.ShortenString(m.Selector, 60))
}

func (m *Click[P]) Attempt(ctx context.Context, pilot P, f *maneuver.Flight[P]) error {
	return pilot.Browser().Click(ctx, m.Selector)
}

// ClickSequence clicks each selector in order, pausing Wait after each click.
type ClickSequence[P Cockpit] struct {
	maneuver.Base
	Selectors []string
	Wait      time.Duration
}

func NewClickSequence[P Cockpit](wait time.Duration, selectors ...string) *ClickSequence[P] {
	return &ClickSequence[P]{Selectors: selectors, Wait: wait}
}

func (m *ClickSequence[P]) Name() string {
	return fmt.Sprintf("ClickSequence(%d)", len(m.Selectors))
}

func (m *ClickSequence[P]) Attempt(ctx context.Context, pilot P, f *maneuver.Flight[P]) error {
	for _, s := range m.Selectors {
		if err := f.Run(ctx, NewClick[P](s)); err != nil {
			return err
		}
		if err := f.Run(ctx, NewPause[P](m.Wait)); err != nil {
			return err
		}
	}
	return nil
}

type SendKeys[P Cockpit] struct {
	maneuver.Base
	Selector string
	Text     string
	// Secret hides Text from logs.
	Secret bool
}

func NewSendKeys[P Cockpit](selector, text string) *SendKeys[P] {
	return &SendKeys[P]{Selector: selector, Text: text}
}

func (m *SendKeys[P]) Name() string {
	return fmt.Sprintf("SendKeys(%s)", utils.ShortenString(m.Selector, 60))
}

func (m *SendKeys[P]) Attempt(ctx context.Context, pilot P, f *maneuver.Flight[P]) error {
	if !m.Secret {
		log.LoggerFromContext(ctx).Debug("typing", slog.String("text", m.Text))
	}
	return pilot.Browser().SendKeys(ctx, m.Selector, m.Text)
}

// WaitVisible loads whether Selector became visible within Timeout. It only
// fails on browser errors, not on absence.
type WaitVisible[P Cockpit] struct {
	maneuver.Base
	maneuver.Ordnance[bool]
	Selector string
	Timeout  time.Duration
}

func NewWaitVisible[P Cockpit](selector string, timeout time.Duration) *WaitVisible[P] {
	return &WaitVisible[P]{Selector: selector, Timeout: timeout}
}

func (m *WaitVisible[P]) Name() string {
	return fmt.Sprintf("WaitVisible(%s)", utils.ShortenString(m.Selector, 60))
}

func (m *WaitVisible[P]) Attempt(ctx context.Context, pilot P, f *maneuver.Flight[P]) error {
	ok, err := pilot.Browser().Visible(ctx, m.Selector, m.Timeout)
	if err != nil {
		return err
	}
	m.Load(ok)
	return nil
}

// FindElement loads the outer html of the element matching Selector.
type FindElement[P Cockpit] struct {
	maneuver.Base
	maneuver.Ordnance[string]
	Selector string
}

func NewFindElement[P Cockpit](selector string) *FindElement[P] {
	return &FindElement[P]{Selector: selector}
}

func (m *FindElement[P]) Name() string {
	return fmt.Sprintf("FindElement(%s)", utils.ShortenString(m.Selector, 60))
}

func (m *FindElement[P]) Attempt(ctx context.Context, pilot P, f *maneuver.Flight[P]) error {
	src, err := pilot.Browser().Source(ctx, m.Selector)
	if err != nil {
		return err
	}
	m.Load(src)
	return nil
}

// Pause waits a fixed duration for remote rendering we cannot observe.
type Pause[P Cockpit] struct {
	maneuver.Base
	Duration time.Duration
}

func NewPause[P Cockpit](d time.Duration) *Pause[P] {
	return &Pause[P]{Duration: d}
}

func (m *Pause[P]) Name() string {
	return fmt.Sprintf("Pause(%v)", m.Duration)
}

func (m *Pause[P]) Attempt(ctx context.Context, pilot P, f *maneuver.Flight[P]) error {
	return browser.Sleep(ctx, m.Duration)
}

// Interact blocks until the user confirms Prompt.
type Interact[P Cockpit] struct {
	maneuver.Base
	Prompt string
}

func NewInteract[P Cockpit](prompt string) *Interact[P] {
	return &Interact[P]{Prompt: prompt}
}

func (m *Interact[P]) Attempt(ctx context.Context, pilot P, f *maneuver.Flight[P]) error {
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("waiting for user: %s", m.Prompt))
	return pilot.Interactor().Interact(ctx, m.Prompt)
}
