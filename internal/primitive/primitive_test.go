package primitive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xyla-io/bot-google-play/internal/browser"
	"github.com/xyla-io/bot-google-play/internal/interact"
	"github.com/xyla-io/bot-google-play/internal/maneuver"
)

// recorder is a browser that logs every call and knows a fixed set of
// elements.
type recorder struct {
	calls    []string
	elements map[string]string
	url      string
}

func (r *recorder) lookup(selector string) (string, error) {
	src, ok := r.elements[selector]
	if !ok {
		return "", &browser.NotFoundError{Selector: selector, Timeout: time.Second}
	}
	return src, nil
}

func (r *recorder) Navigate(ctx context.Context, url string) error {
	r.calls = append(r.calls, "navigate "+url)
	r.url = url
	return nil
}

func (r *recorder) CurrentURL(ctx context.Context) (string, error) {
	return r.url, nil
}

func (r *recorder) Click(ctx context.Context, selector string) error {
	r.calls = append(r.calls, "click "+selector)
	_, err := r.lookup(selector)
	return err
}

func (r *recorder) SendKeys(ctx context.Context, selector string, text string) error {
	r.calls = append(r.calls, "type "+selector+" "+text)
	_, err := r.lookup(selector)
	return err
}

func (r *recorder) Source(ctx context.Context, selector string) (string, error) {
	return r.lookup(selector)
}

func (r *recorder) Visible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	_, err := r.lookup(selector)
	return err == nil, nil
}

func (r *recorder) AdoptNewestTab(ctx context.Context) error {
	return nil
}

func (r *recorder) Close() error {
	return nil
}

type cockpit struct {
	browser *recorder
	user    *interact.Scripted
}

func (c *cockpit) Browser() browser.Browser        { return c.browser }
func (c *cockpit) Interactor() interact.Interactor { return c.user }

func newCockpit() *cockpit {
	return &cockpit{
		browser: &recorder{elements: map[string]string{
			"//a":     "<a>1</a>",
			"//b":     "<b>2</b>",
			"//input": "<input/>",
		}},
		user: &interact.Scripted{},
	}
}

func fly(c *cockpit, m maneuver.Maneuver[*cockpit]) error {
	return maneuver.NewEngine[*cockpit]().Fly(context.Background(), c, m)
}

func TestSequenceOfPrimitives(t *testing.T) {
	c := newCockpit()
	seq := maneuver.NewSequence[*cockpit](
		NewNavigate[*cockpit]("https://example.com"),
		NewClickSequence[*cockpit](0, "//a", "//b"),
		NewSendKeys[*cockpit]("//input", "hello"),
		NewPause[*cockpit](time.Millisecond),
		NewInteract[*cockpit]("go on?"),
	)
	if err := fly(c, seq); err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	expected := []string{"navigate https://example.com", "click //a", "click //b", "type //input hello"}
	if diff := cmp.Diff(expected, c.browser.calls); diff != "" {
		t.Fatalf("unexpected browser calls (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"go on?"}, c.user.Prompts); diff != "" {
		t.Fatalf("unexpected prompts (-want +got):\n%s", diff)
	}
}

func TestClickSequenceStopsAtMissingElement(t *testing.T) {
	c := newCockpit()
	err := fly(c, NewClickSequence[*cockpit](0, "//a", "//missing", "//b"))
	if !errors.Is(err, browser.ErrElementNotFound) {
		t.Fatalf("expected %v but got %v", browser.ErrElementNotFound, err)
	}
	expected := []string{"click //a", "click //missing"}
	if diff := cmp.Diff(expected, c.browser.calls); diff != "" {
		t.Fatalf("unexpected browser calls (-want +got):\n%s", diff)
	}
}

func TestFindElement(t *testing.T) {
	c := newCockpit()
	m := NewFindElement[*cockpit]("//b")
	if err := fly(c, m); err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	src, err := m.Deploy()
	if err != nil || src != "<b>2</b>" {
		t.Fatalf("expected <b>2</b> but got %q, %v", src, err)
	}

	missing := NewFindElement[*cockpit]("//nope")
	if err := fly(c, missing); !errors.Is(err, browser.ErrElementNotFound) {
		t.Fatalf("expected %v but got %v", browser.ErrElementNotFound, err)
	}
	if _, err := missing.Deploy(); !errors.Is(err, maneuver.ErrNoOrdnance) {
		t.Fatalf("expected %v but got %v", maneuver.ErrNoOrdnance, err)
	}
}

func TestWaitVisible(t *testing.T) {
	tests := []struct {
		selector string
		expected bool
	}{
		{"//a", true},
		{"//nope", false},
	}
	for _, tt := range tests {
		c := newCockpit()
		m := NewWaitVisible[*cockpit](tt.selector, time.Millisecond)
		if err := fly(c, m); err != nil {
			t.Fatalf("got unexpected error: %v", err)
		}
		if got, _ := m.Deploy(); got != tt.expected {
			t.Fatalf("expected %v for %s but got %v", tt.expected, tt.selector, got)
		}
	}
}

func TestInteractAborted(t *testing.T) {
	c := newCockpit()
	c.user.Results = []error{interact.ErrAborted}
	if err := fly(c, NewInteract[*cockpit]("continue?")); !errors.Is(err, interact.ErrAborted) {
		t.Fatalf("expected %v but got %v", interact.ErrAborted, err)
	}
}

func TestPauseCancelled(t *testing.T) {
	c := newCockpit()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := maneuver.NewEngine[*cockpit]().Fly(ctx, c, NewPause[*cockpit](time.Hour))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected %v but got %v", context.Canceled, err)
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		m        any
		expected string
	}{
		{NewClick[*cockpit]("//a"), "Click(//a)"},
		{NewPause[*cockpit](2 * time.Second), "Pause(2s)"},
		{NewClickSequence[*cockpit](0, "//a", "//b"), "ClickSequence(2)"},
		{NewInteract[*cockpit]("x"), "Interact"},
	}
	for _, tt := range tests {
		if got := maneuver.Name(tt.m); got != tt.expected {
			t.Fatalf("expected %s but got %s", tt.expected, got)
		}
	}
}
