// Package interact pauses a run until a human confirms that a manual step
// in the browser, such as a second sign-in factor, is done.
package interact

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ErrAborted is returned when the user declines to continue.
var ErrAborted = errors.New("aborted by user")

// Interactor blocks until the user confirmed or aborted the manual step
// described by prompt.
type Interactor interface {
	Interact(ctx context.Context, prompt string) error
}

type Type string

const (
	TUI  Type = "tui"
	LINE Type = "line"
)

// New returns the interactor of the given type reading from the terminal.
func New(t Type) (Interactor, error) {
	switch t {
	case TUI, "":
		return &Modal{}, nil
	case LINE:
		return &Line{In: os.Stdin, Out: os.Stdout}, nil
	default:
		return nil, fmt.Errorf("interactor of type '%s' not implemented", t)
	}
}

// Modal shows a full screen dialog with a Continue and an Abort button.
type Modal struct{}

func (m *Modal) Interact(ctx context.Context, prompt string) error {
	app := tview.NewApplication()
	aborted := true
	modal := tview.NewModal().
		SetText(prompt).
		AddButtons([]string{"Continue", "Abort"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			aborted = buttonLabel != "Continue"
			app.Stop()
		})
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			app.Stop()
			return nil
		}
		return event
	})

	stop := context.AfterFunc(ctx, app.Stop)
	defer stop()
	if err := app.SetRoot(modal, false).EnableMouse(true).Run(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if aborted {
		return ErrAborted
	}
	return nil
}

// Line prints the prompt and waits for a line of input. An empty line or
// "y" continues, anything starting with "n" or "a" aborts.
type Line struct {
	In  io.Reader
	Out io.Writer
}

func (l *Line) Interact(ctx context.Context, prompt string) error {
	fmt.Fprintf(l.Out, "%s\nPress Enter to continue or type 'abort': ", prompt)
	answers := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		s, err := bufio.NewReader(l.In).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && s != "") {
			errs <- err
			return
		}
		answers <- strings.ToLower(strings.TrimSpace(s))
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errs:
		return fmt.Errorf("failed to read confirmation: %w", err)
	case a := <-answers:
		if strings.HasPrefix(a, "n") || strings.HasPrefix(a, "a") {
			return ErrAborted
		}
		return nil
	}
}

// Scripted answers interactions from a fixed list of results and records
// the prompts it was shown. It never blocks.
type Scripted struct {
	Results []error
	Prompts []string
}

func (s *Scripted) Interact(ctx context.Context, prompt string) error {
	s.Prompts = append(s.Prompts, prompt)
	if len(s.Results) == 0 {
		return nil
	}
	r := s.Results[0]
	s.Results = s.Results[1:]
	return r
}
