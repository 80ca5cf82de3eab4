package maneuver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xyla-io/bot-google-play/internal/log"
)

// Record is the flight log entry of one attempted maneuver.
type Record struct {
	Name     string
	Depth    int
	State    State
	Err      error
	Start    time.Time
	Duration time.Duration
	Children []*Record
}

// Walk calls fn for r and all of its descendants in attempt order.
func (r *Record) Walk(fn func(*Record)) {
	if r == nil {
		return
	}
	fn(r)
	for _, c := range r.Children {
		c.Walk(fn)
	}
}

// Observer is notified when a maneuver starts and when it completes.
type Observer interface {
	OnAttempt(r *Record)
	OnComplete(r *Record)
}

// Engine runs maneuver trees for pilots of type P.
type Engine[P any] struct {
	observers []Observer
	now       func() time.Time
	logger    *slog.Logger
	root      *Record
}

func NewEngine[P any](observers ...Observer) *Engine[P] {
	return &Engine[P]{
		observers: observers,
		now:       time.Now,
	}
}

// Fly attempts root with pilot and returns root's failure, if any. A failing
// maneuver aborts its whole ancestor chain; nothing is rolled back.
func (e *Engine[P]) Fly(ctx context.Context, pilot P, root Maneuver[P]) error {
	e.root = nil
	e.logger = log.LoggerFromContext(ctx)
	return e.attempt(ctx, pilot, root, nil)
}

// FlightLog returns the record of the last root maneuver flown.
func (e *Engine[P]) FlightLog() *Record {
	return e.root
}

// attempt flies m and returns the error of this attempt. A reattempt fails
// on its own record and leaves the result of the first attempt in place.
func (e *Engine[P]) attempt(ctx context.Context, pilot P, m Maneuver[P], parent *Record) error {
	b := m.base()
	rec := &Record{
		Name:  Name(m),
		State: Running,
		Start: e.now(),
	}
	if parent != nil {
		rec.Depth = parent.Depth + 1
		parent.Children = append(parent.Children, rec)
	} else {
		e.root = rec
	}

	logger := e.logger.With(slog.String("maneuver", rec.Name), slog.Int("depth", rec.Depth))
	for _, o := range e.observers {
		o.OnAttempt(rec)
	}

	reattempt := b.state != Pending
	var err error
	if reattempt {
		err = fmt.Errorf("%s: %w", rec.Name, ErrReattempt)
	} else if b.record = rec; ctx.Err() != nil {
		err = ctx.Err()
	} else {
		b.state = Running
		logger.Debug("attempting maneuver")
		f := &Flight[P]{engine: e, pilot: pilot, record: rec}
		err = m.Attempt(log.ContextWithLogger(ctx, logger), pilot, f)
		if l, ok := m.(loader); ok && err == nil && !l.Loaded() {
			err = fmt.Errorf("%s completed without ordnance: %w", rec.Name, ErrNoOrdnance)
		}
	}

	rec.Duration = e.now().Sub(rec.Start)
	if err != nil {
		if !reattempt {
			b.state, b.err = Failed, err
		}
		rec.State, rec.Err = Failed, err
		logger.Debug(fmt.Sprintf("maneuver failed after %v: %v", rec.Duration, err))
	} else {
		b.state = Succeeded
		rec.State = Succeeded
		logger.Debug(fmt.Sprintf("maneuver succeeded after %v", rec.Duration))
	}
	for _, o := range e.observers {
		o.OnComplete(rec)
	}
	return err
}

// Flight is handed to a maneuver while it is attempted. Through it the
// maneuver suspends itself to run children.
type Flight[P any] struct {
	engine *Engine[P]
	pilot  P
	record *Record
}

// Execute runs child to completion and returns it. The child's failure is
// recorded on the child only; use Require or Run to propagate it.
func (f *Flight[P]) Execute(ctx context.Context, child Maneuver[P]) Maneuver[P] {
	_ = f.engine.attempt(ctx, f.pilot, child, f.record)
	return child
}

// Require returns a *RequirementError unless child succeeded.
func (f *Flight[P]) Require(child Maneuver[P]) error {
	b := child.base()
	if b.state == Succeeded {
		return nil
	}
	return &RequirementError{Maneuver: Name(child), State: b.state, Err: b.err}
}

// Run executes child and requires this attempt of it to succeed.
func (f *Flight[P]) Run(ctx context.Context, child Maneuver[P]) error {
	if err := f.engine.attempt(ctx, f.pilot, child, f.record); err != nil {
		return &RequirementError{Maneuver: Name(child), State: Failed, Err: err}
	}
	return nil
}

// Record returns the flight log entry of the maneuver being attempted.
func (f *Flight[P]) Record() *Record {
	return f.record
}

// Deploy runs child, requires it to succeed and returns its ordnance.
func Deploy[P, T any](ctx context.Context, f *Flight[P], child OrdnanceManeuver[P, T]) (T, error) {
	if err := f.Run(ctx, child); err != nil {
		var zero T
		return zero, err
	}
	return child.Deploy()
}
