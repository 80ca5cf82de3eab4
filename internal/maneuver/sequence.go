package maneuver

import (
	"context"
	"fmt"
)

// Sequence runs its steps in declared order and stops at the first failure.
type Sequence[P any] struct {
	Base
	Label string
	Steps []Maneuver[P]
}

func NewSequence[P any](steps ...Maneuver[P]) *Sequence[P] {
	return &Sequence[P]{Steps: steps}
}

func (s *Sequence[P]) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("Sequence(%d)", len(s.Steps))
}

func (s *Sequence[P]) Attempt(ctx context.Context, pilot P, f *Flight[P]) error {
	for _, step := range s.Steps {
		if err := f.Run(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// Collect runs ordnance steps in declared order; its ordnance is the list of
// their results in the same order.
type Collect[P, T any] struct {
	Base
	Ordnance[[]T]
	Label string
	Steps []OrdnanceManeuver[P, T]
}

func NewCollect[P, T any](steps ...OrdnanceManeuver[P, T]) *Collect[P, T] {
	return &Collect[P, T]{Steps: steps}
}

func (c *Collect[P, T]) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return fmt.Sprintf("Collect(%d)", len(c.Steps))
}

func (c *Collect[P, T]) Attempt(ctx context.Context, pilot P, f *Flight[P]) error {
	values := make([]T, 0, len(c.Steps))
	for _, step := range c.Steps {
		v, err := Deploy(ctx, f, step)
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	c.Load(values)
	return nil
}

// Func adapts a function into a plain maneuver.
type Func[P any] struct {
	Base
	Label string
	Fn    func(ctx context.Context, pilot P, f *Flight[P]) error
}

func NewFunc[P any](label string, fn func(ctx context.Context, pilot P, f *Flight[P]) error) *Func[P] {
	return &Func[P]{Label: label, Fn: fn}
}

func (m *Func[P]) Name() string { return m.Label }

func (m *Func[P]) Attempt(ctx context.Context, pilot P, f *Flight[P]) error {
	return m.Fn(ctx, pilot, f)
}
