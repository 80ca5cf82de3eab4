// Package maneuver executes trees of scripted interactions.
//
// A maneuver is a unit of work that may, while it is being attempted, ask
// the engine to run child maneuvers and continue with their results. Runs
// are strictly sequential: the Go call stack plays the role of the
// suspended parent, so a child always completes before its parent resumes
// and siblings run in the order they are requested.
//
// Ordnance maneuvers additionally produce exactly one typed result. The
// engine fails an ordnance maneuver that completes without loading one.
package maneuver

import (
	"context"
	"fmt"
	"strings"
)

// State is the execution state of a maneuver.
type State int

const (
	Pending State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Base carries the engine-managed bookkeeping of a maneuver. Every maneuver
// embeds it.
type Base struct {
	state  State
	err    error
	record *Record
}

func (b *Base) base() *Base { return b }

// State returns the current execution state.
func (b *Base) State() State { return b.state }

// Err returns the failure of a failed maneuver and nil otherwise.
func (b *Base) Err() error { return b.err }

// Record returns the flight log entry of an attempted maneuver.
func (b *Base) Record() *Record { return b.record }

// Maneuver is implemented by every step the engine can run. P is the pilot
// type shared by all maneuvers of one flight.
type Maneuver[P any] interface {
	Attempt(ctx context.Context, pilot P, f *Flight[P]) error
	base() *Base
}

// OrdnanceManeuver is a maneuver that produces a T.
type OrdnanceManeuver[P, T any] interface {
	Maneuver[P]
	Deploy() (T, error)
	Loaded() bool
}

// Named can be implemented to override the name used in logs and the
// flight log.
type Named interface {
	Name() string
}

type loader interface {
	Loaded() bool
}

// Name returns the display name of a maneuver.
func Name(m any) string {
	if n, ok := m.(Named); ok {
		return n.Name()
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", m), "*")
	if i := strings.Index(name, "["); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
