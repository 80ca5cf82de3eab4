package maneuver

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOrdnance is returned when a result is requested from a maneuver
	// or pilot that never produced one.
	ErrNoOrdnance = errors.New("no ordnance")
	// ErrReattempt is the failure of a maneuver value that is attempted twice.
	ErrReattempt = errors.New("maneuver already attempted")
)

// RequirementError reports that a required child maneuver did not succeed.
type RequirementError struct {
	Maneuver string
	State    State
	Err      error
}

func (e *RequirementError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("required maneuver %s is %s", e.Maneuver, e.State)
	}
	return fmt.Sprintf("required maneuver %s failed: %v", e.Maneuver, e.Err)
}

func (e *RequirementError) Unwrap() error { return e.Err }
