package sequencer

import (
	"errors"
	"fmt"
)

// ErrEmergencyStopped is returned when a run is cancelled. The rig has been
// sent an emergency stop and is no longer homed.
var ErrEmergencyStopped = errors.New("emergency stopped")

// StepError is a failure that aborted a run.
type StepError struct {
	State State
	Step  Step
	Err   error
}

func (e *StepError) Error() string {
	if e.State == Homing {
		return fmt.Sprintf("%s: %v", e.State, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.State, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
