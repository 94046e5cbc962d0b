package sequencer

import (
	"fmt"
	"strings"
	"time"
)

type State int

const (
	Idle State = iota
	Homing
	ReadyForOdor
	PositionedAtRight
	Recording
	OdorPulse
	Advancing
	Resetting
	Done
	EmergencyStopped
	Aborted
)

var stateNames = [...]string{
	Idle:              "Idle",
	Homing:            "Homing",
	ReadyForOdor:      "ReadyForOdor",
	PositionedAtRight: "PositionedAtRight",
	Recording:         "Recording",
	OdorPulse:         "OdorPulse",
	Advancing:         "Advancing",
	Resetting:         "Resetting",
	Done:              "Done",
	EmergencyStopped:  "EmergencyStopped",
	Aborted:           "Aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == Done || s == EmergencyStopped || s == Aborted
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(data []byte) error {
	for i, name := range stateNames {
		if strings.EqualFold(name, string(data)) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", data)
}

// Event is a state transition.
type Event struct {
	State State     `json:"state"`
	Step  Step      `json:"step"`
	Err   string    `json:"error,omitempty"`
	Time  time.Time `json:"time"`
}
