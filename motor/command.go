package motor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MovementComplete is the line the device prints when a motion finishes.
const MovementComplete = "MOVEMENT_COMPLETE"

// Op identifies a motor command.
type Op int

const (
	OpMoveTo Op = iota
	OpMoveLeft
	OpMoveRight
	OpHomeToCenter
	OpSeekLeftLimit
	OpSeekRightLimit
	OpSetPosition
	OpGetPosition
	OpEmergencyStop
)

var opNames = [...]string{
	OpMoveTo:         "MOVE_TO",
	OpMoveLeft:       "MOVE_LEFT",
	OpMoveRight:      "MOVE_RIGHT",
	OpHomeToCenter:   "HOME_TO_CENTER",
	OpSeekLeftLimit:  "SEEK_LEFT_LIMIT",
	OpSeekRightLimit: "SEEK_RIGHT_LIMIT",
	OpSetPosition:    "SET_POS",
	OpGetPosition:    "GET_POS",
	OpEmergencyStop:  "EMERGENCY_STOP",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "Op(" + strconv.Itoa(int(o)) + ")"
	}
	return opNames[o]
}

// HasArg reports whether the op carries an integer argument on the wire.
func (o Op) HasArg() bool {
	switch o {
	case OpMoveTo, OpMoveLeft, OpMoveRight, OpSetPosition:
		return true
	}
	return false
}

// IsMotion reports whether the op moves the carriage and completes with
// MovementComplete.
func (o Op) IsMotion() bool {
	switch o {
	case OpMoveTo, OpMoveLeft, OpMoveRight, OpHomeToCenter, OpSeekLeftLimit, OpSeekRightLimit:
		return true
	}
	return false
}

// IsImmediate reports whether the op answers with a single line.
func (o Op) IsImmediate() bool { return o == OpSetPosition || o == OpGetPosition }

// Command is a single line sent to the motor controller.
type Command struct {
	Op  Op
	Arg int64
}

func MoveTo(pos int64) Command      { return Command{Op: OpMoveTo, Arg: pos} }
func MoveLeft(steps int64) Command  { return Command{Op: OpMoveLeft, Arg: steps} }
func MoveRight(steps int64) Command { return Command{Op: OpMoveRight, Arg: steps} }
func HomeToCenter() Command         { return Command{Op: OpHomeToCenter} }
func SeekLeftLimit() Command        { return Command{Op: OpSeekLeftLimit} }
func SeekRightLimit() Command       { return Command{Op: OpSeekRightLimit} }
func SetPosition(pos int64) Command { return Command{Op: OpSetPosition, Arg: pos} }
func GetPosition() Command          { return Command{Op: OpGetPosition} }
func EmergencyStop() Command        { return Command{Op: OpEmergencyStop} }

// String returns the wire form of the command, without the trailing newline.
func (c Command) String() string {
	if c.Op.HasArg() {
		return c.Op.String() + " " + strconv.FormatInt(c.Arg, 10)
	}
	return c.Op.String()
}

// Completion returns the token a motion command waits for, or "" if the
// command does not wait for one.
func (c Command) Completion() string {
	if c.Op.IsMotion() {
		return MovementComplete
	}
	return ""
}

// ParseCommand parses a wire line into a Command.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, errors.New("empty command")
	}
	for i, name := range opNames {
		if name != fields[0] {
			continue
		}
		op := Op(i)
		if !op.HasArg() {
			if len(fields) != 1 {
				return Command{}, fmt.Errorf("%s takes no argument", name)
			}
			return Command{Op: op}, nil
		}
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%s requires one integer argument", name)
		}
		arg, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("%s: %w", name, err)
		}
		return Command{Op: op, Arg: arg}, nil
	}
	return Command{}, fmt.Errorf("unknown command: %s", fields[0])
}
