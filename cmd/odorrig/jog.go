package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mastercactapus/odorrig/machine"
	"github.com/mastercactapus/odorrig/motor"
)

type JogCommand struct{}

func (cmd *JogCommand) Usage() string {
	return "[OPTIONS] home | seek-left | seek-right | goto POS | left STEPS | right STEPS | station N | advance | pos | setpos POS | recalibrate left|right | estop | <controller line>"
}

func (cmd *JogCommand) Execute(args []string) error {
	if len(args) == 0 {
		return errors.New("jog: missing command")
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r, err := opts.openRig(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := jog(ctx, r.rig, args)
	if ctx.Err() != nil {
		r.rig.EmergencyStop()
	}
	if out != "" {
		fmt.Println(out)
	}
	return err
}

func intArg(args []string) (int64, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("%s requires one integer argument", args[0])
	}
	v, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", args[0], err)
	}
	return v, nil
}

// jog runs one operator command against the rig and returns anything worth
// printing.
func jog(ctx context.Context, rig *machine.Rig, args []string) (string, error) {
	switch strings.ToLower(args[0]) {
	case "home":
		return "", rig.HomeToCenter(ctx)
	case "seek-left":
		return "", rig.SeekLeftLimit(ctx)
	case "seek-right":
		return "", rig.SeekRightLimit(ctx)
	case "advance":
		moved, err := rig.AdvanceToNextPair(ctx)
		if err != nil {
			return "", err
		}
		if !moved {
			return "at left limit, not moved", nil
		}
		return "", nil
	case "pos":
		pos, err := rig.Position(ctx)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(pos, 10), nil
	case "estop":
		return "", rig.EmergencyStop()
	case "recalibrate":
		if len(args) != 2 {
			return "", errors.New("recalibrate requires left or right")
		}
		switch strings.ToLower(args[1]) {
		case "left":
			return "", rig.Recalibrate(ctx, machine.Left)
		case "right":
			return "", rig.Recalibrate(ctx, machine.Right)
		}
		return "", fmt.Errorf("recalibrate: unknown side %q", args[1])
	case "goto", "left", "right", "station", "setpos":
		v, err := intArg(args)
		if err != nil {
			return "", err
		}
		switch strings.ToLower(args[0]) {
		case "goto":
			return "", rig.MoveTo(ctx, v)
		case "left":
			return "", rig.MoveLeft(ctx, v)
		case "right":
			return "", rig.MoveRight(ctx, v)
		case "station":
			return "", rig.MoveToStation(ctx, int(v))
		}
		return rig.SetPosition(ctx, v)
	}

	cmd, err := motor.ParseCommand(strings.Join(args, " "))
	if err != nil {
		return "", err
	}
	return runCommand(ctx, rig, cmd)
}

// runCommand maps a controller line onto the rig so range checks still apply.
func runCommand(ctx context.Context, rig *machine.Rig, cmd motor.Command) (string, error) {
	switch cmd.Op {
	case motor.OpMoveTo:
		return "", rig.MoveTo(ctx, cmd.Arg)
	case motor.OpMoveLeft:
		return "", rig.MoveLeft(ctx, cmd.Arg)
	case motor.OpMoveRight:
		return "", rig.MoveRight(ctx, cmd.Arg)
	case motor.OpHomeToCenter:
		return "", rig.HomeToCenter(ctx)
	case motor.OpSeekLeftLimit:
		return "", rig.SeekLeftLimit(ctx)
	case motor.OpSeekRightLimit:
		return "", rig.SeekRightLimit(ctx)
	case motor.OpSetPosition:
		return rig.SetPosition(ctx, cmd.Arg)
	case motor.OpGetPosition:
		pos, err := rig.Position(ctx)
		if err != nil {
			return "", err
		}
		return "POS " + strconv.FormatInt(pos, 10), nil
	case motor.OpEmergencyStop:
		return "", rig.EmergencyStop()
	}
	return "", fmt.Errorf("unsupported command: %s", cmd)
}
