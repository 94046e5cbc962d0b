package machine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mastercactapus/odorrig/metrics"
	"github.com/mastercactapus/odorrig/motor"
	"github.com/mastercactapus/odorrig/rail"
)

// DefaultAdvanceGuard is the minimum distance from the left limit, in steps,
// at which AdvanceToNextPair still moves. The value was found on the rig.
const DefaultAdvanceGuard = 500

// Options configure a Rig.
type Options struct {
	// AdvanceGuard overrides DefaultAdvanceGuard when non-zero.
	AdvanceGuard int64

	Metrics *metrics.Collector
}

// RangeError is returned for a target outside the usable span of the rail.
type RangeError struct {
	Op       string
	Value    int64
	Min, Max int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d: outside of range [%d, %d]", e.Op, e.Value, e.Min, e.Max)
}

// Rig moves the carriage between pair stations.
type Rig struct {
	a       Adapter
	layout  rail.PairLayout
	guard   int64
	metrics *metrics.Collector
}

func NewRig(a Adapter, layout rail.PairLayout, opt Options) *Rig {
	guard := opt.AdvanceGuard
	if guard == 0 {
		guard = DefaultAdvanceGuard
	}
	return &Rig{
		a:       a,
		layout:  layout,
		guard:   guard,
		metrics: opt.Metrics,
	}
}

func (r *Rig) Layout() rail.PairLayout { return r.layout }
func (r *Rig) AdvanceGuard() int64     { return r.guard }

func result(err error) string {
	var de *motor.DeviceError
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.As(err, &de):
		return metrics.ResultDeviceError
	}
	return metrics.ResultError
}

func (r *Rig) run(ctx context.Context, cmd motor.Command) error {
	start := time.Now()
	err := r.a.SendAndAwait(ctx, cmd, motor.MovementComplete)
	r.metrics.ObserveCommand(cmd.Op.String(), result(err), time.Since(start))
	return err
}

func (r *Rig) checkRange(op string, pos int64) error {
	if r.layout.Contains(pos) {
		return nil
	}
	return &RangeError{Op: op, Value: pos, Min: r.layout.LeftLimit(), Max: r.layout.RightLimit()}
}

func checkSteps(op string, steps int64) error {
	if steps < 0 {
		return &RangeError{Op: op, Value: steps, Min: 0, Max: math.MaxInt64}
	}
	return nil
}

// MoveTo moves the carriage to an absolute position.
func (r *Rig) MoveTo(ctx context.Context, pos int64) error {
	if err := r.checkRange("move to", pos); err != nil {
		return err
	}
	return r.run(ctx, motor.MoveTo(pos))
}

func (r *Rig) MoveLeft(ctx context.Context, steps int64) error {
	if err := checkSteps("move left", steps); err != nil {
		return err
	}
	return r.run(ctx, motor.MoveLeft(steps))
}

func (r *Rig) MoveRight(ctx context.Context, steps int64) error {
	if err := checkSteps("move right", steps); err != nil {
		return err
	}
	return r.run(ctx, motor.MoveRight(steps))
}

// HomeToCenter seeks the left limit and then moves to the center of the rail.
func (r *Rig) HomeToCenter(ctx context.Context) error {
	return r.run(ctx, motor.HomeToCenter())
}

func (r *Rig) SeekLeftLimit(ctx context.Context) error {
	return r.run(ctx, motor.SeekLeftLimit())
}

func (r *Rig) SeekRightLimit(ctx context.Context) error {
	return r.run(ctx, motor.SeekRightLimit())
}

// MoveToStation moves to pair station i, counted from the right limit.
func (r *Rig) MoveToStation(ctx context.Context, i int) error {
	if i < 0 || i >= r.layout.Pairs {
		return &RangeError{Op: "station", Value: int64(i), Min: 0, Max: int64(r.layout.Pairs - 1)}
	}
	return r.MoveTo(ctx, r.layout.Station(i))
}

// AdvanceToNextPair moves one station to the left unless the carriage is
// already within the advance guard of the left limit. It reports whether
// a move was made.
func (r *Rig) AdvanceToNextPair(ctx context.Context) (bool, error) {
	pos, err := r.Position(ctx)
	if err != nil {
		return false, err
	}
	dist := pos - r.layout.LeftLimit()
	if dist < 0 {
		dist = -dist
	}
	if dist < r.guard {
		return false, nil
	}
	return true, r.MoveLeft(ctx, r.layout.MoveInterval())
}

// EmergencyStop halts the carriage immediately. The rig must be homed again
// before the next run.
func (r *Rig) EmergencyStop() error {
	return r.a.EmergencyStop()
}
