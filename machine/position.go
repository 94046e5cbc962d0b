package machine

import (
	"context"
	"fmt"
	"time"

	"github.com/mastercactapus/odorrig/motor"
)

// Side selects one end of the rail.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Position reads the carriage position from the device.
func (r *Rig) Position(ctx context.Context) (int64, error) {
	start := time.Now()
	pos, err := r.a.GetPosition(ctx)
	r.metrics.ObserveCommand(motor.OpGetPosition.String(), result(err), time.Since(start))
	return pos, err
}

// SetPosition overrides the device's position counter and returns its
// acknowledgement.
func (r *Rig) SetPosition(ctx context.Context, pos int64) (string, error) {
	if err := r.checkRange("set position", pos); err != nil {
		return "", err
	}
	start := time.Now()
	ack, err := r.a.SetPosition(ctx, pos)
	r.metrics.ObserveCommand(motor.OpSetPosition.String(), result(err), time.Since(start))
	return ack, err
}

// Recalibrate seeks a limit and re-zeroes the position counter to it,
// removing accumulated drift.
func (r *Rig) Recalibrate(ctx context.Context, side Side) error {
	seek, limit := r.SeekLeftLimit, r.layout.LeftLimit()
	if side == Right {
		seek, limit = r.SeekRightLimit, r.layout.RightLimit()
	}
	if err := seek(ctx); err != nil {
		return fmt.Errorf("seek %s limit: %w", side, err)
	}
	if _, err := r.SetPosition(ctx, limit); err != nil {
		return fmt.Errorf("set %s limit: %w", side, err)
	}
	return nil
}
