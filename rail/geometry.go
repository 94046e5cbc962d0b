package rail

import (
	"errors"
	"fmt"
)

// Measured rail length and the inward offset kept from each physical limit.
const (
	DefaultTotalSteps = 184245
	DefaultEndBuffer  = 150
)

// ErrInvalidGeometry is returned when the derived limits are not ordered
// 0 <= left < middle < right <= total.
var ErrInvalidGeometry = errors.New("invalid rail geometry")

// Geometry describes the usable span of the rail in motor steps.
type Geometry struct {
	TotalSteps int64
	EndBuffer  int64
}

// DefaultGeometry returns the geometry of the measured rig.
func DefaultGeometry() Geometry {
	return Geometry{TotalSteps: DefaultTotalSteps, EndBuffer: DefaultEndBuffer}
}

// NewGeometry validates and returns a Geometry.
func NewGeometry(totalSteps, endBuffer int64) (Geometry, error) {
	g := Geometry{TotalSteps: totalSteps, EndBuffer: endBuffer}
	return g, g.Validate()
}

func (g Geometry) LeftLimit() int64   { return g.EndBuffer }
func (g Geometry) RightLimit() int64  { return g.TotalSteps - g.EndBuffer }
func (g Geometry) UsableSteps() int64 { return g.TotalSteps - 2*g.EndBuffer }

// Middle is half the usable span, truncated. It is measured from zero, not
// from the left limit, matching the rest position the rig parks at.
func (g Geometry) Middle() int64 { return g.UsableSteps() / 2 }

// Validate checks the ordering invariant of the derived positions.
func (g Geometry) Validate() error {
	left, mid, right := g.LeftLimit(), g.Middle(), g.RightLimit()
	if left < 0 || left >= mid || mid >= right || right > g.TotalSteps {
		return fmt.Errorf("%w: total=%d buffer=%d (left=%d middle=%d right=%d)",
			ErrInvalidGeometry, g.TotalSteps, g.EndBuffer, left, mid, right)
	}
	return nil
}

// Contains reports whether pos lies within [LeftLimit, RightLimit].
func (g Geometry) Contains(pos int64) bool {
	return pos >= g.LeftLimit() && pos <= g.RightLimit()
}

// Clamp limits pos to [LeftLimit, RightLimit].
func (g Geometry) Clamp(pos int64) int64 {
	if pos < g.LeftLimit() {
		return g.LeftLimit()
	}
	if pos > g.RightLimit() {
		return g.RightLimit()
	}
	return pos
}

func (g Geometry) String() string {
	return fmt.Sprintf("rail[%d..%d of %d]", g.LeftLimit(), g.RightLimit(), g.TotalSteps)
}
