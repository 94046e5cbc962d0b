package rail

import (
	"errors"
	"fmt"
)

// ErrTooFewPairs is returned for layouts with fewer than two stations.
var ErrTooFewPairs = errors.New("at least 2 locust pairs are required")

// PairLayout spaces Pairs stations evenly across the usable span,
// station 0 at the right limit.
type PairLayout struct {
	Geometry
	Pairs int
}

// NewPairLayout validates the geometry and pair count.
func NewPairLayout(g Geometry, pairs int) (PairLayout, error) {
	if err := g.Validate(); err != nil {
		return PairLayout{}, err
	}
	if pairs < 2 {
		return PairLayout{}, fmt.Errorf("%w: got %d", ErrTooFewPairs, pairs)
	}
	return PairLayout{Geometry: g, Pairs: pairs}, nil
}

// MoveInterval is the step distance between adjacent stations.
//
// The division truncates, so MoveInterval*(Pairs-1) falls short of
// UsableSteps by less than Pairs-1 steps.
func (l PairLayout) MoveInterval() int64 {
	return l.UsableSteps() / int64(l.Pairs-1)
}

// Station returns the position of station i, counted from the right limit.
func (l PairLayout) Station(i int) int64 {
	return l.Clamp(l.RightLimit() - int64(i)*l.MoveInterval())
}

// Stations returns every station position, right to left.
func (l PairLayout) Stations() []int64 {
	res := make([]int64, l.Pairs)
	for i := range res {
		res[i] = l.Station(i)
	}
	return res
}

// Locusts is the number of animals on the rig, one per camera per pair.
func (l PairLayout) Locusts() int { return l.Pairs * 2 }

// LeftLocust returns the 1-based number of the locust the left camera sees
// at pair i. Left holds the odd numbers, right the even ones.
func LeftLocust(pair int) int  { return 2*pair + 1 }
func RightLocust(pair int) int { return 2*pair + 2 }
