package sequencer

import (
	"fmt"
	"io"
)

// Step identifies one trial of one pair. All fields are 0-based.
type Step struct {
	Odor  int `json:"odor"`
	Trial int `json:"trial"`
	Pair  int `json:"pair"`
}

func (s Step) String() string {
	return fmt.Sprintf("odor %d trial %d pair %d", s.Odor+1, s.Trial+1, s.Pair+1)
}

// Plan iterates odors, then trials, then pairs.
type Plan struct {
	Odors, Trials, Pairs int

	n int
}

func NewPlan(odors, trials, pairs int) *Plan {
	return &Plan{Odors: odors, Trials: trials, Pairs: pairs}
}

// Len is the total number of steps.
func (p *Plan) Len() int {
	if p.Odors <= 0 || p.Trials <= 0 || p.Pairs <= 0 {
		return 0
	}
	return p.Odors * p.Trials * p.Pairs
}

// Next returns the next step, or io.EOF when the plan is exhausted.
func (p *Plan) Next() (Step, error) {
	if p.n >= p.Len() {
		return Step{}, io.EOF
	}
	i := p.n
	p.n++
	return Step{
		Odor:  i / (p.Trials * p.Pairs),
		Trial: i / p.Pairs % p.Trials,
		Pair:  i % p.Pairs,
	}, nil
}

// FirstOfOdor reports whether s starts a new odor.
func (p *Plan) FirstOfOdor(s Step) bool { return s.Trial == 0 && s.Pair == 0 }

// LastOfTrial reports whether s is the last pair of its trial.
func (p *Plan) LastOfTrial(s Step) bool { return s.Pair == p.Pairs-1 }
