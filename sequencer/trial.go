package sequencer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mastercactapus/odorrig/recorder"
)

// Timing is the shape of one trial. Recording spans Total; the odor is on
// from Lead+PreOdor until Lead+PreOdor+OdorOn.
type Timing struct {
	Lead     time.Duration
	PreOdor  time.Duration
	OdorOn   time.Duration
	PostOdor time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Lead:     time.Second,
		PreOdor:  2 * time.Second,
		OdorOn:   4 * time.Second,
		PostOdor: 2 * time.Second,
	}
}

func (t Timing) Total() time.Duration {
	return t.Lead + t.PreOdor + t.OdorOn + t.PostOdor
}

// Valve delivers odor pulses.
type Valve interface {
	On(channel int) error
	Off(channel int) error
}

// Paths places a pair's recordings.
type Paths interface {
	PairPaths(odor, trial, pair int) (left, right string, err error)
}

// TrialRunner records both cameras while pulsing the trial's odor.
type TrialRunner struct {
	Launcher recorder.Launcher
	Valve    Valve
	Paths    Paths
	Timing   Timing

	// Sleep defaults to the package Sleep.
	Sleep func(context.Context, time.Duration) error
}

var _ TrialAction = &TrialRunner{}

func (r *TrialRunner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// RunTrial returns once both recordings have exited.
func (r *TrialRunner) RunTrial(ctx context.Context, s Step, phase func(State)) error {
	left, right, err := r.Paths.PairPaths(s.Odor, s.Trial, s.Pair)
	if err != nil {
		return err
	}
	log.Printf("Odor %d, Trial %d, Pair %d", s.Odor, s.Trial+1, s.Pair+1)

	rec := recorder.RecordPair(ctx, r.Launcher, r.Timing.Total(), left, right)
	pulseErr := r.pulse(ctx, s.Odor, phase)
	if err := errors.Join(pulseErr, rec.Wait()); err != nil {
		return err
	}

	log.Printf("Saved videos %s & %s", left, right)
	return nil
}

func (r *TrialRunner) pulse(ctx context.Context, odor int, phase func(State)) error {
	err := r.sleep(ctx, r.Timing.Lead+r.Timing.PreOdor)
	if err == nil {
		err = r.Valve.On(odor)
	}
	if err == nil {
		if phase != nil {
			phase(OdorPulse)
		}
		err = r.sleep(ctx, r.Timing.OdorOn)
	}
	// the valve is closed on every path, including cancellation
	return errors.Join(err, r.Valve.Off(odor))
}
