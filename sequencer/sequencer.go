// Package sequencer runs an experiment: every odor, for every trial, at every
// locust pair, with the rig repositioned between pairs.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/mastercactapus/odorrig/metrics"
	"github.com/mastercactapus/odorrig/rail"
)

const eventBuffer = 64

// Rig is the motion the sequencer needs.
type Rig interface {
	HomeToCenter(ctx context.Context) error
	MoveTo(ctx context.Context, pos int64) error
	AdvanceToNextPair(ctx context.Context) (bool, error)
	EmergencyStop() error
}

// TrialAction runs one trial at the current station. phase is called with
// any intermediate state the action enters.
type TrialAction interface {
	RunTrial(ctx context.Context, s Step, phase func(State)) error
}

// Config describes an experiment.
type Config struct {
	Odors  int
	Trials int
	Layout rail.PairLayout

	// HomeSettle is waited after homing.
	HomeSettle time.Duration

	// PreDelay and PostDelay surround every trial action.
	PreDelay  time.Duration
	PostDelay time.Duration

	Metrics *metrics.Collector
}

// DefaultConfig returns the timing used on the rig for the given layout.
func DefaultConfig(layout rail.PairLayout) Config {
	return Config{
		Odors:      8,
		Trials:     3,
		Layout:     layout,
		HomeSettle: time.Second,
		PreDelay:   500 * time.Millisecond,
		PostDelay:  500 * time.Millisecond,
	}
}

// Sequencer drives a Rig and a TrialAction through a Plan.
type Sequencer struct {
	rig    Rig
	action TrialAction
	cfg    Config
	sleep  func(context.Context, time.Duration) error

	mx     sync.Mutex
	cur    Event
	cancel context.CancelFunc
	events chan Event
}

func New(rig Rig, action TrialAction, cfg Config) (*Sequencer, error) {
	if cfg.Odors < 0 || cfg.Trials < 0 {
		return nil, fmt.Errorf("invalid plan: %d odors, %d trials", cfg.Odors, cfg.Trials)
	}
	if cfg.Layout.Pairs < 2 {
		return nil, rail.ErrTooFewPairs
	}
	return &Sequencer{
		rig:    rig,
		action: action,
		cfg:    cfg,
		sleep:  Sleep,
		cur:    Event{State: Idle, Time: time.Now()},
		events: make(chan Event, eventBuffer),
	}, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Events returns state transitions as they happen. Events are dropped
// rather than stalling the run if nobody is reading.
func (s *Sequencer) Events() <-chan Event { return s.events }

// Current returns the most recent transition.
func (s *Sequencer) Current() Event {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.cur
}

// Stop interrupts a running Run, which then issues an emergency stop.
func (s *Sequencer) Stop() {
	s.mx.Lock()
	cancel := s.cancel
	s.mx.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Sequencer) set(state State, step Step, err error) {
	e := Event{State: state, Step: step, Time: time.Now()}
	if err != nil {
		e.Err = err.Error()
	}
	s.mx.Lock()
	s.cur = e
	s.mx.Unlock()
	s.cfg.Metrics.SetState(int(state))

	select {
	case s.events <- e:
	default:
	}
}

// Run executes the whole experiment. It returns a *StepError for the first
// failure, after which no more motion is attempted, or ErrEmergencyStopped
// if ctx is cancelled or Stop is called.
func (s *Sequencer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mx.Lock()
	if s.cancel != nil {
		s.mx.Unlock()
		return errors.New("sequencer already running")
	}
	s.cancel = cancel
	s.mx.Unlock()
	defer func() {
		s.mx.Lock()
		s.cancel = nil
		s.mx.Unlock()
	}()

	step, err := s.run(ctx)
	switch {
	case err == nil:
		s.set(Done, step, nil)
		log.Println("All trials done")
		return nil
	case ctx.Err() != nil:
		stopErr := s.rig.EmergencyStop()
		if stopErr != nil {
			log.Println("ERROR: emergency stop:", stopErr)
		}
		s.set(EmergencyStopped, step, ErrEmergencyStopped)
		return errors.Join(fmt.Errorf("%w at %s", ErrEmergencyStopped, step), stopErr)
	}
	s.set(Aborted, step, err)
	return err
}

func (s *Sequencer) fail(state State, step Step, err error) (Step, error) {
	return step, &StepError{State: state, Step: step, Err: err}
}

func (s *Sequencer) run(ctx context.Context) (Step, error) {
	var step Step
	right := s.cfg.Layout.RightLimit()

	s.set(Homing, step, nil)
	if err := s.rig.HomeToCenter(ctx); err != nil {
		return s.fail(Homing, step, err)
	}
	if err := s.sleep(ctx, s.cfg.HomeSettle); err != nil {
		return s.fail(Homing, step, err)
	}

	plan := NewPlan(s.cfg.Odors, s.cfg.Trials, s.cfg.Layout.Pairs)
	for {
		next, err := plan.Next()
		if err == io.EOF {
			break
		}
		step = next

		if plan.FirstOfOdor(step) {
			s.set(ReadyForOdor, step, nil)
		}
		if step.Pair == 0 {
			if err := s.rig.MoveTo(ctx, right); err != nil {
				return s.fail(PositionedAtRight, step, err)
			}
			s.set(PositionedAtRight, step, nil)
		}

		if err := s.sleep(ctx, s.cfg.PreDelay); err != nil {
			return s.fail(Recording, step, err)
		}
		s.set(Recording, step, nil)
		phase := func(st State) { s.set(st, step, nil) }
		if err := s.action.RunTrial(ctx, step, phase); err != nil {
			return s.fail(Recording, step, err)
		}
		s.cfg.Metrics.IncTrials()
		if err := s.sleep(ctx, s.cfg.PostDelay); err != nil {
			return s.fail(Advancing, step, err)
		}

		s.set(Advancing, step, nil)
		if _, err := s.rig.AdvanceToNextPair(ctx); err != nil {
			return s.fail(Advancing, step, err)
		}

		if plan.LastOfTrial(step) {
			// Rest between trials at the right limit rather than at the
			// last pair visited.
			if err := s.rig.MoveTo(ctx, right); err != nil {
				return s.fail(PositionedAtRight, step, err)
			}
			s.set(PositionedAtRight, step, nil)
		}
	}

	s.set(Resetting, step, nil)
	if err := s.rig.MoveTo(ctx, s.cfg.Layout.Middle()); err != nil {
		return s.fail(Resetting, step, err)
	}
	return step, nil
}
