package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mastercactapus/odorrig/recorder"
	"github.com/mastercactapus/odorrig/sequencer"
)

type RunCommand struct {
	Odors  int `long:"odors" env:"ODORRIG_ODORS" default:"8" description:"Number of odor channels to present"`
	Trials int `long:"trials" env:"ODORRIG_TRIALS" default:"3" description:"Trials per odor"`

	HomeSettle time.Duration `long:"home-settle" default:"1s" description:"Wait after homing"`
	PreDelay   time.Duration `long:"pre-delay" default:"500ms" description:"Wait before each trial"`
	PostDelay  time.Duration `long:"post-delay" default:"500ms" description:"Wait after each trial"`

	Lead     time.Duration `long:"lead" default:"1s" description:"Recording time before the pre-odor window"`
	PreOdor  time.Duration `long:"pre-odor" default:"2s" description:"Recording time before the odor pulse"`
	OdorOn   time.Duration `long:"odor-on" default:"4s" description:"Odor pulse length"`
	PostOdor time.Duration `long:"post-odor" default:"2s" description:"Recording time after the odor pulse"`

	Dir         string        `long:"dir" env:"ODORRIG_DIR" default:"." description:"Base directory; recordings go in a dated folder below it"`
	Record      string        `long:"record-command" env:"ODORRIG_RECORD_COMMAND" default:"rpicam-vid --camera {camera} -t {ms} -o {output} --nopreview" description:"Recording command template ({camera}, {ms}, {seconds}, {output})"`
	RecordGrace time.Duration `long:"record-grace" default:"10s" description:"Kill a recording this long after it should have finished"`

	Addr string `long:"addr" env:"ODORRIG_ADDR" default:":9091" description:"Address for the operator API (empty to disable)"`
}

func (cmd *RunCommand) timing() sequencer.Timing {
	return sequencer.Timing{Lead: cmd.Lead, PreOdor: cmd.PreOdor, OdorOn: cmd.OdorOn, PostOdor: cmd.PostOdor}
}

func (cmd *RunCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	launcher, err := recorder.NewExec(cmd.Record, cmd.RecordGrace)
	if err != nil {
		return err
	}

	r, err := opts.openRig(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	valve, err := opts.dialValve(ctx)
	if err != nil {
		return err
	}
	r.closers = append(r.closers, valve)

	layout := recorder.DatedLayout(cmd.Dir, time.Now())
	seq, err := sequencer.New(r.rig, &sequencer.TrialRunner{
		Launcher: launcher,
		Valve:    valve,
		Paths:    layout,
		Timing:   cmd.timing(),
	}, sequencer.Config{
		Odors:      cmd.Odors,
		Trials:     cmd.Trials,
		Layout:     r.rig.Layout(),
		HomeSettle: cmd.HomeSettle,
		PreDelay:   cmd.PreDelay,
		PostDelay:  cmd.PostDelay,
		Metrics:    r.metrics,
	})
	if err != nil {
		return err
	}

	if cmd.Addr != "" {
		srv := &http.Server{Addr: cmd.Addr, Handler: withCORS(newAPI(seq, r.metrics.Gatherer(), layout.Root))}
		go func() {
			err := srv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Println("ERROR: serve:", err)
			}
		}()
		defer srv.Close()
		log.Println("Operator API on", cmd.Addr)
	}

	pairs := r.rig.Layout()
	log.Printf("Running %d odors x %d trials x %d pairs (%d locusts), recording to %s", cmd.Odors, cmd.Trials, pairs.Pairs, pairs.Locusts(), layout.Root)
	err = seq.Run(ctx)
	if err != nil {
		log.Println("ERROR: run:", err)
	}
	return err
}
