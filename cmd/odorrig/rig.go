package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mastercactapus/odorrig/machine"
	"github.com/mastercactapus/odorrig/metrics"
	"github.com/mastercactapus/odorrig/motor"
	"github.com/mastercactapus/odorrig/odor"
	"github.com/mastercactapus/odorrig/rail"
	"github.com/mastercactapus/odorrig/simulator"
	"github.com/mastercactapus/odorrig/spjs"
	"github.com/mastercactapus/odorrig/transport"
)

var acmDevices = []string{"/dev/ttyACM0", "/dev/ttyACM1"}

func (o *Options) layout() (rail.PairLayout, error) {
	g, err := rail.NewGeometry(o.TotalSteps, o.EndBuffer)
	if err != nil {
		return rail.PairLayout{}, err
	}
	return rail.NewPairLayout(g, o.Pairs)
}

func (o *Options) motorDevice() string {
	if o.MotorDevice != "" {
		return o.MotorDevice
	}
	return transport.FirstExisting(acmDevices...)
}

func (o *Options) odorDevice() string {
	if o.OdorDevice != "" {
		return o.OdorDevice
	}
	m := o.motorDevice()
	var rest []string
	for _, d := range acmDevices {
		if d != m {
			rest = append(rest, d)
		}
	}
	return transport.FirstExisting(rest...)
}

func (o *Options) motorConfig() motor.Config {
	return motor.Config{MaxWait: o.MaxWait, Debug: o.Debug}
}

// dialMotor opens the motor session over whichever link the options select.
func (o *Options) dialMotor(ctx context.Context, g rail.Geometry) (*motor.Conn, error) {
	switch {
	case o.Simulate:
		log.Println("Using simulated motor controller")
		dev := simulator.New(g)
		dev.MoveDelay = 20 * time.Millisecond
		dev.Chatter = o.Debug
		p, err := transport.Wrap("simulator", dev)
		if err != nil {
			return nil, err
		}
		return motor.Open(ctx, p, 0, o.motorConfig())
	case o.SPJS != "":
		sp := spjs.NewSPJS(o.SPJS)
		p, err := transport.Wrap(o.SPJS+"#"+o.motorDevice(), &spjsLink{Port: sp.Port(o.motorDevice(), o.MotorBaud), sp: sp})
		if err != nil {
			sp.Close()
			return nil, err
		}
		return motor.Open(ctx, p, o.BootSettle, o.motorConfig())
	}

	dev := o.motorDevice()
	log.Println("Opening motor controller on", dev)
	return motor.Dial(ctx, transport.Config{Device: dev, Baud: o.MotorBaud}, o.BootSettle, o.motorConfig())
}

// spjsLink closes the SPJS client along with its port.
type spjsLink struct {
	*spjs.Port
	sp *spjs.SPJS
}

func (l *spjsLink) Close() error {
	err := l.Port.Close()
	return errors.Join(err, l.sp.Close())
}

// logWriter logs valve lines in simulation.
type logWriter struct{ prefix string }

func (w logWriter) Write(p []byte) (int, error) {
	log.Printf("%s%s", w.prefix, p)
	return len(p), nil
}

func (o *Options) dialValve(ctx context.Context) (*odor.Valve, error) {
	if o.Simulate {
		return odor.NewValve(logWriter{prefix: "odor: "}), nil
	}
	dev := o.odorDevice()
	if dev == "" {
		return nil, fmt.Errorf("no odor device available")
	}
	log.Println("Opening odor controller on", dev)
	return odor.Dial(ctx, transport.Config{Device: dev, Baud: o.OdorBaud}, o.BootSettle)
}

// rig bundles the open hardware for a command.
type rig struct {
	conn    *motor.Conn
	rig     *machine.Rig
	metrics *metrics.Collector

	closers []io.Closer
}

func (o *Options) openRig(ctx context.Context) (*rig, error) {
	layout, err := o.layout()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, err
	}
	conn, err := o.dialMotor(ctx, layout.Geometry)
	if err != nil {
		return nil, fmt.Errorf("open motor controller: %w", err)
	}
	return &rig{
		conn:    conn,
		rig:     machine.NewRig(conn, layout, machine.Options{AdvanceGuard: o.AdvanceGuard, Metrics: col}),
		metrics: col,
		closers: []io.Closer{conn},
	}, nil
}

func (r *rig) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
