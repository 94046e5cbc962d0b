// Package simulator emulates the rail's motor controller firmware over an
// in-memory stream, for tests and dry runs.
package simulator

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/odorrig/motor"
	"github.com/mastercactapus/odorrig/rail"
)

// Device speaks the motor protocol like the rig firmware does.
type Device struct {
	geom rail.Geometry

	// MoveDelay is how long every motion takes. Zero completes motions
	// before Write returns.
	MoveDelay time.Duration

	// Chatter enables the debug lines the firmware prints around motions.
	Chatter bool

	mx       sync.Mutex
	cond     *sync.Cond
	in       []byte
	out      bytes.Buffer
	closed   bool
	pos      int64
	received []string
	faults   []fault
	stop     chan struct{}
}

type fault struct {
	prefix string
	reply  string
}

var _ io.ReadWriteCloser = &Device{}

// New returns a device for the given rail. The carriage starts at 0,
// as the firmware does after reset.
func New(g rail.Geometry) *Device {
	d := &Device{geom: g, Chatter: true}
	d.cond = sync.NewCond(&d.mx)
	return d
}

// FailOn makes every command starting with prefix answer "ERROR msg".
func (d *Device) FailOn(prefix, msg string) {
	d.mx.Lock()
	d.faults = append(d.faults, fault{prefix: prefix, reply: "ERROR " + msg})
	d.mx.Unlock()
}

// Position returns the simulated carriage position.
func (d *Device) Position() int64 {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.pos
}

// Place moves the carriage without any protocol traffic.
func (d *Device) Place(pos int64) {
	d.mx.Lock()
	d.pos = pos
	d.mx.Unlock()
}

// Received returns every command line written to the device so far.
func (d *Device) Received() []string {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]string(nil), d.received...)
}

// Motions returns the received lines that move the carriage.
func (d *Device) Motions() []string {
	var res []string
	for _, line := range d.Received() {
		cmd, err := motor.ParseCommand(line)
		if err == nil && cmd.Op.IsMotion() {
			res = append(res, line)
		}
	}
	return res
}

func (d *Device) Read(p []byte) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	for d.out.Len() == 0 && !d.closed {
		d.cond.Wait()
	}
	if d.out.Len() == 0 {
		return 0, io.EOF
	}
	return d.out.Read(p)
}

func (d *Device) Write(p []byte) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return 0, io.ErrClosedPipe
	}
	d.in = append(d.in, p...)
	for {
		i := bytes.IndexByte(d.in, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(d.in[:i]))
		d.in = d.in[i+1:]
		if line != "" {
			d.handle(line)
		}
	}
	return len(p), nil
}

func (d *Device) Close() error {
	d.mx.Lock()
	d.closed = true
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	d.cond.Broadcast()
	d.mx.Unlock()
	return nil
}

func (d *Device) println(format string, args ...interface{}) {
	fmt.Fprintf(&d.out, format+"\r\n", args...)
	d.cond.Broadcast()
}

func (d *Device) debugf(format string, args ...interface{}) {
	if d.Chatter {
		d.println(format, args...)
	}
}

// handle is called with d.mx held.
func (d *Device) handle(line string) {
	d.received = append(d.received, line)
	for _, f := range d.faults {
		if strings.HasPrefix(line, f.prefix) {
			d.println("%s", f.reply)
			return
		}
	}

	cmd, err := motor.ParseCommand(line)
	if err != nil {
		d.println("ERROR Unknown command: %s", line)
		return
	}

	left, right := d.geom.LeftLimit(), d.geom.RightLimit()
	switch cmd.Op {
	case motor.OpMoveTo:
		target := d.geom.Clamp(cmd.Arg)
		dir := "LEFT"
		if target > d.pos {
			dir = "RIGHT"
		}
		d.debugf("Moving from %d to %d (Direction: %s)", d.pos, target, dir)
		d.move(target)
	case motor.OpMoveLeft:
		steps := min(cmd.Arg, d.pos-left)
		if steps < 0 {
			steps = 0
		}
		d.debugf("Moving left %d steps", steps)
		d.move(d.pos - steps)
	case motor.OpMoveRight:
		steps := min(cmd.Arg, right-d.pos)
		if steps < 0 {
			steps = 0
		}
		d.debugf("Moving right %d steps", steps)
		d.move(d.pos + steps)
	case motor.OpHomeToCenter:
		d.debugf("Seeking left limit...")
		d.pos = left
		d.debugf("Found left limit, position set to: %d", d.pos)
		d.move(left + d.geom.UsableSteps()/2)
	case motor.OpSeekLeftLimit:
		d.debugf("Seeking left limit...")
		d.move(left)
	case motor.OpSeekRightLimit:
		d.debugf("Seeking right limit...")
		d.move(right)
	case motor.OpSetPosition:
		d.pos = d.geom.Clamp(cmd.Arg)
		d.println("Position manually set to: %d", d.pos)
	case motor.OpGetPosition:
		d.println("POS %d", d.pos)
	case motor.OpEmergencyStop:
		if d.stop != nil {
			close(d.stop)
			d.stop = nil
		}
	}
}

// move is called with d.mx held.
func (d *Device) move(target int64) {
	if d.MoveDelay <= 0 {
		d.pos = target
		d.println(motor.MovementComplete)
		return
	}

	stop := make(chan struct{})
	d.stop = stop
	go func() {
		t := time.NewTimer(d.MoveDelay)
		defer t.Stop()
		select {
		case <-t.C:
			d.mx.Lock()
			if d.stop == stop {
				d.stop = nil
				d.pos = target
				d.println(motor.MovementComplete)
			}
			d.mx.Unlock()
		case <-stop:
			d.mx.Lock()
			if !d.closed {
				d.println("MOVEMENT_STOPPED")
			}
			d.mx.Unlock()
		}
	}()
}
