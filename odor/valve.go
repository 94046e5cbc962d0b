// Package odor drives the odor delivery valves over their own serial link.
package odor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mastercactapus/odorrig/transport"
)

// DefaultBaud is the valve controller link speed.
const DefaultBaud = 9600

// Valve writes ODOR_ON/ODOR_OFF lines. Nothing is read back.
type Valve struct {
	mx sync.Mutex
	w  io.Writer
}

// NewValve takes ownership of w.
func NewValve(w io.Writer) *Valve {
	return &Valve{w: w}
}

// Dial opens the valve controller's serial device and waits settle for it
// to boot.
func Dial(ctx context.Context, tc transport.Config, settle time.Duration) (*Valve, error) {
	if tc.Baud == 0 {
		tc.Baud = DefaultBaud
	}
	if tc.ReadTimeout == 0 {
		tc.ReadTimeout = time.Second
	}
	p, err := transport.Open(tc)
	if err != nil {
		return nil, err
	}
	t := time.NewTimer(settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		p.Close()
		return nil, ctx.Err()
	case <-t.C:
	}
	return NewValve(p), nil
}

func (v *Valve) write(cmd string, channel int) error {
	v.mx.Lock()
	defer v.mx.Unlock()
	_, err := fmt.Fprintf(v.w, "%s %d\n", cmd, channel)
	if err != nil {
		return fmt.Errorf("odor: %s %d: %w", cmd, channel, err)
	}
	return nil
}

// On opens the valve for channel.
func (v *Valve) On(channel int) error { return v.write("ODOR_ON", channel) }

// Off closes the valve for channel.
func (v *Valve) Off(channel int) error { return v.write("ODOR_OFF", channel) }

// Close closes the underlying writer if it implements io.Closer.
func (v *Valve) Close() error {
	if c, ok := v.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
