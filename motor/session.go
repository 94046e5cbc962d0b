package motor

import (
	"context"
	"io"
	"time"

	"github.com/mastercactapus/odorrig/transport"
)

// DefaultBootSettle is how long the controller takes to reset after its
// port is opened.
const DefaultBootSettle = 2 * time.Second

// DefaultBaud is the motor link speed.
const DefaultBaud = 115200

// Open starts a session on an already opened stream. It waits settle for
// the device to boot before returning. The Conn owns rwc from here on.
func Open(ctx context.Context, rwc io.ReadWriteCloser, settle time.Duration, cfg Config) (*Conn, error) {
	if settle > 0 {
		t := time.NewTimer(settle)
		select {
		case <-ctx.Done():
			t.Stop()
			rwc.Close()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return NewConn(rwc, cfg), nil
}

// Dial opens the serial device described by tc and starts a session on it.
func Dial(ctx context.Context, tc transport.Config, settle time.Duration, cfg Config) (*Conn, error) {
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
	return Open(ctx, p, settle, cfg)
}
