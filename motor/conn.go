package motor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/odorrig/transport"
)

const lineBuffer = 64

const movementStopped = "MOVEMENT_STOPPED"

// DefaultStopSettle is how long EmergencyStop waits after writing.
const DefaultStopSettle = 100 * time.Millisecond

// Config tunes a Conn.
type Config struct {
	// MaxWait bounds each command's wait for a response. Zero waits forever.
	//
	// A motion abandoned by MaxWait or ctx may still be running. Its late
	// MOVEMENT_COMPLETE or MOVEMENT_STOPPED is swallowed by the next command.
	// If the device never sends it, the next motion's own completion is
	// swallowed instead, so re-home after an abandoned motion.
	MaxWait time.Duration

	// StopSettle is slept after an emergency stop is written.
	StopSettle time.Duration

	// Debug logs discarded device lines.
	Debug bool
}

// Conn represents a connection to the rig's motor controller.
//
// Only one command is in flight at a time. EmergencyStop bypasses
// the command lock and may be called while a command is waiting.
type Conn struct {
	rw  io.ReadWriter
	cfg Config

	lines   chan string
	closeCh chan struct{}
	failCh  chan struct{}
	readErr error

	mx  sync.Mutex // serializes writes to rw
	wMx sync.Mutex // held for a full command round-trip

	abandoned int // motions given up on whose end line is still due, guarded by wMx

	posMx    sync.Mutex
	pos      int64
	posValid bool

	closeOnce sync.Once
	failOnce  sync.Once
}

// NewConn creates a new Conn using the provided ReadWriter for data and
// starts reading lines from it.
func NewConn(rw io.ReadWriter, cfg Config) *Conn {
	if cfg.StopSettle == 0 {
		cfg.StopSettle = DefaultStopSettle
	}
	c := &Conn{
		rw:      rw,
		cfg:     cfg,
		lines:   make(chan string, lineBuffer),
		closeCh: make(chan struct{}),
		failCh:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close will abort any in-progress waits and close the
// underlying ReadWriter, if it implements io.Closer.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if closer, ok := c.rw.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

func (c *Conn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Conn) fail(err error) {
	c.failOnce.Do(func() {
		c.readErr = err
		close(c.failCh)
	})
}

func (c *Conn) readLoop() {
	r := bufio.NewReader(c.rw)
	var partial []byte
	for {
		data, err := r.ReadBytes('\n')
		partial = append(partial, data...)
		if err != nil {
			if c.closed() {
				return
			}
			if transport.IsTimeout(err) {
				continue
			}
			c.fail(&TransportError{Op: "read", Err: err})
			return
		}

		line := strings.TrimSpace(string(partial))
		partial = partial[:0]
		if line == "" {
			continue
		}
		select {
		case c.lines <- line:
		case <-c.closeCh:
			return
		}
	}
}

// next returns the next line from the device. Lines already read are
// returned before any close or failure is reported.
func (c *Conn) next(ctx context.Context, deadline <-chan time.Time) (string, error) {
	select {
	case line := <-c.lines:
		return line, nil
	default:
	}

	select {
	case line := <-c.lines:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-deadline:
		return "", ErrTimeout
	case <-c.closeCh:
		return "", ErrClosed
	case <-c.failCh:
		return "", c.readErr
	}
}

// settled consumes line if it ends a previously abandoned motion. wMx must be held.
func (c *Conn) settled(line string) bool {
	if c.abandoned == 0 || (line != MovementComplete && line != movementStopped) {
		return false
	}
	c.abandoned--
	if c.cfg.Debug {
		log.Println("motor: end of abandoned motion:", line)
	}
	return true
}

// abandon records that the motion in flight has been given up on.
func (c *Conn) abandon(ctx context.Context, err error) {
	if errors.Is(err, ErrTimeout) || ctx.Err() != nil {
		c.abandoned++
	}
}

// drain discards lines the device sent before the next command.
func (c *Conn) drain() {
	for {
		select {
		case line := <-c.lines:
			if c.settled(line) {
				continue
			}
			if c.cfg.Debug {
				log.Println("motor: discard stale:", line)
			}
		default:
			return
		}
	}
}

// writeLine will block until line has been written to the device in full.
func (c *Conn) writeLine(line string) error {
	if c.closed() {
		return ErrClosed
	}
	select {
	case <-c.failCh:
		return c.readErr
	default:
	}

	c.mx.Lock()
	_, err := io.WriteString(c.rw, line+"\n")
	c.mx.Unlock()
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (c *Conn) deadline() (<-chan time.Time, func()) {
	if c.cfg.MaxWait <= 0 {
		return nil, func() {}
	}
	t := time.NewTimer(c.cfg.MaxWait)
	return t.C, func() { t.Stop() }
}

// Send writes cmd and returns the first line the device answers with.
//
// Use it for commands that answer immediately, like GET_POS and SET_POS.
func (c *Conn) Send(ctx context.Context, cmd Command) (string, error) {
	if cmd.Op == OpEmergencyStop {
		return "", c.EmergencyStop()
	}
	c.wMx.Lock()
	defer c.wMx.Unlock()

	c.drain()
	if cmd.Op.IsMotion() {
		c.invalidate()
	}
	if err := c.writeLine(cmd.String()); err != nil {
		return "", err
	}

	deadline, stop := c.deadline()
	defer stop()
	var line string
	for {
		var err error
		line, err = c.next(ctx, deadline)
		if err != nil {
			if cmd.Op.IsMotion() {
				c.abandon(ctx, err)
			}
			return "", fmt.Errorf("%s: %w", cmd, err)
		}
		if !c.settled(line) {
			break
		}
	}
	if err := parseDevice(line); err != nil {
		return "", err
	}
	return line, nil
}

// SendAndAwait writes cmd and blocks until the device prints token or an
// ERROR line. Any other line is discarded.
//
// If token is empty the command's own completion token is used.
func (c *Conn) SendAndAwait(ctx context.Context, cmd Command, token string) error {
	if token == "" {
		token = cmd.Completion()
	}
	if token == "" {
		return fmt.Errorf("%s: no completion token", cmd.Op)
	}
	c.wMx.Lock()
	defer c.wMx.Unlock()

	c.drain()
	c.invalidate()
	if err := c.writeLine(cmd.String()); err != nil {
		return err
	}

	deadline, stop := c.deadline()
	defer stop()
	for {
		line, err := c.next(ctx, deadline)
		if err != nil {
			c.abandon(ctx, err)
			return fmt.Errorf("%s: %w", cmd, err)
		}
		if err := parseDevice(line); err != nil {
			return err
		}
		if c.settled(line) {
			continue
		}
		if line == token {
			return nil
		}
		if c.cfg.Debug {
			log.Println("motor:", line)
		}
	}
}

// EmergencyStop writes EMERGENCY_STOP without waiting for any in-flight
// command or for an acknowledgement.
func (c *Conn) EmergencyStop() error {
	c.invalidate()
	err := c.writeLine(EmergencyStop().String())
	time.Sleep(c.cfg.StopSettle)
	return err
}
