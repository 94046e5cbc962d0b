package motor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mastercactapus/odorrig/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeRW struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (p *pipeRW) Close() error {
	for _, c := range p.closers {
		c.Close()
	}
	return nil
}

// device is the far end of a Conn under test.
type device struct {
	t    *testing.T
	out  *io.PipeWriter
	scan *bufio.Scanner
}

func newTestConn(t *testing.T, cfg Config) (*Conn, *device) {
	toConnR, toConnW := io.Pipe()
	fromConnR, fromConnW := io.Pipe()
	if cfg.StopSettle == 0 {
		cfg.StopSettle = time.Millisecond
	}
	c := NewConn(&pipeRW{
		Reader:  toConnR,
		Writer:  fromConnW,
		closers: []io.Closer{toConnR, fromConnW},
	}, cfg)
	t.Cleanup(func() { c.Close() })

	return c, &device{t: t, out: toConnW, scan: bufio.NewScanner(fromConnR)}
}

func (d *device) expect(line string) {
	d.t.Helper()
	require.True(d.t, d.scan.Scan(), "expected line %q", line)
	assert.Equal(d.t, line, d.scan.Text())
}

func (d *device) send(lines ...string) {
	d.t.Helper()
	for _, l := range lines {
		_, err := io.WriteString(d.out, l+"\r\n")
		require.NoError(d.t, err)
	}
}

func async(fn func() error) chan error {
	ch := make(chan error, 1)
	go func() { ch <- fn() }()
	return ch
}

func result(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command")
		return nil
	}
}

func TestConn_SendAndAwait(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	done := async(func() error {
		return c.SendAndAwait(context.Background(), MoveTo(184095), MovementComplete)
	})
	dev.expect("MOVE_TO 184095")
	dev.send("Moving from 0 to 184095 (Direction: RIGHT)", "MOVEMENT_COMPLETE_NOT", "MOVEMENT_COMPLETE")
	assert.NoError(t, result(t, done))
}

func TestConn_SendAndAwait_DeviceError(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	done := async(func() error {
		return c.SendAndAwait(context.Background(), HomeToCenter(), "")
	})
	dev.expect("HOME_TO_CENTER")
	dev.send("Seeking left limit...", "ERROR bad state")

	err := result(t, done)
	var de *DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ERROR bad state", de.Message)
}

func TestConn_SendAndAwait_NoToken(t *testing.T) {
	c, _ := newTestConn(t, Config{})
	err := c.SendAndAwait(context.Background(), GetPosition(), "")
	assert.Error(t, err)
}

func TestConn_GetPosition(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	_, ok := c.LastPosition()
	assert.False(t, ok)

	for i := 0; i < 2; i++ {
		var pos int64
		done := async(func() (err error) {
			pos, err = c.GetPosition(context.Background())
			return err
		})
		dev.expect("GET_POS")
		dev.send("POS 92122")
		require.NoError(t, result(t, done))
		assert.EqualValues(t, 92122, pos)
	}

	pos, ok := c.LastPosition()
	assert.True(t, ok)
	assert.EqualValues(t, 92122, pos)

	done := async(func() error {
		return c.SendAndAwait(context.Background(), MoveLeft(10), "")
	})
	dev.expect("MOVE_LEFT 10")
	_, ok = c.LastPosition()
	assert.False(t, ok)
	dev.send(MovementComplete)
	require.NoError(t, result(t, done))
}

func TestConn_GetPosition_Unexpected(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	done := async(func() error {
		_, err := c.GetPosition(context.Background())
		return err
	})
	dev.expect("GET_POS")
	dev.send("Motor controller ready")

	var ur *UnexpectedResponseError
	require.ErrorAs(t, result(t, done), &ur)
	assert.Equal(t, "Motor controller ready", ur.Line)
}

func TestConn_SetPosition(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	var ack string
	done := async(func() (err error) {
		ack, err = c.SetPosition(context.Background(), 150)
		return err
	})
	dev.expect("SET_POS 150")
	dev.send("Position manually set to: 150")
	require.NoError(t, result(t, done))
	assert.Equal(t, "Position manually set to: 150", ack)
}

func TestConn_Send_DeviceError(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	done := async(func() error {
		_, err := c.Send(context.Background(), GetPosition())
		return err
	})
	dev.expect("GET_POS")
	dev.send("ERROR not homed")

	var de *DeviceError
	assert.ErrorAs(t, result(t, done), &de)
}

func TestConn_DrainsStaleLines(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	dev.send("Motor controller ready")
	require.Eventually(t, func() bool { return len(c.lines) == 1 }, time.Second, time.Millisecond)

	var pos int64
	done := async(func() (err error) {
		pos, err = c.GetPosition(context.Background())
		return err
	})
	dev.expect("GET_POS")
	dev.send("POS 7")
	require.NoError(t, result(t, done))
	assert.EqualValues(t, 7, pos)
}

func TestConn_MaxWait(t *testing.T) {
	c, dev := newTestConn(t, Config{MaxWait: 20 * time.Millisecond})

	done := async(func() error {
		return c.SendAndAwait(context.Background(), SeekRightLimit(), "")
	})
	dev.expect("SEEK_RIGHT_LIMIT")
	dev.send("Seeking right limit...")
	assert.ErrorIs(t, result(t, done), ErrTimeout)
}

func TestConn_ContextCancel(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := async(func() error {
		return c.SendAndAwait(ctx, MoveRight(5), "")
	})
	dev.expect("MOVE_RIGHT 5")
	cancel()
	assert.ErrorIs(t, result(t, done), context.Canceled)
}

func TestConn_AbandonedMotionLateCompletion(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := async(func() error {
		return c.SendAndAwait(ctx, MoveTo(100), "")
	})
	dev.expect("MOVE_TO 100")
	cancel()
	require.ErrorIs(t, result(t, done), context.Canceled)

	done = async(func() error {
		return c.SendAndAwait(context.Background(), MoveTo(200), "")
	})
	dev.expect("MOVE_TO 200")
	dev.send("MOVEMENT_COMPLETE")
	select {
	case err := <-done:
		t.Fatalf("completion of the abandoned move confirmed the next one (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}
	dev.send("MOVEMENT_COMPLETE")
	assert.NoError(t, result(t, done))
}

func TestConn_AbandonedMotionBeforeGetPosition(t *testing.T) {
	c, dev := newTestConn(t, Config{MaxWait: 100 * time.Millisecond})

	done := async(func() error {
		return c.SendAndAwait(context.Background(), MoveRight(5), "")
	})
	dev.expect("MOVE_RIGHT 5")
	require.ErrorIs(t, result(t, done), ErrTimeout)

	var pos int64
	done = async(func() (err error) {
		pos, err = c.GetPosition(context.Background())
		return err
	})
	dev.expect("GET_POS")
	dev.send("MOVEMENT_STOPPED", "POS 9")
	require.NoError(t, result(t, done))
	assert.EqualValues(t, 9, pos)
}

func TestConn_EmergencyStopDuringWait(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := async(func() error {
		return c.SendAndAwait(ctx, MoveTo(100000), "")
	})
	dev.expect("MOVE_TO 100000")

	stopped := async(c.EmergencyStop)
	dev.expect("EMERGENCY_STOP")
	assert.NoError(t, result(t, stopped))

	dev.send("MOVEMENT_STOPPED")
	cancel()
	assert.ErrorIs(t, result(t, done), context.Canceled)
}

func TestConn_CloseAbortsWait(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	done := async(func() error {
		return c.SendAndAwait(context.Background(), HomeToCenter(), "")
	})
	dev.expect("HOME_TO_CENTER")
	c.Close()
	assert.ErrorIs(t, result(t, done), ErrClosed)

	assert.ErrorIs(t, c.SendAndAwait(context.Background(), HomeToCenter(), ""), ErrClosed)
	assert.ErrorIs(t, c.EmergencyStop(), ErrClosed)
}

func TestConn_ReadFailure(t *testing.T) {
	c, dev := newTestConn(t, Config{})

	done := async(func() error {
		return c.SendAndAwait(context.Background(), SeekLeftLimit(), "")
	})
	dev.expect("SEEK_LEFT_LIMIT")
	dev.out.CloseWithError(errors.New("unplugged"))

	var te *TransportError
	require.ErrorAs(t, result(t, done), &te)
	assert.Equal(t, "read", te.Op)
}

// timeoutReader returns read timeouts between chunks of data. No data is
// returned until start is closed.
type timeoutReader struct {
	chunks []string
	n      int
	start  chan struct{}
	block  chan struct{}
}

func (r *timeoutReader) Read(p []byte) (int, error) {
	r.n++
	if r.n%3 != 0 {
		return 0, transport.ErrReadTimeout
	}
	<-r.start
	if len(r.chunks) == 0 {
		<-r.block
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

type signalWriter struct {
	once sync.Once
	ch   chan struct{}
}

func (w *signalWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.ch) })
	return len(p), nil
}

func TestConn_ReadTimeoutKeepsWaiting(t *testing.T) {
	start := make(chan struct{})
	r := &timeoutReader{
		chunks: []string{"MOVEMENT_", "COMPLETE\n"},
		start:  start,
		block:  make(chan struct{}),
	}
	defer close(r.block)

	c := NewConn(&pipeRW{Reader: r, Writer: &signalWriter{ch: start}}, Config{})
	defer c.Close()

	done := async(func() error {
		return c.SendAndAwait(context.Background(), MoveTo(5), "")
	})
	assert.NoError(t, result(t, done))
}
