package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// ErrInUse is returned when a device already has an open Port in this process.
var ErrInUse = errors.New("device already in use")

// ErrReadTimeout is returned by Read when the read timeout elapsed with no data.
var ErrReadTimeout error = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string   { return "read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// IsTimeout reports whether err is a read timeout rather than a failure.
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Config describes a serial link.
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

var owners = struct {
	sync.Mutex
	m map[string]bool
}{m: make(map[string]bool)}

func claim(name string) error {
	owners.Lock()
	defer owners.Unlock()
	if owners.m[name] {
		return fmt.Errorf("%s: %w", name, ErrInUse)
	}
	owners.m[name] = true
	return nil
}

func release(name string) {
	owners.Lock()
	delete(owners.m, name)
	owners.Unlock()
}

// Port is an exclusively owned line transport.
type Port struct {
	name string
	rwc  io.ReadWriteCloser

	closeOnce sync.Once
	closeErr  error
}

// Open opens a serial device. Only one Port per device may be open at a time.
func Open(cfg Config) (*Port, error) {
	if cfg.Device == "" {
		return nil, errors.New("no device specified")
	}
	if err := claim(cfg.Device); err != nil {
		return nil, err
	}
	sp, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		release(cfg.Device)
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return &Port{name: cfg.Device, rwc: sp}, nil
}

// Wrap takes exclusive ownership of an already open stream under name.
func Wrap(name string, rwc io.ReadWriteCloser) (*Port, error) {
	if err := claim(name); err != nil {
		return nil, err
	}
	return &Port{name: name, rwc: rwc}, nil
}

// Read reads from the device. A timed-out read with no data returns
// ErrReadTimeout instead of io.EOF so callers can keep waiting.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.rwc.Read(b)
	if n == 0 && (err == nil || err == io.EOF) {
		return 0, ErrReadTimeout
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) { return p.rwc.Write(b) }

// Close closes the device and releases ownership. It is safe to call more than once.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.rwc.Close()
		release(p.name)
	})
	return p.closeErr
}

// FirstExisting returns the first path that exists, or the first path if none do.
func FirstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}
