package motor

import "errors"

var (
	// ErrTimeout is returned when Config.MaxWait elapses before a response.
	ErrTimeout = errors.New("motor: timed out waiting for response")

	// ErrClosed is returned for commands issued on, or interrupted by, a closed Conn.
	ErrClosed = errors.New("motor: connection closed")
)

// DeviceError is a line from the device starting with "ERROR".
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string { return e.Message }

// UnexpectedResponseError is returned when a line did not have the format
// the command required.
type UnexpectedResponseError struct {
	Line string
}

func (e *UnexpectedResponseError) Error() string { return "motor: unexpected response: " + e.Line }

// TransportError wraps an I/O failure on the motor link.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "motor: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }
