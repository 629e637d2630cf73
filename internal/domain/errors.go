package domain

import (
	"errors"
	"fmt"
	"time"
)

// Lifecycle errors returned by the public API; check with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start is called on a running instance.
	ErrAlreadyRunning = errors.New("canpulse: already running")

	// ErrNotRunning is returned when Stop is called on a stopped instance.
	ErrNotRunning = errors.New("canpulse: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("canpulse: shutdown timeout")
)

// ErrUnknownMessage is returned when a frame identifier has no descriptor
// in the signal database. Unknown traffic is expected on a shared bus and
// is never treated as a loop-terminating condition.
var ErrUnknownMessage = errors.New("canpulse: unknown message id")

// StructuralError reports a payload that fails to unpack against a known
// message descriptor (wrong length, truncated field).
type StructuralError struct {
	ID        uint32
	Data      []byte
	Timestamp time.Time
	Reason    string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("canpulse: decode 0x%x: %s", e.ID, e.Reason)
}

// MalformedValueError reports a decoded field with no valid semantic
// mapping, such as a multiplexer selector value no signal is declared
// under.
type MalformedValueError struct {
	ID     uint32
	Signal string
	Value  int64
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("canpulse: decode 0x%x: signal %q has no mapping for value %d", e.ID, e.Signal, e.Value)
}

// RangeError reports a value supplied to the encoder that does not fit the
// signal's declared bit width. It is fatal to that encode call only; the
// caller skips the transmission cycle.
type RangeError struct {
	ID     uint32
	Signal string
	Value  int64
	Width  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("canpulse: encode 0x%x: value %d does not fit %d-bit signal %q", e.ID, e.Value, e.Width, e.Signal)
}
