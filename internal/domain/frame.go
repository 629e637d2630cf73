package domain

import "time"

// Frame represents a single unit of raw bus traffic.
//
// Frames handled by the core are always copies; the transport adapter owns
// the buffers it reads from the wire.
type Frame struct {
	// ID is the CAN arbitration identifier.
	ID uint32

	// Data is the frame payload.
	Data []byte

	// Extended marks a 29-bit identifier frame.
	Extended bool

	// Timestamp is the receipt time, zero for frames built locally.
	Timestamp time.Time
}

// Clone returns a deep copy of the frame. Used when a frame crosses a task
// boundary so neither side can alias the other's payload.
func (f Frame) Clone() Frame {
	c := f
	c.Data = append([]byte(nil), f.Data...)
	return c
}

// SignalValues maps signal names to integer values. A map passed to the
// encoder must contain exactly one entry per signal declared by the owning
// message.
type SignalValues map[string]int64

// Clone returns a copy of the value map.
func (v SignalValues) Clone() SignalValues {
	c := make(SignalValues, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}

// DecodedFrame is a frame resolved against the signal database. It is
// created by the codec and consumed immediately by subscribers; it is not
// persisted.
type DecodedFrame struct {
	ID     uint32
	Name   string
	Values SignalValues
}
