// Package socketcan implements the transport port over a Linux SocketCAN
// interface using github.com/brutella/can.
package socketcan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brutella/can"

	"github.com/canpulse/canpulse/internal/domain"
	"github.com/canpulse/canpulse/pkg/log"
)

// ErrClosed is returned by Send and TryReceive after Close.
var ErrClosed = errors.New("socketcan: transport closed")

// effFlag marks 29-bit (extended) identifiers in SocketCAN frame ids.
const effFlag uint32 = 1 << 31

// rxBufferSize bounds the inbound frame buffer between the kernel read
// loop and the poll surface. Overflow is counted and logged, never silent.
const rxBufferSize = 256

// Transport adapts a SocketCAN interface to ports.Transport. The kernel
// read loop runs on its own goroutine and pumps frames into a buffered
// channel drained by TryReceive; sends are serialized with a mutex since
// the read loop and the stimulus scheduler both transmit.
type Transport struct {
	bus    *can.Bus
	logger log.Logger

	sendMu sync.Mutex
	rx     chan domain.Frame

	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New opens the named CAN interface (e.g. "can0") and starts receiving.
// An open failure here is a startup failure; callers surface it before any
// loop starts.
func New(channel string, logger log.Logger) (*Transport, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, fmt.Errorf("socketcan: interface %s: %w", channel, err)
	}
	conn, err := can.NewReadWriteCloserForInterface(iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan: open %s: %w", channel, err)
	}

	t := &Transport{
		bus:    can.NewBus(conn),
		logger: logger,
		rx:     make(chan domain.Frame, rxBufferSize),
	}
	t.bus.SubscribeFunc(t.handleFrame)

	go func() {
		if err := t.bus.ConnectAndPublish(); err != nil && !t.closed.Load() {
			t.logger.Error("socketcan: read loop terminated", log.Err(err))
		}
	}()

	return t, nil
}

// handleFrame copies one kernel frame into the receive buffer. The can.Bus
// owns the frame it hands us, so the payload is always copied.
func (t *Transport) handleFrame(f can.Frame) {
	frame := domain.Frame{
		ID:        f.ID &^ effFlag,
		Data:      append([]byte(nil), f.Data[:f.Length]...),
		Extended:  f.ID&effFlag != 0,
		Timestamp: time.Now(),
	}

	select {
	case t.rx <- frame:
	default:
		n := t.dropped.Add(1)
		t.logger.Warn("socketcan: receive buffer full, frame dropped",
			log.Uint32("id", frame.ID),
			log.Int64("dropped_total", int64(n)),
		)
	}
}

// TryReceive returns the next buffered inbound frame without blocking.
func (t *Transport) TryReceive() (domain.Frame, bool, error) {
	if t.closed.Load() {
		return domain.Frame{}, false, ErrClosed
	}
	select {
	case frame := <-t.rx:
		return frame, true, nil
	default:
		return domain.Frame{}, false, nil
	}
}

// Send transmits one frame. Sends are serialized; encode/decode and
// dispatch never run under this lock.
func (t *Transport) Send(ctx context.Context, frame domain.Frame) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(frame.Data) > 8 {
		return fmt.Errorf("socketcan: payload %d bytes exceeds classic CAN frame", len(frame.Data))
	}

	cf := can.Frame{
		ID:     frame.ID,
		Length: uint8(len(frame.Data)),
	}
	if frame.Extended {
		cf.ID |= effFlag
	}
	copy(cf.Data[:], frame.Data)

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.bus.Publish(cf)
}

// Dropped returns the number of inbound frames lost to buffer overflow.
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}

// Close disconnects from the interface. Safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.closeErr = t.bus.Disconnect()
	})
	return t.closeErr
}
