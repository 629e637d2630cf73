package ports

import (
	"context"

	"github.com/canpulse/canpulse/internal/domain"
)

// Transport abstracts the physical or virtual bus channel.
//
// Both the read loop and the stimulus scheduler call Send concurrently;
// implementations must serialize sends internally. TryReceive must never
// block so the read loop can yield between polls.
type Transport interface {
	// Send transmits one frame on the bus.
	// Transient bus errors are returned to the caller, which logs and
	// continues; they do not invalidate the transport.
	Send(ctx context.Context, frame domain.Frame) error

	// TryReceive returns the next buffered inbound frame without blocking.
	// The boolean is false when no frame is currently available.
	TryReceive() (domain.Frame, bool, error)

	// Close releases the underlying channel. After Close, Send and
	// TryReceive return errors.
	Close() error
}
