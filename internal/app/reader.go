package app

import (
	"context"
	"time"

	"github.com/canpulse/canpulse/internal/ports"
	"github.com/canpulse/canpulse/internal/registry"
	"github.com/canpulse/canpulse/pkg/log"
)

// DefaultPollInterval is the idle wait between transport polls when no
// frame is available.
const DefaultPollInterval = time.Millisecond

// ReaderConfig contains configuration for the read loop.
type ReaderConfig struct {
	// PollInterval is the idle wait when the transport has no frame
	// buffered. It bounds shutdown latency and keeps the loop from
	// spinning on an empty bus.
	PollInterval time.Duration
}

// Reader polls the transport for inbound frames and forwards each one to
// the subscriber registry. It shares the transport with the stimulus
// scheduler and never holds it across a dispatch.
type Reader struct {
	config    ReaderConfig
	transport ports.Transport
	registry  *registry.Registry
	logger    log.Logger
}

// NewReader creates a read loop over the given transport and registry.
func NewReader(config ReaderConfig, transport ports.Transport, reg *registry.Registry, logger log.Logger) *Reader {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Reader{
		config:    config,
		transport: transport,
		registry:  reg,
		logger:    logger,
	}
}

// Run executes the read loop until the context is canceled.
//
// Transport receive errors are logged and retried with backoff; they never
// terminate the loop. Frames are dispatched to every subscriber in
// registration order before the next poll, so a slow subscriber delays
// subsequent traffic rather than dropping it.
func (r *Reader) Run(ctx context.Context) error {
	boff := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, ok, err := r.transport.TryReceive()
		if err != nil {
			r.logger.Error("receive error", log.Err(err))
			boff.Sleep(ctx)
			continue
		}
		boff.Reset()

		if ok {
			r.registry.Dispatch(ctx, frame)
			continue
		}

		// Idle: yield until the next poll so the stimulus scheduler and
		// other work can run.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.PollInterval):
		}
	}
}
