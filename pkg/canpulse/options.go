package canpulse

import (
	"math/rand"

	"github.com/canpulse/canpulse/internal/ports"
	"github.com/canpulse/canpulse/pkg/log"
)

// Option configures optional behavior of Canpulse.
type Option func(*options)

// options holds the optional configuration for a Canpulse instance.
type options struct {
	logger    log.Logger
	transport ports.Transport
	database  ports.SignalDatabase
	rng       *rand.Rand
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport injects a bus transport, replacing the SocketCAN adapter.
// Canpulse does not close an injected transport on Stop.
func WithTransport(transport ports.Transport) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithDatabase injects a signal database, replacing the DBC file loader.
// Live reload (WatchDBC) only applies to the built-in loader.
func WithDatabase(db ports.SignalDatabase) Option {
	return func(o *options) {
		o.database = db
	}
}

// WithRand sets the random source used for stimulus jitter. Tests use a
// fixed seed for deterministic intervals.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}
