// Package canpulse provides a CAN bus observer, decoder and stimulus
// injector.
//
// Example usage:
//
//	cfg := canpulse.Config{DBCPath: "/etc/canpulse/model3.dbc"}
//	if err := canpulse.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package canpulse

import (
	"context"
	"errors"
	"time"

	lib "github.com/canpulse/canpulse/pkg/canpulse"
)

// ErrCrashed is returned by Run when a bus loop fails.
var ErrCrashed = errors.New("canpulse: crashed")

// Config holds the configuration for a canpulse instance.
// Zero values are filled with defaults; at minimum set DBCPath.
type Config = lib.Config

// Watch selects one message's signals for the selective signal log.
type Watch = lib.Watch

// Option configures optional behavior, see pkg/canpulse.
type Option = lib.Option

// Run starts the bus loops with the given configuration and blocks until
// the context is cancelled or the instance crashes. Embedders that need
// finer control use pkg/canpulse directly.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	cp, err := lib.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := cp.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return cp.Stop()
		case <-ticker.C:
			if cp.Status() == lib.StateCrashed {
				return ErrCrashed
			}
		}
	}
}
