package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/canpulse/canpulse/internal/codec"
	"github.com/canpulse/canpulse/internal/domain"
	"github.com/canpulse/canpulse/internal/ports"
	"github.com/canpulse/canpulse/pkg/log"
)

// FlickConfig describes the synthetic control event the scheduler injects.
type FlickConfig struct {
	// MessageID is the frame identifier of the switch status message.
	MessageID uint32

	// Signal is the scroll tick signal within that message.
	Signal string

	// AssertValue is sent first (e.g. -1, one tick down); ReleaseValue
	// follows after PulseGap (e.g. +1). Consumers interpret the pulse
	// pair as a single discrete scroll event.
	AssertValue  int64
	ReleaseValue int64

	// Interval is the base time between events; each cycle adds uniform
	// jitter from [-Jitter, +Jitter] at millisecond granularity.
	Interval time.Duration
	Jitter   time.Duration

	// PulseGap is the fixed delay between the assert and release frames.
	PulseGap time.Duration
}

// Flicker periodically synthesizes and transmits a two-phase scroll tick:
// assert, short gap, release. It runs until the context is canceled and
// shares the transport's send surface with nothing held across sleeps.
type Flicker struct {
	config    FlickConfig
	db        ports.SignalDatabase
	codec     *codec.Codec
	transport ports.Transport
	logger    log.Logger
	rng       *rand.Rand
}

// NewFlicker creates a stimulus scheduler. rng may be nil, in which case a
// time-seeded source is used; tests inject a fixed seed.
func NewFlicker(config FlickConfig, db ports.SignalDatabase, c *codec.Codec, transport ports.Transport, logger log.Logger, rng *rand.Rand) *Flicker {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Flicker{
		config:    config,
		db:        db,
		codec:     c,
		transport: transport,
		logger:    logger,
		rng:       rng,
	}
}

// Run executes the stimulus loop until the context is canceled.
//
// A missing message descriptor is a startup error returned before the
// first sleep. Encode range errors and transport errors skip the affected
// transmission cycle and are logged; they never terminate the loop.
func (f *Flicker) Run(ctx context.Context) error {
	msg, ok := f.db.MessageByID(f.config.MessageID)
	if !ok {
		return fmt.Errorf("flick message 0x%x not in signal database", f.config.MessageID)
	}
	if msg.SignalByName(f.config.Signal) == nil {
		return fmt.Errorf("flick signal %q not declared by message %s", f.config.Signal, msg.Name)
	}

	// Two independent value snapshots, never mutated after this point, so
	// the assert and release frames cannot alias each other's payload.
	assert := codec.BuildValues(msg, map[string]int64{f.config.Signal: f.config.AssertValue}, 0)
	release := codec.BuildValues(msg, map[string]int64{f.config.Signal: f.config.ReleaseValue}, 0)

	for {
		interval := f.nextInterval()
		f.logger.Info("next flick scheduled", log.Duration("in", interval))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		f.logger.Info("flicking", log.Uint32("id", f.config.MessageID))

		if !f.send(ctx, assert, "assert") {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.config.PulseGap):
		}

		f.send(ctx, release, "release")
	}
}

// nextInterval draws the jittered sleep for one cycle. The result is
// always within [Interval-Jitter, Interval+Jitter].
func (f *Flicker) nextInterval() time.Duration {
	j := f.config.Jitter.Milliseconds()
	if j <= 0 {
		return f.config.Interval
	}
	ms := f.rng.Int63n(2*j+1) - j
	return f.config.Interval + time.Duration(ms)*time.Millisecond
}

// send encodes and transmits one phase. It returns false when the cycle
// should be abandoned.
func (f *Flicker) send(ctx context.Context, values domain.SignalValues, phase string) bool {
	frame, err := f.codec.EncodeFrame(f.config.MessageID, values)
	if err != nil {
		var rangeErr *domain.RangeError
		if errors.As(err, &rangeErr) {
			f.logger.Warn("flick value out of range, skipping cycle",
				log.String("phase", phase),
				log.String("signal", rangeErr.Signal),
				log.Int64("value", rangeErr.Value),
			)
		} else {
			f.logger.Error("flick encode failed", log.String("phase", phase), log.Err(err))
		}
		return false
	}

	if err := f.transport.Send(ctx, frame); err != nil {
		f.logger.Error("flick send failed", log.String("phase", phase), log.Err(err))
		return false
	}
	return true
}
