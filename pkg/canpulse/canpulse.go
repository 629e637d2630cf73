// Package canpulse is an embeddable CAN bus observer and stimulus
// injector. It decodes observed frames against a DBC signal database,
// fans them out to subscribers, and independently injects a two-phase
// synthetic scroll tick on a jittered timer.
//
// Use New to create an instance, then Start to launch the bus loops.
package canpulse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/canpulse/canpulse/internal/adapters/dbc"
	"github.com/canpulse/canpulse/internal/adapters/mqtt"
	"github.com/canpulse/canpulse/internal/adapters/socketcan"
	"github.com/canpulse/canpulse/internal/app"
	"github.com/canpulse/canpulse/internal/codec"
	"github.com/canpulse/canpulse/internal/domain"
	"github.com/canpulse/canpulse/internal/ports"
	"github.com/canpulse/canpulse/internal/registry"
	"github.com/canpulse/canpulse/internal/sinks"
	"github.com/canpulse/canpulse/pkg/log"
)

// State re-exports the lifecycle state for embedders.
type State = app.State

// Lifecycle states of a Canpulse instance.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// ShutdownTimeout is the maximum time Stop waits for the loops to exit.
const ShutdownTimeout = 10 * time.Second

// Canpulse owns the read loop, the stimulus scheduler and their shared
// collaborators. Instances are created stopped; Start launches the loops
// and Stop tears them down.
type Canpulse struct {
	config Config
	opts   options
	logger log.Logger

	lifecycle *app.Lifecycle
	registry  *registry.Registry
	codec     *codec.Codec
	database  ports.SignalDatabase
	transport ports.Transport
	reader    *app.Reader
	flicker   *app.Flicker
	watcher   *dbc.Watcher

	// ownsTransport is false when the transport was injected; injected
	// transports are the caller's to close.
	ownsTransport bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	publisher *mqtt.Publisher
}

// New creates a Canpulse instance with the given configuration.
// Startup failures (missing definition file, unopenable channel, unknown
// stimulus message) are returned here, before any loop starts.
func New(cfg Config, opts ...Option) (*Canpulse, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	database := o.database
	if database == nil {
		db, err := dbc.Load(cfg.DBCPath)
		if err != nil {
			return nil, err
		}
		database = db
	}

	msg, ok := database.MessageByID(cfg.FlickMessageID)
	if !ok {
		return nil, fmt.Errorf("flick message 0x%x: %w", cfg.FlickMessageID, domain.ErrUnknownMessage)
	}
	if msg.SignalByName(cfg.FlickSignal) == nil {
		return nil, fmt.Errorf("flick signal %q not declared by message %s", cfg.FlickSignal, msg.Name)
	}

	transport := o.transport
	ownsTransport := false
	if transport == nil {
		t, err := socketcan.New(cfg.Channel, logger)
		if err != nil {
			return nil, err
		}
		transport = t
		ownsTransport = true
	}

	frameCodec := codec.New(database)
	reg := registry.New()

	reg.Subscribe("framelog", sinks.NewFrameLog(frameCodec, logger).Handle)
	for _, watch := range cfg.Watches {
		for _, signal := range watch.Signals {
			w := sinks.NewSignalWatch(watch.ID, signal, frameCodec, logger)
			reg.Subscribe(w.Name(), w.Handle)
		}
	}

	reader := app.NewReader(
		app.ReaderConfig{PollInterval: cfg.PollInterval},
		transport, reg, logger,
	)
	flicker := app.NewFlicker(
		app.FlickConfig{
			MessageID:    cfg.FlickMessageID,
			Signal:       cfg.FlickSignal,
			AssertValue:  cfg.FlickAssert,
			ReleaseValue: cfg.FlickRelease,
			Interval:     cfg.FlickInterval,
			Jitter:       cfg.FlickJitter,
			PulseGap:     cfg.PulseGap,
		},
		database, frameCodec, transport, logger, o.rng,
	)

	var watcher *dbc.Watcher
	if cfg.WatchDBC {
		if db, ok := database.(*dbc.Database); ok {
			watcher = dbc.NewWatcher(db, logger)
		} else {
			logger.Warn("dbc watch requested but database was injected, skipping")
		}
	}

	return &Canpulse{
		config:        cfg,
		opts:          o,
		logger:        logger,
		lifecycle:     app.NewLifecycle(logger),
		registry:      reg,
		codec:         frameCodec,
		database:      database,
		transport:     transport,
		reader:        reader,
		flicker:       flicker,
		watcher:       watcher,
		ownsTransport: ownsTransport,
	}, nil
}

// Registry exposes the subscriber registry so embedders can attach their
// own frame consumers before or after Start.
func (c *Canpulse) Registry() *registry.Registry {
	return c.registry
}

// Status returns the current lifecycle state.
func (c *Canpulse) Status() State {
	return c.lifecycle.State()
}

// Start launches the read loop and the stimulus scheduler.
// Returns domain.ErrAlreadyRunning if the instance is already running.
func (c *Canpulse) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStarting, "start requested"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if c.config.MQTT.Broker != "" {
		pub, err := mqtt.Connect(runCtx, mqtt.Config{
			Broker:   c.config.MQTT.Broker,
			Topic:    c.config.MQTT.Topic,
			ClientID: c.config.MQTT.ClientID,
			Username: c.config.MQTT.Username,
			Password: c.config.MQTT.Password,
			QoS:      c.config.MQTT.QoS,
			Retain:   c.config.MQTT.Retain,
		}, c.codec, c.logger)
		if err != nil {
			cancel()
			_ = c.lifecycle.TransitionTo(app.StateCrashed, "mqtt connect failed")
			return err
		}
		c.publisher = pub
		c.registry.Subscribe("mqtt", pub.Handle)
	}

	c.logger.Info("starting",
		log.String("channel", c.config.Channel),
		log.Int("bitrate", c.config.Bitrate),
		log.String("dbc", c.config.DBCPath),
	)

	c.wg.Add(2)
	go c.runLoop(runCtx, "reader", c.reader.Run)
	go c.runLoop(runCtx, "flicker", c.flicker.Run)

	if c.watcher != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.watcher.Run(runCtx)
		}()
	}

	return c.lifecycle.TransitionTo(app.StateRunning, "loops started")
}

// runLoop runs one long-running task and crashes the instance if the task
// fails for a reason other than shutdown.
func (c *Canpulse) runLoop(ctx context.Context, name string, run func(context.Context) error) {
	defer c.wg.Done()

	err := run(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	c.logger.Error("task failed", log.String("task", name), log.Err(err))
	_ = c.lifecycle.TransitionTo(app.StateCrashed, name+" failed")

	// Bring the sibling loop down too; a half-running instance is worse
	// than a crashed one.
	c.cancel()
}

// Stop cancels the loops and waits for them to exit. A crashed instance
// can be stopped too; that releases the transport and the MQTT publisher.
// Returns domain.ErrNotRunning if the instance is already stopped, or
// domain.ErrShutdownTimeout if the loops do not exit in time.
func (c *Canpulse) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStopping, "stop requested"); err != nil {
		return err
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		c.logger.Warn("shutdown timeout, abandoning loops", log.Duration("timeout", ShutdownTimeout))
		waitErr = domain.ErrShutdownTimeout
	}

	if c.publisher != nil {
		c.registry.Unsubscribe("mqtt")
		if err := c.publisher.Close(); err != nil {
			c.logger.Warn("mqtt disconnect failed", log.Err(err))
		}
		c.publisher = nil
	}

	if c.ownsTransport {
		if err := c.transport.Close(); err != nil {
			c.logger.Warn("transport close failed", log.Err(err))
		}
	}

	if err := c.lifecycle.TransitionTo(app.StateStopped, "loops stopped"); err != nil {
		return err
	}
	return waitErr
}
